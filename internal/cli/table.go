package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// table renders rows of text in aligned columns.
type table struct {
	headers []string
	rows    [][]string
}

func newTable(headers ...string) *table {
	return &table{headers: headers}
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) render(w io.Writer) {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	header := color.New(color.Bold, color.FgCyan)
	for i, h := range t.headers {
		header.Fprint(w, pad(h, widths[i], i == len(t.headers)-1))
	}
	fmt.Fprintln(w)

	gray := color.New(color.FgHiBlack)
	for i, width := range widths {
		gray.Fprint(w, pad(strings.Repeat("-", width), width, i == len(widths)-1))
	}
	fmt.Fprintln(w)

	for _, row := range t.rows {
		for i := range widths {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			fmt.Fprint(w, pad(cell, widths[i], i == len(widths)-1))
		}
		fmt.Fprintln(w)
	}
}

func pad(s string, width int, last bool) string {
	if last {
		return s
	}
	return s + strings.Repeat(" ", width-len(s)+2)
}
