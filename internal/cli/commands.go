package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	dsql "github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/store"
)

var errAborted = errors.New("aborted")

func newTablesCommand(opts *rootOptions) *cobra.Command {
	var counts bool
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the tables of the store",
		Example: `  strata tables --dsn file:shop.db
  strata tables --counts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *store.Store) error {
				names, err := s.TableNames(ctx)
				if err != nil {
					return err
				}
				if !counts {
					for _, name := range names {
						fmt.Fprintln(cmd.OutOrStdout(), name)
					}
					return nil
				}
				t := newTable("TABLE", "ROWS")
				for _, name := range names {
					n, err := s.Count(ctx, name)
					if err != nil {
						return err
					}
					t.add(name, strconv.FormatInt(n, 10))
				}
				t.render(cmd.OutOrStdout())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&counts, "counts", false, "show the row count of every table")
	return cmd
}

// tableDoc is the YAML document printed by describe.
type tableDoc struct {
	Name       string     `yaml:"name"`
	Key        string     `yaml:"key"`
	PrimaryKey string     `yaml:"primary_key,omitempty"`
	Fields     []fieldDoc `yaml:"fields"`
}

type fieldDoc struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable,omitempty"`
	Size     int    `yaml:"size,omitempty"`
	Search   string `yaml:"search,omitempty"`
}

func describe(e *schema.Entity) tableDoc {
	doc := tableDoc{Name: e.Name, Key: e.Key.String()}
	if e.PrimaryKey != nil {
		doc.PrimaryKey = e.PrimaryKey.Name
	}
	for _, f := range e.Fields {
		doc.Fields = append(doc.Fields, fieldDoc{
			Name:     f.Name,
			Type:     f.Type.String(),
			Nullable: f.Nullable,
			Size:     f.Size,
			Search:   f.SearchOrder.String(),
		})
	}
	return doc
}

func newDescribeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "describe <table>",
		Short:   "Print the columns of a table as YAML",
		Example: `  strata describe Customer`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *store.Store) error {
				e, err := s.Entity(ctx, args[0])
				if err != nil {
					return err
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(describe(e)); err != nil {
					return fmt.Errorf("encode %s: %w", e.Name, err)
				}
				return enc.Close()
			})
		},
	}
}

func newCountCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count <table>",
		Short: "Count the rows of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *store.Store) error {
				n, err := s.Count(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}

func newTruncateCommand(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "truncate <table>",
		Short: "Delete every row of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := confirm(cmd, yes, "Delete every row of %s?", args[0]); err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, s *store.Store) error {
				if err := s.TruncateTable(ctx, args[0]); err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Truncated %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newDropCommand(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "drop <table>",
		Short: "Drop a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := confirm(cmd, yes, "Drop table %s?", args[0]); err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, s *store.Store) error {
				if err := s.DropTable(ctx, args[0]); err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Dropped %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newExecCommand(opts *rootOptions) *cobra.Command {
	var query bool
	cmd := &cobra.Command{
		Use:   "exec <statement>",
		Short: "Run a SQL statement",
		Example: `  strata exec "DELETE FROM Orders WHERE Total = 0"
  strata exec --query "SELECT Name, Email FROM Customer"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stmt := strings.Join(args, " ")
			return opts.run(cmd, func(ctx context.Context, s *store.Store) error {
				if !query {
					n, err := s.ExecNonQuery(ctx, stmt)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%d rows affected\n", n)
					return nil
				}
				rows, err := s.ExecReader(ctx, stmt)
				if err != nil {
					return err
				}
				defer rows.Close()
				return printRows(cmd.OutOrStdout(), rows)
			})
		},
	}
	cmd.Flags().BoolVarP(&query, "query", "q", false, "print the rows returned by the statement")
	return cmd
}

func printRows(w io.Writer, rows *dsql.Rows) error {
	columns, err := rows.Columns()
	if err != nil {
		return err
	}
	t := newTable(columns...)
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = formatValue(v)
		}
		t.add(cells...)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	t.render(w)
	return nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}

func confirm(cmd *cobra.Command, yes bool, format string, args ...any) error {
	if yes {
		return nil
	}
	color.New(color.FgYellow, color.Bold).Fprintf(cmd.OutOrStdout(), format+" (y/N): ", args...)
	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	}
	return errAborted
}
