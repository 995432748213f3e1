package store

import (
	"fmt"
	"strings"

	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
)

// ValidationError is one finding of a table validation.
type ValidationError struct {
	Table   string
	Column  string
	Message string
	// Breaking indicates the finding may fail writes of the entity.
	Breaking bool
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult reports the changes made by ValidateTable and
// EnsureCompatibility.
type ValidationResult struct {
	// Added lists the columns added, as table.column.
	Added    []string
	Warnings []*ValidationError
}

// HasChanges reports if any column was added.
func (r *ValidationResult) HasChanges() bool {
	return len(r.Added) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// HasBreakingChanges returns true if any warning is breaking.
func (r *ValidationResult) HasBreakingChanges() bool {
	for _, w := range r.Warnings {
		if w.Breaking {
			return true
		}
	}
	return false
}

func (r *ValidationResult) merge(o *ValidationResult) {
	if o == nil {
		return
	}
	r.Added = append(r.Added, o.Added...)
	r.Warnings = append(r.Warnings, o.Warnings...)
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Added) > 0 {
		sb.WriteString("Added:\n")
		for _, c := range r.Added {
			sb.WriteString("  - ")
			sb.WriteString(c)
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			if w.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	if !r.HasChanges() && !r.HasWarnings() {
		sb.WriteString("No changes")
	}
	return sb.String()
}

// diffTable reports the columns of the table unknown to the entity and
// the missing columns that existing rows cannot fill.
func diffTable(e *schema.Entity, cols []string, missing []*field.Descriptor) *ValidationResult {
	result := &ValidationResult{}
	for _, c := range cols {
		if _, ok := e.Field(c); !ok {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   e.Name,
				Column:  c,
				Message: "column is not mapped to a field",
			})
		}
	}
	for _, f := range missing {
		if !f.Nullable && f.Default == nil && !f.DefaultNow && !zeroFilled(f.Type) {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:    e.Name,
				Column:   f.Name,
				Message:  "added as NOT NULL without a default",
				Breaking: true,
			})
		}
	}
	return result
}

// zeroFilled reports if added NOT NULL columns of the type default to the
// zero value of the type.
func zeroFilled(t field.Type) bool {
	return t == field.TypeBool || t == field.TypeString || t == field.TypeRowVersion || t.Numeric()
}
