package dialect

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/syssam/strata/schema/field"
)

// Base implements the parts of Dialect shared by most backends. Concrete
// dialects embed it and override what differs.
type Base struct {
	name     string
	driver   string
	reserved map[string]struct{}

	// BoolAsInt renders boolean literals as 1 and 0.
	BoolAsInt bool
	// EscapeBackslash doubles backslashes in string literals.
	EscapeBackslash bool
}

// NewBase returns a Base for the named dialect and driver. The reserved
// words extend the default ANSI list.
func NewBase(name, driver string, reserved ...string) Base {
	b := Base{name: name, driver: driver, reserved: make(map[string]struct{}, len(ansiReserved)+len(reserved))}
	for _, w := range ansiReserved {
		b.reserved[w] = struct{}{}
	}
	for _, w := range reserved {
		b.reserved[strings.ToUpper(w)] = struct{}{}
	}
	return b
}

// Name returns the dialect name.
func (b Base) Name() string { return b.name }

// Driver returns the database/sql driver name.
func (b Base) Driver() string { return b.driver }

// IsReserved reports if the word is reserved. The check is case-insensitive.
func (b Base) IsReserved(word string) bool {
	_, ok := b.reserved[strings.ToUpper(word)]
	return ok
}

// Literal renders a value as a SQL literal.
func (b Base) Literal(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		switch {
		case b.BoolAsInt && v:
			return "1", nil
		case b.BoolAsInt:
			return "0", nil
		case v:
			return "TRUE", nil
		default:
			return "FALSE", nil
		}
	case string:
		return "'" + b.escape(v) + "'", nil
	case int:
		return strconv.Itoa(v), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case decimal.Decimal:
		return v.String(), nil
	case time.Duration:
		return strconv.FormatInt(int64(v), 10), nil
	case time.Time:
		return "'" + v.UTC().Format("2006-01-02 15:04:05") + "'", nil
	case uuid.UUID:
		return "'" + v.String() + "'", nil
	case []byte:
		return "X'" + strings.ToUpper(hex.EncodeToString(v)) + "'", nil
	default:
		return "", fmt.Errorf("dialect: unsupported literal type %T", v)
	}
}

func (b Base) escape(s string) string {
	if !strings.ContainsAny(s, `'\`) {
		return s
	}
	if b.EscapeBackslash {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	return strings.ReplaceAll(s, "'", "''")
}

// CurrentTimestamp returns CURRENT_TIMESTAMP.
func (Base) CurrentTimestamp() string { return "CURRENT_TIMESTAMP" }

// AddColumn returns an ALTER TABLE ... ADD COLUMN statement.
func (Base) AddColumn(table, column string) string {
	return "ALTER TABLE " + table + " ADD COLUMN " + column
}

// Truncate returns a TRUNCATE TABLE statement.
func (Base) Truncate(table string) string { return "TRUNCATE TABLE " + table }

// Returning returns no clauses. The key is read with LastInsertId.
func (Base) Returning(string) (string, string) { return "", "" }

// LimitOffset returns a LIMIT/OFFSET clause.
func (Base) LimitOffset(limit, offset int) (string, string) {
	return "", fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
}

// IndexHint returns no hint.
func (Base) IndexHint(string) string { return "" }

// Durations returns DurationTicks.
func (Base) Durations() DurationStorage { return DurationTicks }

// RowVersionManaged returns false.
func (Base) RowVersionManaged() bool { return false }

// Comparable returns expr. Native column types order by value.
func (Base) Comparable(_ field.Type, expr string) string { return expr }

// Override returns the per-dialect column type declared on the field.
func (b Base) Override(f *field.Descriptor) (string, bool) {
	t, ok := f.SchemaType[b.name]
	return t, ok && t != ""
}

// QueryStrings runs a query returning one string column.
func QueryStrings(ctx context.Context, q Querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// QueryExists reports if a query returns at least one row.
func QueryExists(ctx context.Context, q Querier, query string, args ...any) (bool, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	found := rows.Next()
	return found, rows.Err()
}

// QueryLength runs a query returning a nullable length. NULL, negative
// and missing values are reported as -1.
func QueryLength(ctx context.Context, q Querier, query string, args ...any) (int, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return -1, err
	}
	defer rows.Close()
	if !rows.Next() {
		return -1, rows.Err()
	}
	var n *int64
	if err := rows.Scan(&n); err != nil {
		return -1, err
	}
	if n == nil || *n <= 0 {
		return -1, rows.Err()
	}
	return int(*n), rows.Err()
}

// SizedType parses the length of types such as VARCHAR(50). It returns
// -1 when the type carries no length.
func SizedType(t string) int {
	open, end := strings.IndexByte(t, '('), strings.IndexByte(t, ')')
	if open < 0 || end < open {
		return -1
	}
	args := strings.Split(t[open+1:end], ",")
	n, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil || n <= 0 {
		return -1
	}
	return n
}

// UnsupportedType returns the error of a field type a dialect cannot store.
func UnsupportedType(dialect string, f *field.Descriptor) error {
	return fmt.Errorf("dialect/%s: unsupported type %s for field %q", dialect, f.Type, f.Name)
}

// ansiReserved is the default reserved-word list.
var ansiReserved = []string{
	"ABSOLUTE", "ACTION", "ADD", "ALL", "ALLOCATE", "ALTER", "AND", "ANY", "ARE", "AS",
	"ASC", "ASSERTION", "AT", "AUTHORIZATION", "AVG", "BEGIN", "BETWEEN", "BIT", "BIT_LENGTH", "BOTH",
	"BY", "CASCADE", "CASCADED", "CASE", "CAST", "CATALOG", "CHAR", "CHARACTER", "CHAR_LENGTH", "CHARACTER_LENGTH",
	"CHECK", "CLOSE", "COALESCE", "COLLATE", "COLLATION", "COLUMN", "COMMIT", "CONNECT", "CONNECTION", "CONSTRAINT",
	"CONSTRAINTS", "CONTINUE", "CONVERT", "CORRESPONDING", "COUNT", "CREATE", "CROSS", "CURRENT", "CURRENT_DATE", "CURRENT_TIME",
	"CURRENT_TIMESTAMP", "CURRENT_USER", "CURSOR", "DATABASE", "DATE", "DAY", "DEALLOCATE", "DEC", "DECIMAL", "DECLARE",
	"DEFAULT", "DEFERRABLE", "DEFERRED", "DELETE", "DESC", "DESCRIBE", "DESCRIPTOR", "DIAGNOSTICS", "DISCONNECT", "DISTINCT",
	"DOMAIN", "DOUBLE", "DROP", "ELSE", "END", "END-EXEC", "ESCAPE", "EXCEPT", "EXCEPTION", "EXEC",
	"EXECUTE", "EXISTS", "EXTERNAL", "EXTRACT", "FALSE", "FETCH", "FIRST", "FLOAT", "FOR", "FOREIGN",
	"FOUND", "FROM", "FULL", "GET", "GLOBAL", "GO", "GOTO", "GRANT", "GROUP", "HAVING",
	"HOUR", "IDENTITY", "IMMEDIATE", "IN", "INDEX", "INDICATOR", "INITIALLY", "INNER", "INPUT", "INSENSITIVE",
	"INSERT", "INT", "INTEGER", "INTERSECT", "INTERVAL", "INTO", "IS", "ISOLATION", "JOIN", "KEY",
	"LANGUAGE", "LAST", "LEADING", "LEFT", "LEVEL", "LIKE", "LOCAL", "LOWER", "MATCH", "MAX",
	"MIN", "MINUTE", "MODULE", "MONTH", "NAMES", "NATIONAL", "NATURAL", "NCHAR", "NEXT", "NO",
	"NOT", "NULL", "NULLIF", "NUMERIC", "OCTET_LENGTH", "OF", "ON", "ONLY", "OPEN", "OPTION",
	"OR", "ORDER", "OUTER", "OUTPUT", "OVERLAPS", "PAD", "PARTIAL", "POSITION", "PRECISION", "PREPARE",
	"PRESERVE", "PRIMARY", "PRIOR", "PRIVILEGES", "PROCEDURE", "PUBLIC", "READ", "REAL", "REFERENCES", "RELATIVE",
	"RESTRICT", "REVOKE", "RIGHT", "ROLLBACK", "ROWS", "SCHEMA", "SCROLL", "SECOND", "SECTION", "SELECT",
	"SESSION", "SESSION_USER", "SET", "SIZE", "SMALLINT", "SOME", "SPACE", "SQL", "SQLCODE", "SQLERROR",
	"SQLSTATE", "SUBSTRING", "SUM", "SYSTEM_USER", "TABLE", "TEMPORARY", "THEN", "TIME", "TIMESTAMP", "TIMEZONE_HOUR",
	"TIMEZONE_MINUTE", "TO", "TRAILING", "TRANSACTION", "TRANSLATE", "TRANSLATION", "TRIM", "TRUE", "UNION", "UNIQUE",
	"UNKNOWN", "UPDATE", "UPPER", "USAGE", "USER", "USING", "VALUE", "VALUES", "VARCHAR", "VARYING",
	"VIEW", "WHEN", "WHENEVER", "WHERE", "WITH", "WORK", "WRITE", "YEAR", "ZONE",
}
