package sql

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/stretchr/testify/assert"
)

type numberErr uint16

func (e numberErr) Error() string  { return fmt.Sprintf("error %d", uint16(e)) }
func (e numberErr) Number() uint16 { return uint16(e) }

type codeErr string

func (e codeErr) Error() string { return "code " + string(e) }
func (e codeErr) Code() string  { return string(e) }

func TestConstraintErrors(t *testing.T) {
	tests := []struct {
		name               string
		err                error
		unique, fk, checks bool
	}{
		{name: "nil"},
		{name: "other", err: errors.New("connection reset")},
		{name: "pgx unique", err: &pgconn.PgError{Code: "23505"}, unique: true},
		{name: "pgx fk", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"}), fk: true},
		{name: "pq check", err: &pq.Error{Code: "23514"}, checks: true},
		{name: "code unique", err: codeErr("23505"), unique: true},
		{name: "number unique", err: numberErr(1062), unique: true},
		{name: "number fk", err: numberErr(1452), fk: true},
		{name: "number check", err: numberErr(3819), checks: true},
		{name: "mysql unique", err: &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, unique: true},
		{name: "mysql fk", err: &mysql.MySQLError{Number: 1451, Message: "Cannot delete"}, fk: true},
		{name: "mssql unique", err: mssql.Error{Number: 2627}, unique: true},
		{name: "mssql fk", err: mssql.Error{Number: 547, Message: "The INSERT statement conflicted with the FOREIGN KEY constraint"}, fk: true},
		{name: "mssql check", err: mssql.Error{Number: 547, Message: "The INSERT statement conflicted with the CHECK constraint"}, checks: true},
		{name: "sqlite unique", err: errors.New("constraint failed: UNIQUE constraint failed: Customer.Email (2067)"), unique: true},
		{name: "sqlite fk", err: errors.New("FOREIGN KEY constraint failed"), fk: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unique, IsUniqueConstraintError(tt.err))
			assert.Equal(t, tt.fk, IsForeignKeyConstraintError(tt.err))
			assert.Equal(t, tt.checks, IsCheckConstraintError(tt.err))
			assert.Equal(t, tt.unique || tt.fk || tt.checks, IsConstraintError(tt.err))
		})
	}
}
