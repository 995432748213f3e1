//go:build cgo

package sqlite3_test

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sqlite/sqlite3"
)

func TestDialect(t *testing.T) {
	d := sqlite3.New()
	assert.Equal(t, dialect.SQLite, d.Name())
	assert.Equal(t, "sqlite3", d.Driver())
}

func TestConstraintErrors(t *testing.T) {
	db, err := sql.Open(sqlite3.DriverName, "file:"+filepath.Join(t.TempDir(), "test.db")+"?_foreign_keys=on")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE "Customer" ("ID" INTEGER NOT NULL PRIMARY KEY, "Name" TEXT UNIQUE)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE "Orders" ("ID" INTEGER PRIMARY KEY, "CustomerID" INTEGER REFERENCES "Customer"("ID"))`)
	require.NoError(t, err)

	d := sqlite3.New()
	_, err = db.Exec(`INSERT INTO "Customer" ("ID", "Name") VALUES (1, 'Acme')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO "Customer" ("ID", "Name") VALUES (2, 'Acme')`)
	require.Error(t, err)
	assert.True(t, d.IsUniqueConstraintError(err))
	assert.False(t, d.IsForeignKeyConstraintError(err))

	_, err = db.Exec(`INSERT INTO "Orders" ("ID", "CustomerID") VALUES (1, 99)`)
	require.Error(t, err)
	assert.True(t, d.IsForeignKeyConstraintError(err))

	assert.False(t, d.IsUniqueConstraintError(errors.New("other")))
}
