package strata_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata"
)

func TestNotFoundError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := strata.NewNotFoundError("Customer")
		assert.Equal(t, "strata: Customer not found", err.Error())

		err = strata.NewNotFoundErrorWithID("Customer", 42)
		assert.Equal(t, "strata: Customer not found (key=42)", err.Error())
		assert.Equal(t, 42, err.ID())
		assert.Equal(t, "Customer", err.Label())
	})

	t.Run("IsNotFound", func(t *testing.T) {
		err := strata.NewNotFoundError("Order")
		assert.True(t, errors.Is(err, strata.ErrNotFound))
		assert.True(t, strata.IsNotFound(fmt.Errorf("wrapper: %w", err)))
		assert.True(t, strata.IsNotFound(strata.ErrNotFound))
		assert.False(t, strata.IsNotFound(errors.New("other error")))
		assert.False(t, strata.IsNotFound(nil))
	})
}

func TestConfigError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := strata.NewConfigError(strata.ErrReservedWord, "Order", "Select", "")
		assert.Equal(t, "strata: configuration: reserved word (Order.Select)", err.Error())

		err = strata.NewConfigError(strata.ErrNoPrimaryKey, "Log", "", "delete requires a key")
		assert.Equal(t, "strata: configuration: primary key required (Log): delete requires a key", err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := fmt.Errorf("register: %w", strata.NewConfigError(strata.ErrMissingSerializer, "Customer", "Settings", ""))
		assert.True(t, errors.Is(err, strata.ErrMissingSerializer))
		assert.False(t, errors.Is(err, strata.ErrReservedWord))
		assert.True(t, strata.IsConfigError(err))
		assert.False(t, strata.IsConfigError(errors.New("other")))
		assert.False(t, strata.IsConfigError(nil))

		var cerr *strata.ConfigError
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, "Settings", cerr.Field)
	})
}

func TestUnsupportedError(t *testing.T) {
	err := strata.NewUnsupportedError("postgres", "create store", "")
	assert.Equal(t, "strata: create store not supported by postgres", err.Error())
	assert.True(t, errors.Is(err, strata.ErrUnsupported))

	err = strata.NewUnsupportedError("mssql", "fetch", "fill references")
	assert.Contains(t, err.Error(), ": fill references")
}

func TestConstraintError(t *testing.T) {
	underlying := errors.New("UNIQUE constraint failed: Customer.Name")
	err := strata.NewConstraintError("insert Customer", underlying)
	assert.Equal(t, "strata: constraint failed: insert Customer", err.Error())
	assert.True(t, strata.IsConstraintError(err))
	assert.True(t, strata.IsConstraintError(fmt.Errorf("wrap: %w", err)))
	assert.True(t, errors.Is(err, underlying))
	assert.False(t, strata.IsConstraintError(underlying))
	assert.False(t, strata.IsConstraintError(nil))
}

func TestQueryAndMutationError(t *testing.T) {
	underlying := errors.New("no such table: Customer")

	qerr := strata.NewQueryError("Customer", "select", underlying)
	assert.Equal(t, "strata: querying Customer (select): no such table: Customer", qerr.Error())
	assert.True(t, strata.IsQueryError(qerr))
	assert.True(t, errors.Is(qerr, underlying))
	assert.Equal(t, "strata: querying Customer: no such table: Customer", strata.NewQueryError("Customer", "", underlying).Error())

	merr := strata.NewMutationError("Customer", "insert", underlying)
	assert.Equal(t, "strata: insert Customer: no such table: Customer", merr.Error())
	assert.True(t, strata.IsMutationError(fmt.Errorf("wrap: %w", merr)))
	assert.False(t, strata.IsMutationError(qerr))
	assert.False(t, strata.IsQueryError(nil))
}

func TestAggregateError(t *testing.T) {
	t.Run("NoErrors", func(t *testing.T) {
		assert.Nil(t, strata.NewAggregateError())
		assert.Nil(t, strata.NewAggregateError(nil, nil))
	})

	t.Run("SingleError", func(t *testing.T) {
		single := errors.New("single error")
		assert.Equal(t, single, strata.NewAggregateError(nil, single, nil))
	})

	t.Run("MultipleErrors", func(t *testing.T) {
		err1 := errors.New("error 1")
		err2 := errors.New("error 2")
		err := strata.NewAggregateError(err1, err2)

		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "multiple errors")
		assert.Contains(t, err.Error(), "error 1")
		assert.Contains(t, err.Error(), "error 2")
		assert.True(t, errors.Is(err, err2))
	})
}

func TestSentinelErrors(t *testing.T) {
	assert.Contains(t, strata.ErrNotFound.Error(), "not found")
	assert.Contains(t, strata.ErrTxStarted.Error(), "transaction")
	assert.Contains(t, strata.ErrNoTx.Error(), "transaction")
	assert.Contains(t, strata.ErrBehaviorInTx.Error(), "transaction")
}

func BenchmarkErrors(b *testing.B) {
	b.Run("NewNotFoundError", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = strata.NewNotFoundError("Customer")
		}
	})

	b.Run("IsNotFound", func(b *testing.B) {
		err := strata.NewNotFoundError("Customer")
		for i := 0; i < b.N; i++ {
			_ = strata.IsNotFound(err)
		}
	})

	b.Run("IsConstraintError", func(b *testing.B) {
		err := strata.NewConstraintError("unique", nil)
		for i := 0; i < b.N; i++ {
			_ = strata.IsConstraintError(err)
		}
	})
}
