package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func pgErr(code, constraint string) error {
	return fmt.Errorf("exec: %w", &pgconn.PgError{Code: code, ConstraintName: constraint})
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(gorm.ErrRecordNotFound), ErrNotFound)
	assert.ErrorIs(t, translate(pgErr("23505", "idx_products_code")), ErrDuplicate)
	assert.ErrorIs(t, translate(pgErr("23503", "fk_order_items_product")), ErrReferenced)
	assert.ErrorIs(t, translate(pgErr("23514", "chk_products_quantity_non_negative")), ErrInsufficientStock)

	other := pgErr("23514", "chk_something_else")
	assert.Equal(t, other, translate(other))

	// a bad order line quantity is not a stock shortage
	line := pgErr("23514", "chk_order_items_quantity_positive")
	assert.NotErrorIs(t, translate(line), ErrInsufficientStock)
	assert.Equal(t, line, translate(line))

	plain := errors.New("syntax error")
	assert.Equal(t, plain, translate(plain))
}

func TestTranslate_Transient(t *testing.T) {
	for _, err := range []error{
		pgErr("40001", ""),
		pgErr("40P01", ""),
		pgErr("08006", ""),
		pgErr("57P01", ""),
		context.DeadlineExceeded,
		fmt.Errorf("query: %w", driver.ErrBadConn),
	} {
		got := translate(err)
		assert.ErrorIs(t, got, ErrTransient, err.Error())
		assert.ErrorIs(t, got, err, "original error stays in the chain")
	}

	// already marked errors are not wrapped twice
	assert.Equal(t, ErrTransient, translate(ErrTransient))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(pgErr("23505", "")))
	assert.False(t, IsTransient(ErrNotFound))
	assert.True(t, IsTransient(context.Canceled))
	assert.True(t, IsTransient(pgErr("53300", "")))
}

func TestIsRetryableTx(t *testing.T) {
	assert.True(t, isRetryableTx(pgErr("40001", "")))
	assert.True(t, isRetryableTx(pgErr("40P01", "")))
	assert.False(t, isRetryableTx(pgErr("08006", "")))
	assert.False(t, isRetryableTx(context.DeadlineExceeded))
}
