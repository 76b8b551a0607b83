package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// TxManager runs fn as one unit of work. Repositories called with the ctx
// handed to fn join the transaction; any error from fn rolls everything back.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

type gormTxManager struct {
	db          *gorm.DB
	maxAttempts int
	backoff     time.Duration
}

func NewTxManager(db *gorm.DB, maxAttempts int) TxManager {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &gormTxManager{db: db, maxAttempts: maxAttempts, backoff: 25 * time.Millisecond}
}

func (m *gormTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// Already inside a unit of work: join it
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}

	var err error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(context.WithValue(ctx, txKey{}, tx))
		})
		if err == nil || !isRetryableTx(err) || attempt == m.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return translate(ctx.Err())
		case <-time.After(m.backoff * time.Duration(attempt)):
		}
	}
	return translate(err)
}

// conn returns the transaction bound to ctx, or the pool when there is none
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}
