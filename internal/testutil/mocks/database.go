package mocks

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MockDBPort satisfies ports.DBPort for service tests. Transactions run the
// callback with a nil pgx.Tx; repositories are mocked at the port level, so
// the executor is never touched.
type MockDBPort struct {
	// TxErr, when set, is returned instead of running the callback
	TxErr error
}

func (m *MockDBPort) GetDB() *pgxpool.Pool {
	return nil
}

func (m *MockDBPort) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if m.TxErr != nil {
		return m.TxErr
	}
	return fn(ctx, nil)
}

func (m *MockDBPort) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if m.TxErr != nil {
		return m.TxErr
	}
	return fn(ctx, nil)
}
