package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitpay/split-engine/internal/domain"
)

// stubRow feeds canned column values into a scan, in the order the
// repository's SELECT lists them.
type stubRow struct {
	values []any
}

func (r stubRow) Scan(dest ...any) error {
	for i, v := range dest {
		switch d := v.(type) {
		case *string:
			*d = r.values[i].(string)
		case *int64:
			*d = r.values[i].(int64)
		case *bool:
			*d = r.values[i].(bool)
		case *time.Time:
			*d = r.values[i].(time.Time)
		case *pgtype.Text:
			*d = r.values[i].(pgtype.Text)
		case *pgtype.Numeric:
			*d = r.values[i].(pgtype.Numeric)
		case *pgtype.Timestamptz:
			*d = r.values[i].(pgtype.Timestamptz)
		}
	}
	return nil
}

func TestScanAllocation(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	processed := time.Date(2026, 8, 29, 12, 5, 0, 0, time.UTC)

	pct, err := numericFromDecimal(decimal.RequireFromString("20.00"))
	require.NoError(t, err)

	row := stubRow{values: []any{
		"alloc-1",
		"tx-1",
		"rcp-a",
		"percentage",
		"completed",
		pct,
		int64(2000),
		false,
		pgtype.Text{String: "", Valid: false},
		pgtype.Timestamptz{Time: processed, Valid: true},
		now,
		now,
	}}

	alloc, err := scanAllocation(row)
	require.NoError(t, err)
	require.NotNil(t, alloc)

	assert.Equal(t, "alloc-1", alloc.ID)
	assert.Equal(t, "tx-1", alloc.TransactionID)
	assert.Equal(t, "rcp-a", alloc.RecipientID)
	assert.Equal(t, domain.AllocationKindPercentage, alloc.Kind)
	assert.Equal(t, domain.AllocationStatusCompleted, alloc.Status)
	assert.True(t, alloc.PercentageApplied.Equal(decimal.RequireFromString("20.00")))
	assert.Equal(t, int64(2000), alloc.Amount)
	assert.False(t, alloc.Underfunded)
	assert.Empty(t, alloc.ErrorDetail)
	require.NotNil(t, alloc.ProcessedAt)
	assert.True(t, alloc.ProcessedAt.Equal(processed))
}
