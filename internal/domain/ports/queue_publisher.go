package ports

import (
	"context"
)

// SettlementMessage is the wire contract between the engine and the
// settlement worker, one message per allocation record.
type SettlementMessage struct {
	AllocationID  string `json:"allocation_id"`
	TransactionID string `json:"transaction_id"`
	RecipientID   string `json:"recipient_id"`
	Currency      string `json:"currency"`
	AmountMinor   int64  `json:"amount_minor_units"`
}

// QueuePublisher defines the interface to the settlement queue. Publish
// failures are non-fatal at the distributor boundary: the caller logs them
// and leaves the allocation pending for the reconciliation sweep.
type QueuePublisher interface {
	Publish(ctx context.Context, topic string, msg SettlementMessage) error
}
