package sweep

import (
	"context"
	"time"

	"github.com/splitpay/split-engine/internal/domain"
	"github.com/splitpay/split-engine/internal/domain/ports"
	"github.com/splitpay/split-engine/pkg/observability"
)

// Config holds reconciliation sweep settings
type Config struct {
	// SettlementTopic is the queue messages are re-published to
	SettlementTopic string

	// PendingAge is how long an allocation may sit pending before the sweep
	// considers its original publish lost
	PendingAge time.Duration

	// BatchSize caps how many allocations one run re-publishes
	BatchSize int32

	// PublishTimeout bounds each re-publish attempt
	PublishTimeout time.Duration
}

// Service re-publishes settlement messages for allocations whose original
// publish was lost. Together with the distributor's non-fatal publish path
// this guarantees no allocation is silently stranded.
type Service struct {
	txRepo    ports.TransactionRepository
	publisher ports.QueuePublisher
	logger    ports.Logger
	cfg       Config
}

// NewService creates a new reconciliation sweep service
func NewService(
	txRepo ports.TransactionRepository,
	publisher ports.QueuePublisher,
	logger ports.Logger,
	cfg Config,
) *Service {
	if cfg.SettlementTopic == "" {
		cfg.SettlementTopic = "settlement.allocations"
	}
	if cfg.PendingAge <= 0 {
		cfg.PendingAge = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	return &Service{
		txRepo:    txRepo,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
	}
}

// Result summarizes one sweep run
type Result struct {
	Scanned     int `json:"scanned"`
	Republished int `json:"republished"`
	Failed      int `json:"failed"`
}

// Run performs one reconciliation pass: every allocation still pending past
// the age threshold gets its settlement message published again. The
// settlement worker deduplicates on allocation id, so a duplicate message is
// harmless while a lost one is not.
func (s *Service) Run(ctx context.Context) (Result, error) {
	pending, err := s.txRepo.ListPendingOlderThan(ctx, nil, s.cfg.PendingAge, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("sweep failed to list pending allocations", ports.Err(err))
		return Result{}, err
	}

	result := Result{Scanned: len(pending)}
	for _, alloc := range pending {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		publishCtx, cancel := context.WithTimeout(ctx, s.cfg.PublishTimeout)
		err := s.publisher.Publish(publishCtx, s.cfg.SettlementTopic, ports.SettlementMessage{
			AllocationID:  alloc.AllocationID,
			TransactionID: alloc.TransactionID,
			RecipientID:   alloc.RecipientID,
			Currency:      alloc.Currency,
			AmountMinor:   alloc.Amount,
		})
		cancel()

		if err != nil {
			result.Failed++
			status := "failed"
			if domain.IsDomainError(err, domain.ErrorCodePublishTimeout) {
				status = "timeout"
			}
			observability.RecordSettlementPublish("sweep", status)
			s.logger.Warn("sweep re-publish failed",
				ports.String("allocation_id", alloc.AllocationID),
				ports.Err(err))
			continue
		}

		result.Republished++
		observability.RecordSettlementPublish("sweep", "success")
	}

	observability.RecordSweepRun(result.Republished)
	if result.Scanned > 0 {
		s.logger.Info("reconciliation sweep finished",
			ports.Int("scanned", result.Scanned),
			ports.Int("republished", result.Republished),
			ports.Int("failed", result.Failed))
	}
	return result, nil
}

// Stats reports allocation counts by status, feeding both the cron stats
// endpoint and the pending-allocations gauge
func (s *Service) Stats(ctx context.Context) (map[domain.AllocationStatus]int64, error) {
	counts, err := s.txRepo.CountAllocationsByStatus(ctx, nil)
	if err != nil {
		return nil, err
	}
	observability.UpdatePendingAllocations(float64(counts[domain.AllocationStatusPending]))
	return counts, nil
}
