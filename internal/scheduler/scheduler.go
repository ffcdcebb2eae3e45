package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/splitpay/split-engine/internal/domain/ports"
	"github.com/splitpay/split-engine/internal/services/sweep"
)

// Manager owns the periodic reconciliation sweep job
type Manager struct {
	scheduler gocron.Scheduler
	sweepSvc  *sweep.Service
	logger    ports.Logger
	interval  time.Duration
}

// NewManager creates a scheduler with the sweep job registered
func NewManager(sweepSvc *sweep.Service, logger ports.Logger, interval time.Duration) (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	m := &Manager{
		scheduler: s,
		sweepSvc:  sweepSvc,
		logger:    logger,
		interval:  interval,
	}
	if err := m.registerSweepJob(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) registerSweepJob() error {
	// Singleton mode: a slow sweep must not overlap with the next tick.
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(m.interval),
		gocron.NewTask(m.runSweep),
		gocron.WithName("reconciliation-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}

func (m *Manager) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), m.interval)
	defer cancel()

	if _, err := m.sweepSvc.Run(ctx); err != nil {
		m.logger.Error("scheduled reconciliation sweep failed", ports.Err(err))
	}
	if _, err := m.sweepSvc.Stats(ctx); err != nil {
		m.logger.Warn("failed to refresh allocation stats", ports.Err(err))
	}
}

// Start begins executing registered jobs
func (m *Manager) Start() {
	m.scheduler.Start()
	m.logger.Info("scheduler started", ports.String("sweep_interval", m.interval.String()))
}

// Stop shuts the scheduler down, waiting for a running sweep to finish
func (m *Manager) Stop() error {
	return m.scheduler.Shutdown()
}
