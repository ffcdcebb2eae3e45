package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Distribution metrics
	distributionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "split_distributions_total",
		Help: "Total number of split distributions",
	}, []string{
		"owner_id",
		"outcome", // created, duplicate, rejected
	})

	distributedAmountMinorUnits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "split_distributed_amount_minor_units_total",
		Help: "Total distributed value in minor units",
	}, []string{
		"owner_id",
		"currency",
	})

	allocationsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "split_allocations_created_total",
		Help: "Total allocation records created",
	}, []string{
		"owner_id",
		"kind", // percentage, fixed
	})

	underfundedAllocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "split_underfunded_allocations_total",
		Help: "Total allocation records clamped below their configured amount",
	}, []string{
		"owner_id",
	})

	// Settlement queue metrics
	settlementPublishesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_publishes_total",
		Help: "Total settlement queue publish attempts",
	}, []string{
		"source", // distribute, sweep
		"status", // success, failed, timeout
	})

	// Allocation lifecycle metrics
	allocationTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_status_transitions_total",
		Help: "Total allocation status transitions reported by the settlement worker",
	}, []string{
		"status",  // processing, completed, failed
		"outcome", // applied, rejected
	})

	// Reconciliation sweep metrics
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_sweep_runs_total",
		Help: "Total reconciliation sweep runs",
	})

	sweepRepublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_sweep_republished_total",
		Help: "Total allocation messages re-published by the reconciliation sweep",
	})

	pendingAllocations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "allocations_pending",
		Help: "Allocation records currently in pending status",
	})
)

// RecordDistribution records one distribute call and its realized value.
// This is the primary business metric for split volume tracking.
func RecordDistribution(ownerID, currency, outcome string, totalValue int64) {
	distributionsTotal.WithLabelValues(ownerID, outcome).Inc()
	if outcome == "created" {
		distributedAmountMinorUnits.WithLabelValues(ownerID, currency).Add(float64(totalValue))
	}
}

// RecordAllocationCreated records one allocation record written at distribute time
func RecordAllocationCreated(ownerID, kind string, underfunded bool) {
	allocationsCreatedTotal.WithLabelValues(ownerID, kind).Inc()
	if underfunded {
		underfundedAllocationsTotal.WithLabelValues(ownerID).Inc()
	}
}

// RecordSettlementPublish records one settlement queue publish attempt
func RecordSettlementPublish(source, status string) {
	settlementPublishesTotal.WithLabelValues(source, status).Inc()
}

// RecordAllocationTransition records a status-update callback from the settlement worker
func RecordAllocationTransition(status, outcome string) {
	allocationTransitionsTotal.WithLabelValues(status, outcome).Inc()
}

// RecordSweepRun records one reconciliation sweep pass and how many messages it re-published
func RecordSweepRun(republished int) {
	sweepRunsTotal.Inc()
	sweepRepublishedTotal.Add(float64(republished))
}

// UpdatePendingAllocations updates the pending allocation gauge
func UpdatePendingAllocations(count float64) {
	pendingAllocations.Set(count)
}
