// Package execution books verified orders and records terminal outcomes:
// the SQLite journal gets every outcome, executed orders additionally flow
// into the ledger and the daily Parquet archive.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tradeflow/internal/domain"
	"tradeflow/internal/ledger"
	"tradeflow/internal/refdata"
	"tradeflow/internal/store"
	"tradeflow/internal/util"
	"tradeflow/internal/validate"
)

// Pricer re-checks a pricing snapshot and samples a fresh fill price at
// execution time.
type Pricer interface {
	Verify(s domain.Side, res *domain.PricingResult) error
	Price(ctx context.Context, order *domain.Order, quantity int64, workflow domain.Workflow) (*domain.PricingResult, error)
}

// Engine executes orders and records their outcomes.
type Engine struct {
	outcomes store.OutcomeStore
	archive  store.ExecutionArchive
	ledger   *ledger.Ledger
	caps     *validate.CapStore
	ref      *refdata.Service
	pricer   Pricer
	log      *slog.Logger

	now func() time.Time
}

// New builds an execution Engine. archive, ledger, caps, and ref are
// optional; nil disables the corresponding side effect or check.
func New(outcomes store.OutcomeStore, archive store.ExecutionArchive, led *ledger.Ledger, caps *validate.CapStore, ref *refdata.Service, pricer Pricer, log *slog.Logger) *Engine {
	return &Engine{
		outcomes: outcomes,
		archive:  archive,
		ledger:   led,
		caps:     caps,
		ref:      ref,
		pricer:   pricer,
		log:      log,
		now:      time.Now,
	}
}

// Execute verifies the pre-trade snapshot, re-prices the order at the
// current market, and returns the fill price and time. The fresh sample may
// legitimately differ from the snapshot; a BUY whose re-priced total no
// longer fits the account is rejected as an execution-time shortfall.
func (e *Engine) Execute(ctx context.Context, order *domain.Order, quantity int64, priced *domain.PricingResult) (float64, time.Time, error) {
	log := e.log.With("order_id", order.ID, "symbol", order.Symbol, "trace_id", util.TraceID(ctx))

	if err := e.pricer.Verify(order.Side, priced); err != nil {
		log.Error("pre-settlement verification failed", "error", err)
		return 0, time.Time{}, err
	}

	fresh, err := e.pricer.Price(ctx, order, quantity, priced.Workflow)
	if err != nil {
		return 0, time.Time{}, err
	}
	if order.Side == domain.SideBuy && e.ref != nil && fresh.TotalCost > e.ref.Balance() {
		log.Warn("re-priced total exceeds available funds",
			"snapshot_total", priced.TotalCost,
			"repriced_total", fresh.TotalCost,
			"balance", e.ref.Balance())
		return 0, time.Time{}, &domain.ValidationFailure{
			Code:   domain.ViolationInsufficientFunds,
			Reason: fmt.Sprintf("re-priced total %.2f exceeds available funds %.2f", fresh.TotalCost, e.ref.Balance()),
		}
	}

	at := e.now()
	log.Info("order executed",
		"workflow", priced.Workflow,
		"snapshot_price", priced.Price,
		"fill_price", fresh.Price,
		"total", fresh.TotalCost,
		"executed_at", at)
	return fresh.Price, at, nil
}

// Record persists a terminal outcome. Executed orders are also booked into
// the ledger, archived, and counted against their strategy's daily cap.
func (e *Engine) Record(ctx context.Context, outcome *domain.OrderOutcome) error {
	if err := e.outcomes.SaveOutcome(ctx, outcome); err != nil {
		return fmt.Errorf("journalling outcome %s: %w", outcome.OrderID, err)
	}

	if outcome.Status != domain.StatusExecuted {
		return nil
	}

	if e.ledger != nil {
		e.ledger.Apply(outcome)
	}
	if e.caps != nil && outcome.Workflow == domain.WorkflowAlgorithmic && outcome.Order != nil {
		e.caps.Record(outcome.Order.StrategyID, e.now())
	}
	if e.archive != nil {
		rec := store.RecordFromOutcome(outcome)
		if err := e.archive.ArchiveExecutions(ctx, []store.ExecutionRecord{rec}); err != nil {
			// The journal is authoritative; a failed archive write
			// does not fail the order.
			e.log.Error("archiving execution", "order_id", outcome.OrderID, "error", err)
		}
	}
	return nil
}
