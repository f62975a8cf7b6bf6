package ledger

import (
	"math"
	"testing"

	"tradeflow/internal/config"
	"tradeflow/internal/domain"
)

func executedOutcome(symbol string, side domain.Side, qty int64, total, pnl float64) *domain.OrderOutcome {
	return &domain.OrderOutcome{
		Status:     domain.StatusExecuted,
		Order:      &domain.Order{ID: "o1", Symbol: symbol, Quantity: qty, Side: side},
		Validation: &domain.ValidationResult{Passed: true, NormalizedQuantity: qty},
		Pricing:    &domain.PricingResult{TotalCost: total, EstimatedPnL: pnl, PnLAvailable: true},
	}
}

func TestApplyBuyAndSell(t *testing.T) {
	l := NewFromConfig(config.Default())

	l.Apply(executedOutcome("AAPL", domain.SideBuy, 100, 17638.75, -1050))
	snap := l.Snapshot()
	if math.Abs(snap.Cash-(500000-17638.75)) > 0.005 {
		t.Errorf("cash after buy = %v, want %v", snap.Cash, 500000-17638.75)
	}
	if snap.Positions["AAPL"] != 600 {
		t.Errorf("AAPL position = %d, want 600", snap.Positions["AAPL"])
	}
	// Buys don't realize PnL.
	if snap.RealizedPnL != 0 {
		t.Errorf("realized PnL after buy = %v, want 0", snap.RealizedPnL)
	}

	l.Apply(executedOutcome("TSLA", domain.SideSell, 100, 24200.00, 1280))
	snap = l.Snapshot()
	if snap.Positions["TSLA"] != 200 {
		t.Errorf("TSLA position = %d, want 200", snap.Positions["TSLA"])
	}
	if math.Abs(snap.RealizedPnL-1280) > 0.005 {
		t.Errorf("realized PnL = %v, want 1280", snap.RealizedPnL)
	}
	if snap.Executed != 2 {
		t.Errorf("executed count = %d, want 2", snap.Executed)
	}
}

func TestApplyIgnoresNonExecuted(t *testing.T) {
	l := NewFromConfig(config.Default())
	before := l.Snapshot()

	l.Apply(&domain.OrderOutcome{Status: domain.StatusRejected})
	l.Apply(&domain.OrderOutcome{Status: domain.StatusError})

	after := l.Snapshot()
	if after.Cash != before.Cash || after.Executed != 0 {
		t.Error("rejected and errored outcomes must not move the ledger")
	}
}

func TestApplyIgnoresIncompleteOutcome(t *testing.T) {
	l := NewFromConfig(config.Default())
	before := l.Snapshot()

	// An executed status with any stage record missing must not book.
	full := executedOutcome("AAPL", domain.SideBuy, 100, 17638.75, 0)
	noValidation := *full
	noValidation.Validation = nil
	noPricing := *full
	noPricing.Pricing = nil
	noOrder := *full
	noOrder.Order = nil

	l.Apply(&noValidation)
	l.Apply(&noPricing)
	l.Apply(&noOrder)

	after := l.Snapshot()
	if after.Cash != before.Cash || after.Positions["AAPL"] != 500 || after.Executed != 0 {
		t.Errorf("incomplete outcomes moved the ledger: %+v", after)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	l := NewFromConfig(config.Default())
	snap := l.Snapshot()
	snap.Positions["AAPL"] = 0

	if l.Snapshot().Positions["AAPL"] != 500 {
		t.Error("mutating a snapshot must not affect the ledger")
	}
}
