// Package ledger maintains the live account view: cash, positions, and
// realized PnL, updated as orders execute. Validation checks run against
// reference data; the ledger is the post-trade view served by the API.
package ledger

import (
	"sync"

	"tradeflow/internal/config"
	"tradeflow/internal/domain"
)

// Ledger is safe for concurrent use.
type Ledger struct {
	mu        sync.RWMutex
	cash      float64
	positions map[string]int64
	realized  float64
	executed  int
}

// Snapshot is a point-in-time copy of the account state.
type Snapshot struct {
	Cash        float64          `json:"cash"`
	Positions   map[string]int64 `json:"positions"`
	RealizedPnL float64          `json:"realized_pnl"`
	Executed    int              `json:"executed_orders"`
}

// NewFromConfig seeds the ledger with the configured starting balance and
// holdings.
func NewFromConfig(cfg *config.Config) *Ledger {
	l := &Ledger{
		cash:      cfg.Account.Balance,
		positions: make(map[string]int64, len(cfg.Account.Holdings)),
	}
	for sym, qty := range cfg.Account.Holdings {
		l.positions[sym] = qty
	}
	return l
}

// Apply books an executed order into the ledger. Non-executed outcomes are
// ignored.
func (l *Ledger) Apply(outcome *domain.OrderOutcome) {
	if outcome.Status != domain.StatusExecuted || outcome.Order == nil ||
		outcome.Validation == nil || outcome.Pricing == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	qty := outcome.Validation.NormalizedQuantity
	switch outcome.Order.Side {
	case domain.SideBuy:
		l.cash -= outcome.Pricing.TotalCost
		l.positions[outcome.Order.Symbol] += qty
	case domain.SideSell:
		l.cash += outcome.Pricing.TotalCost
		l.positions[outcome.Order.Symbol] -= qty
		if outcome.Pricing.PnLAvailable {
			l.realized += outcome.Pricing.EstimatedPnL
		}
	}
	l.executed++
}

// Snapshot returns a copy of the current state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	positions := make(map[string]int64, len(l.positions))
	for sym, qty := range l.positions {
		positions[sym] = qty
	}
	return Snapshot{
		Cash:        l.cash,
		Positions:   positions,
		RealizedPnL: l.realized,
		Executed:    l.executed,
	}
}
