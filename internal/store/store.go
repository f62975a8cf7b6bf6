// Package store persists order outcomes and archives executions: a SQLite
// journal for lookup by id and status, and Parquet files for the daily
// execution archive.
package store

import (
	"context"
	"time"

	"tradeflow/internal/domain"
)

// OutcomeStore persists and retrieves terminal order outcomes.
type OutcomeStore interface {
	// SaveOutcome inserts or replaces the outcome for an order.
	SaveOutcome(ctx context.Context, outcome *domain.OrderOutcome) error

	// GetOutcome retrieves a single outcome by order id. A missing order
	// returns (nil, nil).
	GetOutcome(ctx context.Context, orderID string) (*domain.OrderOutcome, error)

	// ListOutcomes returns the most recent outcomes, newest first, up to
	// limit. An empty status matches all outcomes.
	ListOutcomes(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.OrderOutcome, error)
}

// ExecutionArchive persists executed orders to the long-term archive.
type ExecutionArchive interface {
	// ArchiveExecutions appends a batch of execution records.
	ArchiveExecutions(ctx context.Context, records []ExecutionRecord) error

	// ReadExecutions returns the archived executions for one day.
	ReadExecutions(ctx context.Context, day time.Time) ([]ExecutionRecord, error)
}

// ExecutionRecord is the flattened archive row for one executed order.
type ExecutionRecord struct {
	OrderID      string  `parquet:"order_id" json:"order_id"`
	TraceID      string  `parquet:"trace_id" json:"trace_id"`
	Symbol       string  `parquet:"symbol" json:"symbol"`
	Side         string  `parquet:"side" json:"side"`
	Workflow     string  `parquet:"workflow" json:"workflow"`
	Quantity     int64   `parquet:"quantity" json:"quantity"`
	Price        float64 `parquet:"price" json:"price"`
	OrderValue   float64 `parquet:"order_value" json:"order_value"`
	Commission   float64 `parquet:"commission" json:"commission"`
	Fees         float64 `parquet:"fees" json:"fees"`
	TotalCost    float64 `parquet:"total_cost" json:"total_cost"`
	EstimatedPnL float64 `parquet:"estimated_pnl" json:"estimated_pnl"`
	Timestamp    int64   `parquet:"timestamp,timestamp(millisecond)" json:"timestamp"` // Unix ms
}

// RecordFromOutcome flattens an executed outcome into an archive row.
func RecordFromOutcome(outcome *domain.OrderOutcome) ExecutionRecord {
	rec := ExecutionRecord{
		OrderID:  outcome.OrderID,
		TraceID:  outcome.TraceID,
		Workflow: string(outcome.Workflow),
	}
	if outcome.Order != nil {
		rec.Symbol = outcome.Order.Symbol
		rec.Side = string(outcome.Order.Side)
	}
	if outcome.Validation != nil {
		rec.Quantity = outcome.Validation.NormalizedQuantity
	}
	if outcome.Pricing != nil {
		rec.Price = outcome.Pricing.Price
		rec.OrderValue = outcome.Pricing.OrderValue
		rec.Commission = outcome.Pricing.Commission
		rec.Fees = outcome.Pricing.Fees
		rec.TotalCost = outcome.Pricing.TotalCost
		rec.EstimatedPnL = outcome.Pricing.EstimatedPnL
	}
	if !outcome.ExecutedAt.IsZero() {
		rec.Timestamp = outcome.ExecutedAt.UnixMilli()
	}
	return rec
}
