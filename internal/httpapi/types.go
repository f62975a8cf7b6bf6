// Package httpapi provides the HTTP REST API for submitting orders and
// inspecting outcomes, positions, prices, and pipeline counters.
package httpapi

import (
	"tradeflow/internal/domain"
)

// OrderRequest is the JSON body for the order submission endpoints. The
// institutional and algorithmic fields are only read by their endpoints.
type OrderRequest struct {
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
	Side     string `json:"side"`

	PortfolioManagerID string `json:"portfolio_manager_id,omitempty"`
	CustodianAccount   string `json:"custodian_account,omitempty"`

	StrategyID         string `json:"strategy_id,omitempty"`
	StrategyCredential string `json:"strategy_credential,omitempty"`
}

// toOrder converts the request into a domain order. The pipeline assigns
// the order id.
func (r *OrderRequest) toOrder() *domain.Order {
	return &domain.Order{
		Symbol:             r.Symbol,
		Quantity:           r.Quantity,
		Side:               domain.Side(r.Side),
		PortfolioManagerID: r.PortfolioManagerID,
		CustodianAccount:   r.CustodianAccount,
		StrategyID:         r.StrategyID,
		StrategyCredential: r.StrategyCredential,
	}
}

// OrderListResponse wraps the outcome listing.
type OrderListResponse struct {
	Orders []domain.OrderOutcome `json:"orders"`
	Count  int                   `json:"count"`
}

// PriceResponse is the indicative quote for one symbol.
type PriceResponse struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Exchange      string  `json:"exchange"`
	Sector        string  `json:"sector"`
	Tradeable     bool    `json:"tradeable"`
	FeedAvailable bool    `json:"feed_available"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
