// Package refdata serves static reference data for the trading universe:
// symbol metadata, indicative base prices, recorded cost bases, account
// holdings, and feed availability. All reads are lock-free; the data is
// immutable after construction.
package refdata

import (
	"tradeflow/internal/config"
	"tradeflow/internal/domain"
)

// Service answers reference-data queries for the pipeline stages.
type Service struct {
	symbols    map[string]domain.SymbolMetadata
	basePrices map[string]float64
	costBases  map[string]float64
	holdings   map[string]int64
	feedDown   map[string]bool

	balance   float64
	globalCap int64

	shadowSymbol string
	shadowBasis  float64
}

// FromConfig builds a Service from the configured universe. Fault flags that
// distort reference data are applied here so the stages see a single
// consistent view.
func FromConfig(cfg *config.Config) *Service {
	s := &Service{
		symbols:    make(map[string]domain.SymbolMetadata, len(cfg.Symbols)),
		basePrices: make(map[string]float64, len(cfg.Symbols)),
		costBases:  make(map[string]float64, len(cfg.Symbols)),
		holdings:   make(map[string]int64, len(cfg.Account.Holdings)),
		feedDown:   make(map[string]bool, len(cfg.Market.FeedUnavailable)),
		balance:    cfg.Account.Balance,
		globalCap:  cfg.Account.GlobalOrderCap,
	}

	for sym, sc := range cfg.Symbols {
		s.symbols[sym] = domain.SymbolMetadata{
			Symbol:     sym,
			Exchange:   sc.Exchange,
			Sector:     sc.Sector,
			LotSize:    sc.LotSize,
			MaxOrder:   sc.MaxOrder,
			Tradeable:  sc.Tradeable,
			Volatility: domain.VolatilityClass(sc.Volatility),
		}
		s.basePrices[sym] = sc.BasePrice
		if sc.CostBasis != 0 {
			s.costBases[sym] = sc.CostBasis
		}
	}

	for sym, qty := range cfg.Account.Holdings {
		s.holdings[sym] = qty
	}
	for _, sym := range cfg.Market.FeedUnavailable {
		s.feedDown[sym] = true
	}

	if cfg.Faults.ShadowCostBasisSymbol != "" {
		s.shadowSymbol = cfg.Faults.ShadowCostBasisSymbol
		s.shadowBasis = cfg.Faults.ShadowCostBasisValue
	}

	return s
}

// Metadata returns the symbol's static metadata, or false for an unknown
// symbol.
func (s *Service) Metadata(symbol string) (domain.SymbolMetadata, bool) {
	m, ok := s.symbols[symbol]
	return m, ok
}

// BasePrice returns the indicative price used for notional estimates, before
// per-quote jitter.
func (s *Service) BasePrice(symbol string) (float64, bool) {
	p, ok := s.basePrices[symbol]
	return p, ok
}

// CostBasis returns the recorded cost basis for the symbol. Zero means no
// basis is on record; callers must treat that as missing data, not a price.
func (s *Service) CostBasis(symbol string) float64 {
	if s.shadowSymbol == symbol {
		return s.shadowBasis
	}
	return s.costBases[symbol]
}

// Holding returns the account's current position in the symbol.
func (s *Service) Holding(symbol string) int64 {
	return s.holdings[symbol]
}

// Balance returns the account's cash balance.
func (s *Service) Balance() float64 { return s.balance }

// GlobalOrderCap returns the per-order quantity cap that applies to every
// symbol regardless of its own limit.
func (s *Service) GlobalOrderCap() int64 { return s.globalCap }

// FeedAvailable reports whether the live price feed serves the symbol.
func (s *Service) FeedAvailable(symbol string) bool {
	return !s.feedDown[symbol]
}
