// Package validate implements order validation for the standard,
// institutional, and algorithmic workflows: symbol and tradeability checks,
// lot-size normalization, order-size caps, funds and holdings checks, the
// trading window, and the workflow-specific approval rules.
package validate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tradeflow/internal/config"
	"tradeflow/internal/domain"
	"tradeflow/internal/refdata"
	"tradeflow/internal/util"
)

// Validator checks orders against reference data and workflow rules.
type Validator struct {
	ref    *refdata.Service
	window *util.TradingWindow
	caps   *CapStore
	log    *slog.Logger

	expressLimit float64
	inst         config.Institutional
	algo         config.Algo

	now func() time.Time
}

// New builds a Validator. caps may be nil when the algorithmic workflow is
// not in use.
func New(cfg *config.Config, ref *refdata.Service, caps *CapStore, log *slog.Logger) (*Validator, error) {
	window, err := util.NewTradingWindow(cfg.Market.OpenTime, cfg.Market.CloseTime, cfg.Market.AlwaysOpen)
	if err != nil {
		return nil, fmt.Errorf("trading window: %w", err)
	}
	return &Validator{
		ref:          ref,
		window:       window,
		caps:         caps,
		log:          log,
		expressLimit: cfg.Pipeline.ExpressNotionalLimit,
		inst:         cfg.Institutional,
		algo:         cfg.Algo,
		now:          time.Now,
	}, nil
}

// Validate checks the order for the given workflow. Rule failures are
// reported in the result, never as an error; the returned error is reserved
// for infrastructure problems.
func (v *Validator) Validate(ctx context.Context, order *domain.Order, workflow domain.Workflow) (*domain.ValidationResult, error) {
	res := &domain.ValidationResult{Timestamp: v.now()}
	fail := func(code domain.ViolationCode, format string, args ...any) {
		res.Violations = append(res.Violations, domain.Violation{
			Code:   code,
			Reason: fmt.Sprintf(format, args...),
		})
	}

	log := v.log.With("order_id", order.ID, "symbol", order.Symbol, "trace_id", util.TraceID(ctx))

	meta, ok := v.ref.Metadata(order.Symbol)
	if !ok {
		fail(domain.ViolationUnknownSymbol, "symbol %s is not in the trading universe", order.Symbol)
		log.Info("validation rejected", "code", domain.ViolationUnknownSymbol)
		return res, nil
	}
	res.Metadata = &meta

	if !order.Side.Valid() {
		fail(domain.ViolationInvalidQuantity, "side %q is not BUY or SELL", order.Side)
		return res, nil
	}
	if order.Quantity <= 0 {
		fail(domain.ViolationInvalidQuantity, "quantity %d must be positive", order.Quantity)
		return res, nil
	}

	if !meta.Tradeable {
		fail(domain.ViolationNotTradeable, "symbol %s is suspended from trading", order.Symbol)
	}

	// Lot normalization rounds down to the nearest lot multiple; an order
	// smaller than one lot normalizes to zero and fails.
	norm := normalizeLot(order.Quantity, meta.LotSize)
	if norm == 0 {
		fail(domain.ViolationLotSize, "quantity %d is below the lot size %d", order.Quantity, meta.LotSize)
	}
	res.NormalizedQuantity = norm

	if norm > meta.MaxOrder {
		fail(domain.ViolationMaxOrderSize, "quantity %d exceeds the %s limit of %d", norm, order.Symbol, meta.MaxOrder)
	}
	if gcap := v.ref.GlobalOrderCap(); norm > gcap {
		fail(domain.ViolationGlobalCap, "quantity %d exceeds the global order cap of %d", norm, gcap)
	}

	basePrice, _ := v.ref.BasePrice(order.Symbol)
	notional := float64(norm) * basePrice

	fundsOK := true
	switch order.Side {
	case domain.SideBuy:
		if notional > v.ref.Balance() {
			fundsOK = false
			fail(domain.ViolationInsufficientFunds, "estimated cost %.2f exceeds balance %.2f", notional, v.ref.Balance())
		}
	case domain.SideSell:
		if held := v.ref.Holding(order.Symbol); norm > held {
			fundsOK = false
			fail(domain.ViolationInsufficientShares, "selling %d but holding %d", norm, held)
		}
	}

	// The algorithmic workflow trades around the clock; everyone else is
	// bound to the session window.
	if workflow != domain.WorkflowAlgorithmic && !v.window.IsOpen(v.now()) {
		fail(domain.ViolationMarketClosed, "order received outside the trading window")
	}

	switch workflow {
	case domain.WorkflowInstitutional:
		v.checkInstitutional(order, norm, fail)
	case domain.WorkflowAlgorithmic:
		v.checkAlgo(order, norm, fail)
	}

	res.Passed = len(res.Violations) == 0

	// Express eligibility is decided here from the reduced contract so the
	// orchestrator can branch without a second validation pass.
	if workflow == domain.WorkflowStandard {
		res.ExpressEligible = res.Passed && meta.Tradeable && fundsOK && notional < v.expressLimit
	}

	if res.Passed {
		log.Info("validation passed", "normalized_quantity", norm, "express_eligible", res.ExpressEligible)
	} else {
		log.Info("validation rejected", "code", res.FirstViolation().Code, "violations", len(res.Violations))
	}
	return res, nil
}

func (v *Validator) checkInstitutional(order *domain.Order, norm int64, fail func(domain.ViolationCode, string, ...any)) {
	if norm > v.inst.PMApprovalQuantity && order.PortfolioManagerID == "" {
		fail(domain.ViolationPMApprovalRequired,
			"orders above %d shares need a portfolio manager id", v.inst.PMApprovalQuantity)
	}
	if !contains(v.inst.Custodians, order.CustodianAccount) {
		fail(domain.ViolationUnknownCustodian, "custodian account %q is not whitelisted", order.CustodianAccount)
	}
}

func (v *Validator) checkAlgo(order *domain.Order, norm int64, fail func(domain.ViolationCode, string, ...any)) {
	cred, ok := v.algo.Strategies[order.StrategyID]
	if !ok {
		fail(domain.ViolationUnknownStrategy, "strategy %q is not registered", order.StrategyID)
		return
	}
	if order.StrategyCredential != cred {
		fail(domain.ViolationBadCredential, "credential mismatch for strategy %q", order.StrategyID)
	}
	if norm > v.algo.CircuitBreakerQty {
		fail(domain.ViolationCircuitBreaker,
			"quantity %d trips the circuit breaker at %d", norm, v.algo.CircuitBreakerQty)
	}
	if v.caps != nil && v.caps.Count(order.StrategyID, v.now()) >= v.algo.DailyExecutionCap {
		fail(domain.ViolationDailyExecutionLimit,
			"strategy %q reached its daily execution cap of %d", order.StrategyID, v.algo.DailyExecutionCap)
	}
}

// normalizeLot rounds quantity down to a multiple of lot. A lot of zero or
// one leaves the quantity unchanged.
func normalizeLot(quantity, lot int64) int64 {
	if lot <= 1 {
		return quantity
	}
	return lot * (quantity / lot)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
