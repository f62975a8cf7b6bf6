// Package pricing computes execution prices, commissions, fees, discounts,
// and estimated PnL for all order workflows, and runs the tax-loss analysis
// for losing SELL orders.
package pricing

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"tradeflow/internal/config"
	"tradeflow/internal/domain"
	"tradeflow/internal/refdata"
	"tradeflow/internal/util"
)

// Engine prices orders against the simulated market. Quotes carry uniform
// jitter around the base price, so repeated calls for the same order return
// different results.
type Engine struct {
	ref    *refdata.Service
	cfg    config.Pricing
	tax    config.Tax
	faults config.Faults
	log    *slog.Logger

	// The algorithmic workflow trades on a cached quote per symbol rather
	// than resampling on every order.
	cacheMu    sync.Mutex
	quoteCache map[string]float64

	now  func() time.Time
	rand func() float64
}

// New builds a pricing Engine.
func New(cfg *config.Config, ref *refdata.Service, log *slog.Logger) *Engine {
	return &Engine{
		ref:        ref,
		cfg:        cfg.Pricing,
		tax:        cfg.Tax,
		faults:     cfg.Faults,
		log:        log,
		quoteCache: make(map[string]float64),
		now:        time.Now,
		rand:       rand.Float64,
	}
}

// Price computes the cost breakdown for an order whose quantity has already
// been lot-normalized. Errors are drawn from the pipeline taxonomy: feed
// outages surface as UpstreamUnavailable, a missing cost basis as
// DataIntegrityDefect.
func (e *Engine) Price(ctx context.Context, order *domain.Order, quantity int64, workflow domain.Workflow) (*domain.PricingResult, error) {
	log := e.log.With("order_id", order.ID, "symbol", order.Symbol, "trace_id", util.TraceID(ctx))

	if !e.ref.FeedAvailable(order.Symbol) {
		return nil, &domain.UpstreamUnavailable{
			Stage: "pricing",
			Cause: "price feed unavailable for " + order.Symbol,
		}
	}

	price, err := e.quote(order.Symbol, workflow)
	if err != nil {
		return nil, err
	}

	res := &domain.PricingResult{
		Symbol:    order.Symbol,
		Workflow:  workflow,
		Timestamp: e.now(),
	}

	switch workflow {
	case domain.WorkflowInstitutional:
		e.priceInstitutional(order, quantity, price, res)
	case domain.WorkflowAlgorithmic:
		e.priceAlgo(order, quantity, price, res)
	default:
		e.priceRetail(order, quantity, price, res)
	}

	// Estimated PnL needs a cost basis on record. Zero is the missing-data
	// sentinel, never a price, so the computation is short-circuited
	// instead of run on a fabricated value. The algorithmic workflow skips
	// PnL entirely.
	if workflow != domain.WorkflowAlgorithmic {
		basis := e.ref.CostBasis(order.Symbol)
		if basis == 0 && !e.faults.SkipCostBasisGuard {
			return nil, &domain.DataIntegrityDefect{
				Symbol:    order.Symbol,
				Invariant: "no cost basis on record",
			}
		}
		res.CostBasis = basis
		res.EstimatedPnL = estimatePnL(order.Side, res.Price, basis, quantity)
		res.PnLAvailable = true
	}

	log.Info("order priced",
		"workflow", workflow,
		"price", res.Price,
		"order_value", res.OrderValue,
		"commission", res.Commission,
		"fees", res.Fees,
		"total", res.TotalCost,
		"estimated_pnl", res.EstimatedPnL)

	return res, nil
}

// quote samples a jittered quote for the symbol; algorithmic orders reuse
// the first quote taken for a symbol.
func (e *Engine) quote(symbol string, workflow domain.Workflow) (float64, error) {
	if workflow == domain.WorkflowAlgorithmic {
		e.cacheMu.Lock()
		defer e.cacheMu.Unlock()
		if p, ok := e.quoteCache[symbol]; ok {
			return p, nil
		}
		p, err := e.sample(symbol)
		if err != nil {
			return 0, err
		}
		e.quoteCache[symbol] = p
		return p, nil
	}
	return e.sample(symbol)
}

func (e *Engine) sample(symbol string) (float64, error) {
	base, ok := e.ref.BasePrice(symbol)
	if !ok || base <= 0 {
		return 0, &domain.DataIntegrityDefect{Symbol: symbol, Invariant: "no base price on record"}
	}
	jitter := (e.rand()*2 - 1) * e.cfg.PriceVariancePct
	return round2(base * (1 + jitter)), nil
}

// priceRetail handles the standard and express workflows.
func (e *Engine) priceRetail(order *domain.Order, quantity int64, price float64, res *domain.PricingResult) {
	res.Price = price
	res.ExpectedAmount = round2(float64(quantity) * price)
	res.OrderValue = res.ExpectedAmount

	if quantity > e.cfg.BulkDiscountQuantity {
		res.OrderValue = round2(res.ExpectedAmount * e.cfg.BulkDiscountFactor)
		res.BulkDiscounted = true
	}

	res.BaseAmount = res.OrderValue
	res.Commission = round2(res.OrderValue * e.cfg.RetailCommissionRate)
	res.Fees = e.retailFees(order, quantity, res.OrderValue)

	// The legacy discount path computed the final total from the
	// pre-discount amount, so the reported value and the charged total
	// disagree whenever the discount applies.
	chargeBase := res.OrderValue
	if e.faults.LegacyBulkDiscount && res.BulkDiscounted {
		chargeBase = res.ExpectedAmount
	}
	res.TotalCost = settle(order.Side, chargeBase, res.Commission, res.Fees)
}

func (e *Engine) retailFees(order *domain.Order, quantity int64, orderValue float64) float64 {
	var fees float64
	switch order.Side {
	case domain.SideBuy:
		fees = float64(quantity) * e.cfg.BuyFeePerShare
	case domain.SideSell:
		fees = orderValue * e.cfg.SellSECFeeRate
		if quantity > e.cfg.SurchargeQuantity && e.surchargeApplies(order.Symbol) {
			fees += orderValue * e.cfg.SurchargeRate
		}
	}
	return round2(fees)
}

func (e *Engine) surchargeApplies(symbol string) bool {
	if len(e.cfg.SurchargeSymbols) == 0 {
		return true
	}
	for _, s := range e.cfg.SurchargeSymbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// priceInstitutional applies the volume discount schedule to the quote
// itself, then the institutional commission rate.
func (e *Engine) priceInstitutional(order *domain.Order, quantity int64, price float64, res *domain.PricingResult) {
	var discount float64
	for _, tier := range e.cfg.VolumeDiscountTiers {
		if quantity >= tier.MinQuantity {
			discount = tier.Discount
			break
		}
	}

	effective := round2(price * (1 - discount))
	res.Price = effective
	res.VolumeDiscount = round2(float64(quantity) * price * discount)
	res.ExpectedAmount = round2(float64(quantity) * effective)
	res.OrderValue = res.ExpectedAmount
	res.BaseAmount = res.OrderValue
	res.Commission = round2(res.OrderValue * e.cfg.InstitutionalCommissionRate)
	res.Fees = e.retailFees(order, quantity, res.OrderValue)
	res.TotalCost = settle(order.Side, res.OrderValue, res.Commission, res.Fees)
}

// priceAlgo charges the algo commission and per-share fee on the cached
// quote. No PnL estimate is produced for this workflow.
func (e *Engine) priceAlgo(order *domain.Order, quantity int64, price float64, res *domain.PricingResult) {
	res.Price = price
	res.ExpectedAmount = round2(float64(quantity) * price)
	res.OrderValue = res.ExpectedAmount
	res.BaseAmount = res.OrderValue
	res.Commission = round2(res.OrderValue * e.cfg.AlgoCommissionRate)
	res.Fees = round2(float64(quantity) * e.cfg.AlgoFeePerShare)
	res.TotalCost = settle(order.Side, res.OrderValue, res.Commission, res.Fees)
}

// Verify recomputes the settlement total and commission rate from the
// result's own components and reports a CalculationInconsistency when they
// disagree beyond tolerance.
func (e *Engine) Verify(s domain.Side, res *domain.PricingResult) error {
	expectedTotal := settle(s, res.OrderValue, res.Commission, res.Fees)
	if math.Abs(res.TotalCost-expectedTotal) > e.cfg.TotalTolerance {
		return &domain.CalculationInconsistency{
			What:      "order total",
			Expected:  expectedTotal,
			Actual:    res.TotalCost,
			Tolerance: e.cfg.TotalTolerance,
		}
	}

	rate := commissionRate(res.Workflow, e.cfg)
	if res.OrderValue > 0 {
		actual := res.Commission / res.OrderValue
		if math.Abs(actual-rate) > e.cfg.CommissionTolerance {
			return &domain.CalculationInconsistency{
				What:      "commission rate",
				Expected:  rate,
				Actual:    actual,
				Tolerance: e.cfg.CommissionTolerance,
			}
		}
	}
	return nil
}

// AnalyzeTaxLoss produces a tax-loss report for a SELL with a negative
// estimated PnL. The wash-sale and lot checks consult slow systems, so the
// call respects context cancellation.
func (e *Engine) AnalyzeTaxLoss(ctx context.Context, order *domain.Order, priced *domain.PricingResult) (*domain.TaxAnalysis, error) {
	log := e.log.With("order_id", order.ID, "symbol", order.Symbol, "trace_id", util.TraceID(ctx))

	// Wash-sale screen: look for buys of the same symbol within 30 days.
	if err := util.Sleep(ctx, time.Duration(e.tax.WashSaleCheckMS)*time.Millisecond); err != nil {
		return nil, &domain.UpstreamUnavailable{Stage: "tax_analysis", Cause: "wash-sale check interrupted", Err: err}
	}

	// Lot verification against the recorded basis, FIFO ordering.
	if err := util.Sleep(ctx, time.Duration(e.tax.CostBasisVerifyMS)*time.Millisecond); err != nil {
		return nil, &domain.UpstreamUnavailable{Stage: "tax_analysis", Cause: "cost basis verification interrupted", Err: err}
	}

	loss := round2(-priced.EstimatedPnL)
	deductible := math.Min(loss, e.tax.DeductionLimit)

	lossType := "LONG_TERM"
	if order.Quantity > e.tax.ShortTermQuantity {
		lossType = "SHORT_TERM"
	}

	analysis := &domain.TaxAnalysis{
		CapitalLoss:         loss,
		TaxBracket:          e.tax.Bracket,
		EstimatedTaxBenefit: round2(deductible * e.tax.Bracket),
		LossType:            lossType,
		DeductionLimit:      e.tax.DeductionLimit,
		WashSaleRisk:        false,
		RecentBuys30Days:    0,
		VerifiedCostBasis:   priced.CostBasis,
		LotMethod:           "FIFO",
	}

	log.Info("tax-loss analysis complete",
		"capital_loss", analysis.CapitalLoss,
		"tax_benefit", analysis.EstimatedTaxBenefit,
		"loss_type", analysis.LossType)

	return analysis, nil
}

// estimatePnL is signed from the account's perspective: selling above basis
// realizes a gain, buying above basis books an unrealized mark against the
// new lot.
func estimatePnL(s domain.Side, price, basis float64, quantity int64) float64 {
	pnl := (price - basis) * float64(quantity)
	if s == domain.SideBuy {
		pnl = -pnl
	}
	return round2(pnl)
}

// settle folds commission and fees into the order value: a debit for buys,
// net proceeds for sells.
func settle(s domain.Side, value, commission, fees float64) float64 {
	if s == domain.SideSell {
		return round2(value - commission - fees)
	}
	return round2(value + commission + fees)
}

func commissionRate(w domain.Workflow, cfg config.Pricing) float64 {
	switch w {
	case domain.WorkflowInstitutional:
		return cfg.InstitutionalCommissionRate
	case domain.WorkflowAlgorithmic:
		return cfg.AlgoCommissionRate
	default:
		return cfg.RetailCommissionRate
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
