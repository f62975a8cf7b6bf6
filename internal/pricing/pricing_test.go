package pricing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"tradeflow/internal/config"
	"tradeflow/internal/domain"
	"tradeflow/internal/refdata"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine pins the quote jitter to zero so prices equal the configured
// base price.
func newTestEngine(t *testing.T, mutate func(*config.Config)) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Tax.WashSaleCheckMS = 0
	cfg.Tax.CostBasisVerifyMS = 0
	if mutate != nil {
		mutate(cfg)
	}
	e := New(cfg, refdata.FromConfig(cfg), testLogger())
	e.rand = func() float64 { return 0.5 }
	return e
}

func approx(a, b float64) bool { return math.Abs(a-b) < 0.005 }

func TestPriceRetailBuy(t *testing.T) {
	e := newTestEngine(t, nil)
	order := &domain.Order{ID: "o1", Symbol: "AAPL", Quantity: 100, Side: domain.SideBuy}

	res, err := e.Price(context.Background(), order, 100, domain.WorkflowStandard)
	if err != nil {
		t.Fatalf("Price() error = %v", err)
	}

	if res.Price != 175.50 {
		t.Errorf("price = %v, want 175.50", res.Price)
	}
	if !approx(res.OrderValue, 17550.00) {
		t.Errorf("order value = %v, want 17550.00", res.OrderValue)
	}
	if !approx(res.Commission, 87.75) {
		t.Errorf("commission = %v, want 87.75", res.Commission)
	}
	if !approx(res.Fees, 1.00) {
		t.Errorf("fees = %v, want 1.00", res.Fees)
	}
	if !approx(res.TotalCost, 17638.75) {
		t.Errorf("total = %v, want 17638.75", res.TotalCost)
	}
	// BUY above basis books a negative estimate: -(175.50-165.00)*100.
	if !approx(res.EstimatedPnL, -1050.00) {
		t.Errorf("estimated PnL = %v, want -1050.00", res.EstimatedPnL)
	}
	if res.BulkDiscounted {
		t.Error("100 shares should not trigger the bulk discount")
	}
	if err := e.Verify(domain.SideBuy, res); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestPriceBulkDiscount(t *testing.T) {
	e := newTestEngine(t, nil)
	order := &domain.Order{ID: "o1", Symbol: "AAPL", Quantity: 600, Side: domain.SideBuy}

	res, err := e.Price(context.Background(), order, 600, domain.WorkflowStandard)
	if err != nil {
		t.Fatalf("Price() error = %v", err)
	}
	if !res.BulkDiscounted {
		t.Fatal("600 shares should trigger the bulk discount")
	}
	if !approx(res.ExpectedAmount, 105300.00) {
		t.Errorf("expected amount = %v, want 105300.00", res.ExpectedAmount)
	}
	if !approx(res.OrderValue, 103194.00) {
		t.Errorf("order value = %v, want 103194.00 (2%% off)", res.OrderValue)
	}
	if err := e.Verify(domain.SideBuy, res); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestLegacyBulkDiscountFault(t *testing.T) {
	e := newTestEngine(t, func(cfg *config.Config) {
		cfg.Faults.LegacyBulkDiscount = true
	})
	order := &domain.Order{ID: "o1", Symbol: "AAPL", Quantity: 600, Side: domain.SideBuy}

	res, err := e.Price(context.Background(), order, 600, domain.WorkflowStandard)
	if err != nil {
		t.Fatalf("Price() error = %v", err)
	}

	err = e.Verify(domain.SideBuy, res)
	var ci *domain.CalculationInconsistency
	if !errors.As(err, &ci) {
		t.Fatalf("Verify() error = %v, want CalculationInconsistency", err)
	}
	if ci.Expected == ci.Actual {
		t.Error("inconsistency should carry diverging expected and actual values")
	}
}

func TestPriceSellSurcharge(t *testing.T) {
	e := newTestEngine(t, nil)
	order := &domain.Order{ID: "o1", Symbol: "TSLA", Quantity: 300, Side: domain.SideSell}

	res, err := e.Price(context.Background(), order, 300, domain.WorkflowStandard)
	if err != nil {
		t.Fatalf("Price() error = %v", err)
	}

	// SEC fee plus the 2% large-sale surcharge on 72840.
	wantFees := 72840*0.0000207 + 72840*0.02
	if !approx(res.Fees, math.Round(wantFees*100)/100) {
		t.Errorf("fees = %v, want %.2f", res.Fees, wantFees)
	}
	// SELL proceeds are net of commission and fees.
	if res.TotalCost >= res.OrderValue {
		t.Errorf("sell total %v should be below order value %v", res.TotalCost, res.OrderValue)
	}
	// (242.80 - 230.00) * 300.
	if !approx(res.EstimatedPnL, 3840.00) {
		t.Errorf("estimated PnL = %v, want 3840.00", res.EstimatedPnL)
	}
	if err := e.Verify(domain.SideSell, res); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestPriceSellNoSurchargeOutOfScope(t *testing.T) {
	e := newTestEngine(t, nil)
	order := &domain.Order{ID: "o1", Symbol: "AAPL", Quantity: 300, Side: domain.SideSell}

	res, err := e.Price(context.Background(), order, 300, domain.WorkflowStandard)
	if err != nil {
		t.Fatalf("Price() error = %v", err)
	}
	wantFees := math.Round(52650*0.0000207*100) / 100
	if !approx(res.Fees, wantFees) {
		t.Errorf("fees = %v, want %v (no surcharge for AAPL)", res.Fees, wantFees)
	}
}

func TestPriceMissingCostBasis(t *testing.T) {
	e := newTestEngine(t, func(cfg *config.Config) {
		cfg.Symbols["XYZ"] = config.Symbol{
			Exchange: "NASDAQ", Sector: "Technology", BasePrice: 42,
			LotSize: 1, MaxOrder: 1000, Tradeable: true, Volatility: "low",
		}
	})
	order := &domain.Order{ID: "o1", Symbol: "XYZ", Quantity: 10, Side: domain.SideSell}

	_, err := e.Price(context.Background(), order, 10, domain.WorkflowStandard)
	var di *domain.DataIntegrityDefect
	if !errors.As(err, &di) {
		t.Fatalf("Price() error = %v, want DataIntegrityDefect", err)
	}
	if di.Symbol != "XYZ" {
		t.Errorf("defect symbol = %q, want XYZ", di.Symbol)
	}
}

func TestPriceMissingCostBasisGuardDisabled(t *testing.T) {
	e := newTestEngine(t, func(cfg *config.Config) {
		cfg.Symbols["XYZ"] = config.Symbol{
			Exchange: "NASDAQ", Sector: "Technology", BasePrice: 42,
			LotSize: 1, MaxOrder: 1000, Tradeable: true, Volatility: "low",
		}
		cfg.Faults.SkipCostBasisGuard = true
	})
	order := &domain.Order{ID: "o1", Symbol: "XYZ", Quantity: 10, Side: domain.SideSell}

	res, err := e.Price(context.Background(), order, 10, domain.WorkflowStandard)
	if err != nil {
		t.Fatalf("Price() with guard disabled error = %v", err)
	}
	// The fault runs PnL against the zero basis: (42-0)*10.
	if !approx(res.EstimatedPnL, 420.00) {
		t.Errorf("estimated PnL = %v, want 420.00", res.EstimatedPnL)
	}
}

func TestPriceFeedUnavailable(t *testing.T) {
	e := newTestEngine(t, func(cfg *config.Config) {
		cfg.Symbols["GME"] = config.Symbol{
			Exchange: "NYSE", Sector: "Consumer", BasePrice: 25, CostBasis: 20,
			LotSize: 1, MaxOrder: 1000, Tradeable: true, Volatility: "high",
		}
	})
	order := &domain.Order{ID: "o1", Symbol: "GME", Quantity: 10, Side: domain.SideBuy}

	_, err := e.Price(context.Background(), order, 10, domain.WorkflowStandard)
	var ue *domain.UpstreamUnavailable
	if !errors.As(err, &ue) {
		t.Fatalf("Price() error = %v, want UpstreamUnavailable", err)
	}
	if ue.Stage != "pricing" {
		t.Errorf("stage = %q, want pricing", ue.Stage)
	}
}

func TestPriceInstitutionalVolumeDiscount(t *testing.T) {
	e := newTestEngine(t, nil)
	order := &domain.Order{
		ID: "o1", Symbol: "MSFT", Quantity: 1200, Side: domain.SideBuy,
		PortfolioManagerID: "PM-7", CustodianAccount: "CUST-BNY",
	}

	res, err := e.Price(context.Background(), order, 1200, domain.WorkflowInstitutional)
	if err != nil {
		t.Fatalf("Price() error = %v", err)
	}

	// 1200 shares lands in the >=1000 tier: 0.1% off the quote.
	wantPrice := math.Round(378.90*0.999*100) / 100
	if !approx(res.Price, wantPrice) {
		t.Errorf("effective price = %v, want %v", res.Price, wantPrice)
	}
	if res.VolumeDiscount <= 0 {
		t.Error("volume discount should be recorded")
	}
	wantCommission := math.Round(res.OrderValue*0.001*100) / 100
	if !approx(res.Commission, wantCommission) {
		t.Errorf("commission = %v, want %v", res.Commission, wantCommission)
	}
	if err := e.Verify(domain.SideBuy, res); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestPriceAlgoCachedQuote(t *testing.T) {
	e := newTestEngine(t, nil)
	order := &domain.Order{
		ID: "o1", Symbol: "NVDA", Quantity: 50, Side: domain.SideBuy,
		StrategyID: "momentum-v2", StrategyCredential: "mv2-secret",
	}

	e.rand = func() float64 { return 1.0 } // +2% jitter
	first, err := e.Price(context.Background(), order, 50, domain.WorkflowAlgorithmic)
	if err != nil {
		t.Fatalf("Price() error = %v", err)
	}

	e.rand = func() float64 { return 0.0 } // would be -2% on a fresh sample
	second, err := e.Price(context.Background(), order, 50, domain.WorkflowAlgorithmic)
	if err != nil {
		t.Fatalf("Price() error = %v", err)
	}

	if first.Price != second.Price {
		t.Errorf("algo quotes differ: %v then %v, want cached", first.Price, second.Price)
	}
	if first.PnLAvailable {
		t.Error("algo pricing should not estimate PnL")
	}
	if err := e.Verify(domain.SideBuy, second); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestAnalyzeTaxLoss(t *testing.T) {
	e := newTestEngine(t, nil)
	order := &domain.Order{ID: "o1", Symbol: "NVDA", Quantity: 200, Side: domain.SideSell}
	priced := &domain.PricingResult{
		Symbol: "NVDA", EstimatedPnL: -6000, CostBasis: 600, PnLAvailable: true,
	}

	analysis, err := e.AnalyzeTaxLoss(context.Background(), order, priced)
	if err != nil {
		t.Fatalf("AnalyzeTaxLoss() error = %v", err)
	}

	if !approx(analysis.CapitalLoss, 6000.00) {
		t.Errorf("capital loss = %v, want 6000.00", analysis.CapitalLoss)
	}
	// Benefit is capped by the deduction limit: min(6000, 3000) * 0.24.
	if !approx(analysis.EstimatedTaxBenefit, 720.00) {
		t.Errorf("tax benefit = %v, want 720.00", analysis.EstimatedTaxBenefit)
	}
	if analysis.LossType != "SHORT_TERM" {
		t.Errorf("loss type = %q, want SHORT_TERM (quantity above 100)", analysis.LossType)
	}
	if analysis.LotMethod != "FIFO" {
		t.Errorf("lot method = %q, want FIFO", analysis.LotMethod)
	}
}

func TestAnalyzeTaxLossCancelled(t *testing.T) {
	e := newTestEngine(t, func(cfg *config.Config) {
		cfg.Tax.WashSaleCheckMS = 60000
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.AnalyzeTaxLoss(ctx, &domain.Order{ID: "o1", Symbol: "NVDA", Quantity: 200, Side: domain.SideSell},
		&domain.PricingResult{EstimatedPnL: -100})
	var ue *domain.UpstreamUnavailable
	if !errors.As(err, &ue) {
		t.Fatalf("AnalyzeTaxLoss() error = %v, want UpstreamUnavailable", err)
	}
}
