package risk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"tradeflow/internal/config"
	"tradeflow/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine zeroes the simulated delays so tests run instantly.
func newTestEngine(mutate func(*config.Config)) *Engine {
	cfg := config.Default()
	cfg.Risk.ConcentrationDelayMS = nil
	cfg.Risk.HighValueDelayMS = 0
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg, testLogger())
}

func techMeta(vol domain.VolatilityClass) *domain.SymbolMetadata {
	return &domain.SymbolMetadata{
		Symbol: "AAPL", Sector: "Technology", Volatility: vol,
		LotSize: 1, MaxOrder: 10000, Tradeable: true,
	}
}

func TestAssessLowRisk(t *testing.T) {
	e := newTestEngine(nil)
	order := &domain.Order{ID: "o1", Symbol: "AAPL", Quantity: 100, Side: domain.SideBuy}
	priced := &domain.PricingResult{
		OrderValue: 17550, EstimatedPnL: -1050, PnLAvailable: true,
	}

	res, err := e.Assess(context.Background(), order, 100, techMeta(domain.VolatilityLow), priced)
	if err != nil {
		t.Fatalf("Assess() error = %v", err)
	}

	// 10 (value > 10000) + 20 (pnl < -1000) + 5 (quantity) = 35; x1.0 x1.25.
	if res.Factors.Subtotal != 35 {
		t.Errorf("subtotal = %v, want 35", res.Factors.Subtotal)
	}
	if res.Score != 43.75 {
		t.Errorf("score = %v, want 43.75", res.Score)
	}
	if res.Level != domain.RiskMedium {
		t.Errorf("level = %v, want MEDIUM", res.Level)
	}
	if !res.Approved {
		t.Error("score under the escalation threshold should be approved")
	}
}

func TestAssessClampAt100(t *testing.T) {
	e := newTestEngine(nil)
	order := &domain.Order{ID: "o1", Symbol: "TSLA", Quantity: 600, Side: domain.SideBuy}
	meta := &domain.SymbolMetadata{
		Symbol: "TSLA", Sector: "Automotive", Volatility: domain.VolatilityHigh,
		LotSize: 1, MaxOrder: 3000, Tradeable: true,
	}
	priced := &domain.PricingResult{
		OrderValue: 145680, EstimatedPnL: -6000, PnLAvailable: true,
	}

	// 30 + 30 + 20 = 80; x2.5 x1.1 = 220 before the clamp.
	res, err := e.Assess(context.Background(), order, 600, meta, priced)
	if err != nil {
		t.Fatalf("Assess() error = %v", err)
	}
	if res.Score != 100 {
		t.Errorf("score = %v, want clamped 100", res.Score)
	}
	if res.Level != domain.RiskHigh {
		t.Errorf("level = %v, want HIGH", res.Level)
	}
	if res.Approved {
		t.Error("score above the escalation threshold should not be approved")
	}
	if res.Recommendation != "ESCALATE" {
		t.Errorf("recommendation = %q, want ESCALATE", res.Recommendation)
	}
}

func TestLevelBoundaries(t *testing.T) {
	e := newTestEngine(nil)
	cases := []struct {
		score float64
		want  domain.RiskLevel
	}{
		{0, domain.RiskLow},
		{40, domain.RiskLow},
		{40.01, domain.RiskMedium},
		{75, domain.RiskMedium},
		{75.01, domain.RiskHigh},
		{100, domain.RiskHigh},
	}
	for _, c := range cases {
		if got := e.level(c.score); got != c.want {
			t.Errorf("level(%v) = %v, want %v", c.score, got, c.want)
		}
	}
}

func TestPnLPointsWithoutEstimate(t *testing.T) {
	// Algo pricing carries no PnL; the factor falls back to neutral.
	if got := pnlPoints(&domain.PricingResult{PnLAvailable: false, EstimatedPnL: -99999}); got != 5 {
		t.Errorf("pnlPoints without estimate = %v, want 5", got)
	}
}

func TestAssessConcentrationCancelled(t *testing.T) {
	e := newTestEngine(func(cfg *config.Config) {
		cfg.Risk.ConcentrationDelayMS = map[string]int{"Technology": 60000}
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	order := &domain.Order{ID: "o1", Symbol: "AAPL", Quantity: 100, Side: domain.SideBuy}
	_, err := e.Assess(ctx, order, 100, techMeta(domain.VolatilityLow), &domain.PricingResult{PnLAvailable: true})
	var ue *domain.UpstreamUnavailable
	if !errors.As(err, &ue) {
		t.Fatalf("Assess() error = %v, want UpstreamUnavailable", err)
	}
	if ue.Stage != "risk_assessment" {
		t.Errorf("stage = %q, want risk_assessment", ue.Stage)
	}
}

func TestComplianceChecks(t *testing.T) {
	e := newTestEngine(func(cfg *config.Config) {
		cfg.Risk.RestrictedSymbols = []string{"BADCO"}
		cfg.Risk.NotionalCeiling = 1000000
		cfg.Risk.SectorExposureCaps = map[string]float64{"Technology": 750000}
	})
	ctx := context.Background()

	cases := []struct {
		name     string
		symbol   string
		sector   string
		value    float64
		wantCode domain.ViolationCode
	}{
		{"restricted symbol", "BADCO", "Technology", 1000, domain.ViolationRestrictedSymbol},
		{"notional ceiling", "AAPL", "Consumer", 1200000, domain.ViolationNotionalCeiling},
		{"sector exposure cap", "AAPL", "Technology", 800000, domain.ViolationSectorExposure},
	}
	for _, c := range cases {
		order := &domain.Order{ID: "o1", Symbol: c.symbol, Quantity: 10, Side: domain.SideBuy}
		meta := &domain.SymbolMetadata{Symbol: c.symbol, Sector: c.sector, Volatility: domain.VolatilityLow, LotSize: 1, Tradeable: true}
		_, err := e.Assess(ctx, order, 10, meta, &domain.PricingResult{OrderValue: c.value, PnLAvailable: true})

		var vf *domain.ValidationFailure
		if !errors.As(err, &vf) {
			t.Fatalf("%s: Assess() error = %v, want ValidationFailure", c.name, err)
		}
		if vf.Code != c.wantCode {
			t.Errorf("%s: code = %v, want %v", c.name, vf.Code, c.wantCode)
		}
	}
}

func TestCompliancePassesUnderLimits(t *testing.T) {
	e := newTestEngine(nil)
	order := &domain.Order{ID: "o1", Symbol: "AAPL", Quantity: 100, Side: domain.SideBuy}
	priced := &domain.PricingResult{OrderValue: 17550, EstimatedPnL: -1050, PnLAvailable: true}

	if _, err := e.Assess(context.Background(), order, 100, techMeta(domain.VolatilityLow), priced); err != nil {
		t.Fatalf("Assess() error = %v", err)
	}
}

func TestEscalateGrantsBelowManualThreshold(t *testing.T) {
	e := newTestEngine(nil)
	order := &domain.Order{ID: "o1", Symbol: "TSLA", Quantity: 300, Side: domain.SideBuy}
	assessment := &domain.RiskAssessmentResult{Score: 80, Level: domain.RiskHigh}
	priced := &domain.PricingResult{OrderValue: 72840}

	review, err := e.Escalate(context.Background(), order, assessment, priced)
	if err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}
	if !review.RiskManagerNotified || !review.PortfolioImpactChecked {
		t.Error("escalation must notify the desk and check portfolio impact")
	}
	if review.ManualApprovalRequired {
		t.Error("score 80 is under the manual threshold of 85")
	}
	if !review.ManualApprovalGranted {
		t.Error("review under the manual threshold should be granted")
	}
}

func TestEscalateRejectsAboveManualThreshold(t *testing.T) {
	e := newTestEngine(nil)
	order := &domain.Order{ID: "o1", Symbol: "TSLA", Quantity: 600, Side: domain.SideBuy}
	assessment := &domain.RiskAssessmentResult{Score: 100, Level: domain.RiskHigh}
	priced := &domain.PricingResult{OrderValue: 145680}

	review, err := e.Escalate(context.Background(), order, assessment, priced)
	if err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}
	if !review.ManualApprovalRequired {
		t.Error("score 100 requires manual approval")
	}
	if review.ManualApprovalGranted {
		t.Error("manual approval must not be granted automatically")
	}
}
