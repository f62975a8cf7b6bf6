// Package risk scores orders on a 0-100 composite scale built from position
// size, estimated PnL, and quantity, amplified by volatility and sector
// multipliers, and runs the escalation review for high-scoring orders.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"tradeflow/internal/config"
	"tradeflow/internal/domain"
	"tradeflow/internal/util"
)

// Engine assesses order risk against configured thresholds.
type Engine struct {
	cfg        config.Risk
	restricted map[string]bool
	log        *slog.Logger

	now func() time.Time
}

// New builds a risk Engine.
func New(cfg *config.Config, log *slog.Logger) *Engine {
	restricted := make(map[string]bool, len(cfg.Risk.RestrictedSymbols))
	for _, s := range cfg.Risk.RestrictedSymbols {
		restricted[s] = true
	}
	return &Engine{cfg: cfg.Risk, restricted: restricted, log: log, now: time.Now}
}

// Assess scores the order. The per-sector concentration check consults the
// portfolio system and can be slow, so the call respects context
// cancellation.
func (e *Engine) Assess(ctx context.Context, order *domain.Order, quantity int64, meta *domain.SymbolMetadata, priced *domain.PricingResult) (*domain.RiskAssessmentResult, error) {
	log := e.log.With("order_id", order.ID, "symbol", order.Symbol, "trace_id", util.TraceID(ctx))

	if err := e.compliance(order, meta, priced); err != nil {
		log.Warn("compliance check failed", "code", err.Code, "reason", err.Reason)
		return nil, err
	}

	if delay, ok := e.cfg.ConcentrationDelayMS[meta.Sector]; ok && delay > 0 {
		log.Debug("running sector concentration check", "sector", meta.Sector)
		if err := util.Sleep(ctx, time.Duration(delay)*time.Millisecond); err != nil {
			return nil, &domain.UpstreamUnavailable{
				Stage: "risk_assessment",
				Cause: "concentration check interrupted",
				Err:   err,
			}
		}
	}

	factors := domain.RiskFactors{
		PositionValue: priced.OrderValue,
		EstimatedPnL:  priced.EstimatedPnL,
		Quantity:      quantity,
	}
	factors.PositionSizePoints = positionPoints(priced.OrderValue)
	factors.PnLPoints = pnlPoints(priced)
	factors.QuantityPoints = quantityPoints(quantity)
	factors.Subtotal = factors.PositionSizePoints + factors.PnLPoints + factors.QuantityPoints

	factors.VolatilityMultiplier = e.volatilityMult(meta.Volatility)
	factors.SectorMultiplier = e.sectorMult(meta.Sector)

	score := clamp(factors.Subtotal*factors.VolatilityMultiplier*factors.SectorMultiplier, 0, 100)
	score = math.Round(score*100) / 100

	res := &domain.RiskAssessmentResult{
		Score:     score,
		Level:     e.level(score),
		Approved:  score <= e.cfg.EscalationThreshold,
		Factors:   factors,
		Timestamp: e.now(),
	}
	switch {
	case res.Level == domain.RiskHigh:
		res.Recommendation = "ESCALATE"
	case res.Level == domain.RiskMedium:
		res.Recommendation = "PROCEED_WITH_CAUTION"
	default:
		res.Recommendation = "PROCEED"
	}

	log.Info("risk assessed",
		"score", res.Score,
		"level", res.Level,
		"approved", res.Approved,
		"subtotal", factors.Subtotal,
		"volatility_mult", factors.VolatilityMultiplier,
		"sector_mult", factors.SectorMultiplier)

	return res, nil
}

// Escalate runs the review for orders whose score crossed the escalation
// threshold: the risk desk is notified, portfolio impact is checked, and
// orders above the manual-approval threshold are rejected pending a human.
func (e *Engine) Escalate(ctx context.Context, order *domain.Order, assessment *domain.RiskAssessmentResult, priced *domain.PricingResult) (*domain.EscalationReview, error) {
	log := e.log.With("order_id", order.ID, "symbol", order.Symbol, "trace_id", util.TraceID(ctx))

	review := &domain.EscalationReview{
		RiskManagerNotified:    true,
		PortfolioImpactChecked: true,
		ManualApprovalRequired: assessment.Score > e.cfg.ManualApprovalThreshold,
	}

	// High-value orders go through the extended impact review.
	if priced.OrderValue > e.cfg.HighValueThreshold && e.cfg.HighValueDelayMS > 0 {
		log.Debug("running extended impact review", "order_value", priced.OrderValue)
		if err := util.Sleep(ctx, time.Duration(e.cfg.HighValueDelayMS)*time.Millisecond); err != nil {
			return nil, &domain.UpstreamUnavailable{
				Stage: "escalation",
				Cause: "impact review interrupted",
				Err:   err,
			}
		}
	}

	review.ManualApprovalGranted = !review.ManualApprovalRequired

	log.Info("escalation review complete",
		"score", assessment.Score,
		"manual_approval_required", review.ManualApprovalRequired,
		"approved", review.ManualApprovalGranted)

	return review, nil
}

// compliance runs the regulatory pre-checks. They gate on business rules,
// not on the numeric score, so a failure rejects the order outright.
func (e *Engine) compliance(order *domain.Order, meta *domain.SymbolMetadata, priced *domain.PricingResult) *domain.ValidationFailure {
	if e.restricted[order.Symbol] {
		return &domain.ValidationFailure{
			Code:   domain.ViolationRestrictedSymbol,
			Reason: fmt.Sprintf("%s is on the restricted list", order.Symbol),
		}
	}
	if e.cfg.NotionalCeiling > 0 && priced.OrderValue > e.cfg.NotionalCeiling {
		return &domain.ValidationFailure{
			Code:   domain.ViolationNotionalCeiling,
			Reason: fmt.Sprintf("order value %.2f exceeds the regulatory ceiling %.2f", priced.OrderValue, e.cfg.NotionalCeiling),
		}
	}
	if limit, ok := e.cfg.SectorExposureCaps[meta.Sector]; ok && priced.OrderValue > limit {
		return &domain.ValidationFailure{
			Code:   domain.ViolationSectorExposure,
			Reason: fmt.Sprintf("order value %.2f exceeds the %s exposure cap %.2f", priced.OrderValue, meta.Sector, limit),
		}
	}
	return nil
}

func positionPoints(value float64) float64 {
	switch {
	case value > 100000:
		return 30
	case value > 50000:
		return 20
	case value > 10000:
		return 10
	default:
		return 5
	}
}

func pnlPoints(priced *domain.PricingResult) float64 {
	if !priced.PnLAvailable {
		return 5
	}
	pnl := priced.EstimatedPnL
	switch {
	case pnl < -5000:
		return 30
	case pnl < -1000:
		return 20
	case pnl < 0:
		return 10
	case pnl > 10000:
		return 15
	default:
		return 5
	}
}

func quantityPoints(q int64) float64 {
	switch {
	case q > 500:
		return 20
	case q > 200:
		return 15
	case q > 100:
		return 10
	default:
		return 5
	}
}

func (e *Engine) volatilityMult(class domain.VolatilityClass) float64 {
	if m, ok := e.cfg.VolatilityMultipliers[string(class)]; ok {
		return m
	}
	return 1.0
}

func (e *Engine) sectorMult(sector string) float64 {
	if m, ok := e.cfg.SectorMultipliers[sector]; ok {
		return m
	}
	return e.cfg.DefaultSectorMult
}

func (e *Engine) level(score float64) domain.RiskLevel {
	switch {
	case score <= e.cfg.LevelLowMax:
		return domain.RiskLow
	case score <= e.cfg.LevelMediumMax:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
