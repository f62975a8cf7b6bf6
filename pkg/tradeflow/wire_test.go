package tradeflow

import (
	"encoding/json"
	"testing"
	"time"

	"tradeflow/internal/domain"
)

// TestOutcomeDecodesServerWire marshals the server-side outcome type and
// decodes it through the client types, so a tag drift between the two is
// caught here rather than by a confused caller reading zeroed fields.
func TestOutcomeDecodesServerWire(t *testing.T) {
	executed := time.Date(2026, 8, 26, 14, 30, 0, 0, time.UTC)
	server := domain.OrderOutcome{
		OrderID:  "ord-wire",
		TraceID:  "trace-wire",
		Status:   domain.StatusExecuted,
		Workflow: domain.WorkflowEscalation,
		States:   []domain.State{domain.StateReceived, domain.StateValidating, domain.StateExecuted},
		Validation: &domain.ValidationResult{
			Passed:             true,
			NormalizedQuantity: 150,
			ExpressEligible:    false,
		},
		Pricing: &domain.PricingResult{
			Symbol:         "NVDA",
			Price:          880.25,
			ExpectedAmount: 132037.50,
			OrderValue:     132037.50,
			Commission:     660.19,
			Fees:           145.24,
			TotalCost:      132843.93,
			CostBasis:      700,
			EstimatedPnL:   27037.50,
			PnLAvailable:   true,
		},
		Risk: &domain.RiskAssessmentResult{
			Score:          82.5,
			Level:          domain.RiskHigh,
			Approved:       true,
			Recommendation: "escalate for manual review",
		},
		Escalation: &domain.EscalationReview{
			RiskManagerNotified:    true,
			PortfolioImpactChecked: true,
			ManualApprovalRequired: false,
			ManualApprovalGranted:  true,
		},
		ExecutionPrice: 881.10,
		ExecutedAt:     executed,
	}

	raw, err := json.Marshal(server)
	if err != nil {
		t.Fatal(err)
	}
	var got Outcome
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}

	if got.OrderID != "ord-wire" || got.TraceID != "trace-wire" {
		t.Errorf("identity = %q/%q", got.OrderID, got.TraceID)
	}
	if got.Status != StatusExecuted || got.Workflow != "escalation" {
		t.Errorf("status/workflow = %q/%q", got.Status, got.Workflow)
	}
	if len(got.States) != 3 || got.States[0] != "RECEIVED" {
		t.Errorf("states = %v", got.States)
	}
	if got.Validation == nil || got.Validation.NormalizedQuantity != 150 || !got.Validation.Passed {
		t.Errorf("validation = %+v", got.Validation)
	}
	if got.Pricing == nil || got.Pricing.Price != 880.25 || got.Pricing.TotalCost != 132843.93 {
		t.Errorf("pricing = %+v", got.Pricing)
	}
	if got.Risk == nil {
		t.Fatal("risk block missing")
	}
	if got.Risk.Score != 82.5 {
		t.Errorf("risk score = %v, want 82.5", got.Risk.Score)
	}
	if got.Risk.Level != "HIGH" {
		t.Errorf("risk level = %q, want HIGH", got.Risk.Level)
	}
	if got.Escalation == nil || !got.Escalation.ManualApprovalGranted {
		t.Errorf("escalation = %+v", got.Escalation)
	}
	if got.ExecutionPrice != 881.10 || !got.ExecutedAt.Equal(executed) {
		t.Errorf("execution = %v at %v", got.ExecutionPrice, got.ExecutedAt)
	}
}

// TestTaxDecodesServerWire covers the tax block separately since it only
// appears on loss-booking SELL outcomes.
func TestTaxDecodesServerWire(t *testing.T) {
	raw, err := json.Marshal(domain.OrderOutcome{
		Status:   domain.StatusExecuted,
		Workflow: domain.WorkflowTaxLoss,
		Tax: &domain.TaxAnalysis{
			CapitalLoss:         2500,
			TaxBracket:          0.25,
			EstimatedTaxBenefit: 625,
			LossType:            "SHORT_TERM",
			WashSaleRisk:        true,
			LotMethod:           "FIFO",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	var got Outcome
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got.Tax == nil {
		t.Fatal("tax block missing")
	}
	if got.Tax.CapitalLoss != 2500 || got.Tax.EstimatedTaxBenefit != 625 {
		t.Errorf("tax amounts = %+v", got.Tax)
	}
	if got.Tax.LossType != "SHORT_TERM" || !got.Tax.WashSaleRisk || got.Tax.LotMethod != "FIFO" {
		t.Errorf("tax detail = %+v", got.Tax)
	}
}
