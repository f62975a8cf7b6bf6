// Package domain defines the shared types flowing through the order pipeline:
// orders, per-stage results, workflow variants, pipeline states, and the
// error taxonomy.
package domain

import "time"

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether the side is one of the two known values.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Workflow is the pipeline variant an order travels through. Standard,
// institutional, and algorithmic are selected up front from the request;
// express, escalation, and tax-loss are selected from the stage results.
type Workflow string

const (
	WorkflowStandard      Workflow = "standard"
	WorkflowInstitutional Workflow = "institutional"
	WorkflowAlgorithmic   Workflow = "algorithmic"
	WorkflowExpress       Workflow = "express"
	WorkflowEscalation    Workflow = "escalation"
	WorkflowTaxLoss       Workflow = "tax_loss"
)

// State is a position in the pipeline state machine. An order's outcome
// records the full path it took.
type State string

const (
	StateReceived        State = "RECEIVED"
	StateValidating      State = "VALIDATING"
	StatePricing         State = "PRICING"
	StateRiskAssessing   State = "RISK_ASSESSING"
	StateEscalating      State = "ESCALATING"
	StateTaxAnalyzing    State = "TAX_ANALYZING"
	StateExpressFastPath State = "EXPRESS_FAST_PATH"
	StateExecuting       State = "EXECUTING"
	StateExecuted        State = "EXECUTED"
	StateRejected        State = "REJECTED"
	StateErrored         State = "ERRORED"
)

// OrderStatus is the terminal status recorded on an outcome.
type OrderStatus string

const (
	StatusExecuted OrderStatus = "EXECUTED"
	StatusRejected OrderStatus = "REJECTED"
	StatusError    OrderStatus = "ERROR"
)

// VolatilityClass buckets symbols for the risk assessor's volatility
// multiplier.
type VolatilityClass string

const (
	VolatilityLow    VolatilityClass = "low"
	VolatilityMedium VolatilityClass = "medium"
	VolatilityHigh   VolatilityClass = "high"
)

// RiskLevel classifies a composite risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Order is an inbound order. Quantity is replaced by the lot-normalized
// quantity once validation succeeds; after that the order is not mutated.
type Order struct {
	ID       string `json:"order_id"`
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
	Side     Side   `json:"side"`

	// Workflow-specific fields; presence selects the institutional or
	// algorithmic validator/pricing variant.
	PortfolioManagerID string `json:"portfolio_manager_id,omitempty"`
	CustodianAccount   string `json:"custodian_account,omitempty"`
	StrategyID         string `json:"strategy_id,omitempty"`
	StrategyCredential string `json:"strategy_credential,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// SymbolMetadata is static, read-only reference data for one symbol.
type SymbolMetadata struct {
	Symbol     string          `json:"symbol"`
	Exchange   string          `json:"exchange"`
	Sector     string          `json:"sector"`
	LotSize    int64           `json:"lot_size"`
	MaxOrder   int64           `json:"max_order"`
	Tradeable  bool            `json:"tradeable"`
	Volatility VolatilityClass `json:"volatility"`
}

// Violation is a single failed validation rule.
type Violation struct {
	Code   ViolationCode `json:"code"`
	Reason string        `json:"reason"`
}

// ValidationResult is the validator's verdict for one order.
type ValidationResult struct {
	Passed             bool            `json:"passed"`
	NormalizedQuantity int64           `json:"normalized_quantity"`
	Violations         []Violation     `json:"violations,omitempty"`
	Metadata           *SymbolMetadata `json:"metadata,omitempty"`

	// ExpressEligible records that the reduced express contract
	// (tradeability + balance) passed and the notional was below the
	// small-order threshold at validation time.
	ExpressEligible bool      `json:"express_eligible"`
	Timestamp       time.Time `json:"timestamp"`
}

// FirstViolation returns the first violated rule, or a zero Violation when
// the result passed.
func (r *ValidationResult) FirstViolation() Violation {
	if len(r.Violations) == 0 {
		return Violation{}
	}
	return r.Violations[0]
}

// PricingResult is the pricing engine's cost/proceeds breakdown for one
// order. Price is resampled per call, so two results for the same order may
// legitimately differ.
type PricingResult struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`

	// ExpectedAmount is quantity x price before any bulk discount;
	// OrderValue is the amount the discount was actually applied to. The
	// two are carried together so expected-vs-actual divergence is always
	// computable.
	ExpectedAmount float64 `json:"expected_amount"`
	OrderValue     float64 `json:"order_value"`

	BaseAmount     float64 `json:"base_amount"`
	Commission     float64 `json:"commission"`
	Fees           float64 `json:"fees"`
	VolumeDiscount float64 `json:"volume_discount,omitempty"`
	BulkDiscounted bool    `json:"bulk_discounted"`

	// TotalCost is the debit for a BUY or the net proceeds for a SELL.
	TotalCost float64 `json:"total_cost"`

	// CostBasis of 0 means "no basis available"; PnLAvailable is false
	// when the PnL computation was skipped (algorithmic workflow).
	CostBasis    float64 `json:"cost_basis"`
	EstimatedPnL float64 `json:"estimated_pnl"`
	PnLAvailable bool    `json:"pnl_available"`

	Workflow  Workflow  `json:"workflow"`
	Timestamp time.Time `json:"timestamp"`
}

// RiskFactors itemizes the contributions to a composite risk score.
type RiskFactors struct {
	PositionSizePoints   float64 `json:"position_size_points"`
	PositionValue        float64 `json:"position_value"`
	PnLPoints            float64 `json:"pnl_points"`
	EstimatedPnL         float64 `json:"estimated_pnl"`
	QuantityPoints       float64 `json:"quantity_points"`
	Quantity             int64   `json:"quantity"`
	Subtotal             float64 `json:"subtotal"`
	VolatilityMultiplier float64 `json:"volatility_multiplier"`
	SectorMultiplier     float64 `json:"sector_multiplier"`
}

// RiskAssessmentResult is the risk assessor's verdict for one order.
type RiskAssessmentResult struct {
	Score          float64     `json:"risk_score"`
	Level          RiskLevel   `json:"risk_level"`
	Approved       bool        `json:"approved"`
	Recommendation string      `json:"recommendation"`
	Factors        RiskFactors `json:"risk_factors"`
	Timestamp      time.Time   `json:"timestamp"`
}

// TaxAnalysis is produced for SELL orders with a negative estimated PnL.
type TaxAnalysis struct {
	CapitalLoss         float64 `json:"capital_loss"`
	TaxBracket          float64 `json:"tax_bracket"`
	EstimatedTaxBenefit float64 `json:"estimated_tax_benefit"`
	LossType            string  `json:"loss_type"`
	DeductionLimit      float64 `json:"deduction_limit"`

	WashSaleRisk     bool `json:"wash_sale_risk"`
	RecentBuys30Days int  `json:"recent_buys_within_30_days"`

	VerifiedCostBasis float64 `json:"verified_cost_basis"`
	LotMethod         string  `json:"purchase_lot_method"`
}

// EscalationReview records what the escalation branch did for a high-risk
// order.
type EscalationReview struct {
	RiskManagerNotified    bool `json:"risk_manager_notified"`
	PortfolioImpactChecked bool `json:"portfolio_impact_checked"`
	ManualApprovalRequired bool `json:"manual_approval_required"`
	ManualApprovalGranted  bool `json:"manual_approval_granted"`
}

// OrderOutcome is the terminal record for one order. The execution recorder
// and orchestrator are its only writers.
type OrderOutcome struct {
	OrderID  string      `json:"order_id"`
	TraceID  string      `json:"trace_id"`
	Status   OrderStatus `json:"status"`
	Workflow Workflow    `json:"workflow"`

	// States is the path taken through the pipeline state machine, in
	// order, ending in a terminal state.
	States []State `json:"states"`

	Order      *Order                `json:"order,omitempty"`
	Validation *ValidationResult     `json:"validation,omitempty"`
	Pricing    *PricingResult        `json:"pricing,omitempty"`
	Risk       *RiskAssessmentResult `json:"risk,omitempty"`
	Tax        *TaxAnalysis          `json:"tax,omitempty"`
	Escalation *EscalationReview     `json:"escalation,omitempty"`

	ExecutionPrice float64   `json:"execution_price,omitempty"`
	ExecutedAt     time.Time `json:"executed_at,omitempty"`

	RejectReason string `json:"reject_reason,omitempty"`
	FailedStage  string `json:"failed_stage,omitempty"`
	ErrorDetail  string `json:"error_detail,omitempty"`
}

// CurrentState returns the last state on the path, or RECEIVED for an empty
// path.
func (o *OrderOutcome) CurrentState() State {
	if len(o.States) == 0 {
		return StateReceived
	}
	return o.States[len(o.States)-1]
}

// Visited reports whether the order passed through the given state.
func (o *OrderOutcome) Visited(s State) bool {
	for _, st := range o.States {
		if st == s {
			return true
		}
	}
	return false
}
