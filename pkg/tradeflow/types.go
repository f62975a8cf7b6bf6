package tradeflow

import "time"

// OrderRequest is the JSON body for the order submission endpoints. The
// portfolio manager and custodian fields apply to institutional orders;
// the strategy fields apply to algorithmic orders.
type OrderRequest struct {
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
	Side     string `json:"side"`

	PortfolioManagerID string `json:"portfolio_manager_id,omitempty"`
	CustodianAccount   string `json:"custodian_account,omitempty"`

	StrategyID         string `json:"strategy_id,omitempty"`
	StrategyCredential string `json:"strategy_credential,omitempty"`
}

// Outcome terminal statuses.
const (
	StatusExecuted = "EXECUTED"
	StatusRejected = "REJECTED"
	StatusError    = "ERROR"
)

// Validation is the validation stage record on an outcome.
type Validation struct {
	Passed             bool        `json:"passed"`
	NormalizedQuantity int64       `json:"normalized_quantity"`
	Violations         []Violation `json:"violations,omitempty"`
	ExpressEligible    bool        `json:"express_eligible"`
}

// Violation is one validation rule failure.
type Violation struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Pricing is the pricing stage record on an outcome.
type Pricing struct {
	Symbol         string  `json:"symbol"`
	Price          float64 `json:"price"`
	ExpectedAmount float64 `json:"expected_amount"`
	OrderValue     float64 `json:"order_value"`
	Commission     float64 `json:"commission"`
	Fees           float64 `json:"fees"`
	VolumeDiscount float64 `json:"volume_discount"`
	BulkDiscounted bool    `json:"bulk_discounted"`
	TotalCost      float64 `json:"total_cost"`
	CostBasis      float64 `json:"cost_basis"`
	EstimatedPnL   float64 `json:"estimated_pnl"`
	PnLAvailable   bool    `json:"pnl_available"`
}

// Risk is the risk assessment record on an outcome.
type Risk struct {
	Score          float64 `json:"risk_score"`
	Level          string  `json:"risk_level"`
	Approved       bool    `json:"approved"`
	Recommendation string  `json:"recommendation"`
}

// Tax is the tax-loss analysis record on a qualifying SELL outcome.
type Tax struct {
	CapitalLoss         float64 `json:"capital_loss"`
	TaxBracket          float64 `json:"tax_bracket"`
	EstimatedTaxBenefit float64 `json:"estimated_tax_benefit"`
	LossType            string  `json:"loss_type"`
	WashSaleRisk        bool    `json:"wash_sale_risk"`
	LotMethod           string  `json:"purchase_lot_method"`
}

// Escalation records the manual review of a high-risk order.
type Escalation struct {
	RiskManagerNotified    bool `json:"risk_manager_notified"`
	PortfolioImpactChecked bool `json:"portfolio_impact_checked"`
	ManualApprovalRequired bool `json:"manual_approval_required"`
	ManualApprovalGranted  bool `json:"manual_approval_granted"`
}

// Outcome is the terminal record the server returns for a submitted order.
type Outcome struct {
	OrderID  string   `json:"order_id"`
	TraceID  string   `json:"trace_id"`
	Status   string   `json:"status"`
	Workflow string   `json:"workflow"`
	States   []string `json:"states"`

	Validation *Validation `json:"validation,omitempty"`
	Pricing    *Pricing    `json:"pricing,omitempty"`
	Risk       *Risk       `json:"risk,omitempty"`
	Tax        *Tax        `json:"tax,omitempty"`
	Escalation *Escalation `json:"escalation,omitempty"`

	ExecutionPrice float64   `json:"execution_price,omitempty"`
	ExecutedAt     time.Time `json:"executed_at,omitempty"`

	RejectReason string `json:"reject_reason,omitempty"`
	FailedStage  string `json:"failed_stage,omitempty"`
	ErrorDetail  string `json:"error_detail,omitempty"`
}

// OrderList wraps the outcome listing endpoint's response.
type OrderList struct {
	Orders []Outcome `json:"orders"`
	Count  int       `json:"count"`
}

// Price is the indicative quote for one symbol.
type Price struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Exchange      string  `json:"exchange"`
	Sector        string  `json:"sector"`
	Tradeable     bool    `json:"tradeable"`
	FeedAvailable bool    `json:"feed_available"`
}

// Positions is the live post-trade account view.
type Positions struct {
	Cash        float64          `json:"cash"`
	Positions   map[string]int64 `json:"positions"`
	RealizedPnL float64          `json:"realized_pnl"`
	Executed    int              `json:"executed_orders"`
}

// Health reports service liveness.
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Metrics mirrors the pipeline counters endpoint.
type Metrics struct {
	Received   int64            `json:"orders_received"`
	Executed   int64            `json:"orders_executed"`
	Rejected   int64            `json:"orders_rejected"`
	Errored    int64            `json:"orders_errored"`
	ByWorkflow map[string]int64 `json:"by_workflow"`
}
