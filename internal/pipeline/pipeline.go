// Package pipeline orchestrates an order through its stages: validation,
// pricing, risk assessment, the escalation / tax-loss / express branches,
// and execution. Every order ends in exactly one terminal outcome; stage
// failures are classified by the error taxonomy, never swallowed.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tradeflow/internal/config"
	"tradeflow/internal/domain"
	"tradeflow/internal/execution"
	"tradeflow/internal/pricing"
	"tradeflow/internal/risk"
	"tradeflow/internal/util"
	"tradeflow/internal/validate"
)

// Orchestrator drives orders through the pipeline.
type Orchestrator struct {
	validator *validate.Validator
	pricer    *pricing.Engine
	risker    *risk.Engine
	executor  *execution.Engine
	metrics   *Metrics
	log       *slog.Logger

	stageTimeout   time.Duration
	retryAttempts  int
	retryBaseDelay time.Duration
}

// New builds an Orchestrator.
func New(cfg *config.Config, validator *validate.Validator, pricer *pricing.Engine, risker *risk.Engine, executor *execution.Engine, metrics *Metrics, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		validator:      validator,
		pricer:         pricer,
		risker:         risker,
		executor:       executor,
		metrics:        metrics,
		log:            log,
		stageTimeout:   time.Duration(cfg.Pipeline.StageTimeoutMS) * time.Millisecond,
		retryAttempts:  cfg.Pipeline.RetryBudget + 1,
		retryBaseDelay: time.Duration(cfg.Pipeline.RetryBaseDelayMS) * time.Millisecond,
	}
}

// Process drives one order to a terminal outcome. It never returns an
// error: infrastructure failures become ERRORED outcomes with the failed
// stage recorded. Every submission gets a fresh order id, so resubmitting
// the same request is a new order, not a replay.
func (o *Orchestrator) Process(ctx context.Context, order *domain.Order, workflow domain.Workflow) *domain.OrderOutcome {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	ctx = util.WithTraceID(ctx, util.TraceID(ctx))

	outcome := &domain.OrderOutcome{
		OrderID:  order.ID,
		TraceID:  util.TraceID(ctx),
		Workflow: workflow,
		Order:    order,
		States:   []domain.State{domain.StateReceived},
	}
	o.metrics.recordReceived()

	log := o.log.With("order_id", order.ID, "symbol", order.Symbol, "workflow", workflow, "trace_id", outcome.TraceID)
	log.Info("order received", "side", order.Side, "quantity", order.Quantity)

	o.run(ctx, outcome, log)

	o.metrics.recordOutcome(outcome)
	if err := o.executor.Record(ctx, outcome); err != nil {
		log.Error("recording outcome", "error", err)
	}

	log.Info("order finished",
		"status", outcome.Status,
		"final_workflow", outcome.Workflow,
		"states", outcome.States)
	return outcome
}

func (o *Orchestrator) run(ctx context.Context, outcome *domain.OrderOutcome, log *slog.Logger) {
	order := outcome.Order

	// Validation.
	outcome.States = append(outcome.States, domain.StateValidating)
	var validated *domain.ValidationResult
	err := o.stage(ctx, "validation", func(sctx context.Context) error {
		var serr error
		validated, serr = o.validator.Validate(sctx, order, outcome.Workflow)
		return serr
	})
	if err != nil {
		o.errored(outcome, "validation", err, log)
		return
	}
	outcome.Validation = validated
	if !validated.Passed {
		v := validated.FirstViolation()
		o.rejected(outcome, v.Reason, log)
		return
	}

	// Pricing.
	outcome.States = append(outcome.States, domain.StatePricing)
	var priced *domain.PricingResult
	err = o.stage(ctx, "pricing", func(sctx context.Context) error {
		var serr error
		priced, serr = o.pricer.Price(sctx, order, validated.NormalizedQuantity, outcome.Workflow)
		return serr
	})
	if err != nil {
		o.failed(outcome, "pricing", err, log)
		return
	}
	outcome.Pricing = priced

	// Risk assessment.
	outcome.States = append(outcome.States, domain.StateRiskAssessing)
	var assessed *domain.RiskAssessmentResult
	err = o.stage(ctx, "risk_assessment", func(sctx context.Context) error {
		var serr error
		assessed, serr = o.risker.Assess(sctx, order, validated.NormalizedQuantity, validated.Metadata, priced)
		return serr
	})
	if err != nil {
		o.failed(outcome, "risk_assessment", err, log)
		return
	}
	outcome.Risk = assessed

	// Branch selection: escalation outranks everything, then tax-loss for
	// losing sells, then the express fast path for small eligible orders.
	switch {
	case !assessed.Approved:
		outcome.Workflow = domain.WorkflowEscalation
		outcome.States = append(outcome.States, domain.StateEscalating)
		var review *domain.EscalationReview
		err = o.stage(ctx, "escalation", func(sctx context.Context) error {
			var serr error
			review, serr = o.risker.Escalate(sctx, order, assessed, priced)
			return serr
		})
		if err != nil {
			o.failed(outcome, "escalation", err, log)
			return
		}
		outcome.Escalation = review
		if !review.ManualApprovalGranted {
			o.rejected(outcome, "risk score requires manual approval", log)
			return
		}

	case order.Side == domain.SideSell && priced.PnLAvailable && priced.EstimatedPnL < 0:
		outcome.Workflow = domain.WorkflowTaxLoss
		outcome.States = append(outcome.States, domain.StateTaxAnalyzing)
		var analysis *domain.TaxAnalysis
		err = o.stage(ctx, "tax_analysis", func(sctx context.Context) error {
			var serr error
			analysis, serr = o.pricer.AnalyzeTaxLoss(sctx, order, priced)
			return serr
		})
		if err != nil {
			o.failed(outcome, "tax_analysis", err, log)
			return
		}
		outcome.Tax = analysis

	case outcome.Workflow == domain.WorkflowStandard && validated.ExpressEligible:
		outcome.Workflow = domain.WorkflowExpress
		outcome.States = append(outcome.States, domain.StateExpressFastPath)
	}

	// Execution.
	outcome.States = append(outcome.States, domain.StateExecuting)
	var fillPrice float64
	var filledAt time.Time
	err = o.stage(ctx, "execution", func(sctx context.Context) error {
		var serr error
		fillPrice, filledAt, serr = o.executor.Execute(sctx, order, validated.NormalizedQuantity, priced)
		return serr
	})
	if err != nil {
		o.failed(outcome, "execution", err, log)
		return
	}

	outcome.ExecutionPrice = fillPrice
	outcome.ExecutedAt = filledAt
	outcome.Status = domain.StatusExecuted
	outcome.States = append(outcome.States, domain.StateExecuted)
}

// stage runs one pipeline stage with the per-stage timeout and retry
// budget. Only upstream failures are retried; business rejections and data
// defects are final on the first attempt. Deadline expiry is reported as an
// upstream timeout.
func (o *Orchestrator) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	var permanent error
	err := util.Retry(ctx, o.retryAttempts, o.retryBaseDelay, func() error {
		sctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
		defer cancel()

		start := time.Now()
		serr := fn(sctx)
		o.log.Info("stage call",
			"stage", name,
			"trace_id", util.TraceID(ctx),
			"duration_ms", time.Since(start).Milliseconds(),
			"ok", serr == nil)
		if serr == nil {
			return nil
		}
		if errors.Is(serr, context.DeadlineExceeded) && !retryable(serr) {
			serr = &domain.UpstreamUnavailable{Stage: name, Cause: "upstream timeout", Err: serr}
		}
		if !retryable(serr) {
			permanent = serr
			return nil
		}
		return serr
	})
	if permanent != nil {
		return permanent
	}
	return err
}

// retryable reports whether the retry budget applies: only upstream
// unavailability is transient.
func retryable(err error) bool {
	var ue *domain.UpstreamUnavailable
	return errors.As(err, &ue)
}

func (o *Orchestrator) rejected(outcome *domain.OrderOutcome, reason string, log *slog.Logger) {
	outcome.Status = domain.StatusRejected
	outcome.RejectReason = reason
	outcome.States = append(outcome.States, domain.StateRejected)
	log.Info("order rejected", "reason", reason)
}

// failed classifies a stage error per the taxonomy: business-rule failures
// reject the order, everything else is an infrastructure error.
func (o *Orchestrator) failed(outcome *domain.OrderOutcome, stage string, err error, log *slog.Logger) {
	var vf *domain.ValidationFailure
	if errors.As(err, &vf) {
		o.rejected(outcome, vf.Reason, log)
		return
	}
	o.errored(outcome, stage, err, log)
}

func (o *Orchestrator) errored(outcome *domain.OrderOutcome, stage string, err error, log *slog.Logger) {
	outcome.Status = domain.StatusError
	outcome.FailedStage = stage
	outcome.ErrorDetail = err.Error()
	outcome.States = append(outcome.States, domain.StateErrored)
	log.Error("order errored", "stage", stage, "error", err)
}
