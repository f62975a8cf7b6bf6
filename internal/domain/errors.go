package domain

import "fmt"

// ViolationCode identifies which validation rule an order broke.
type ViolationCode string

const (
	ViolationUnknownSymbol       ViolationCode = "UNKNOWN_SYMBOL"
	ViolationNotTradeable        ViolationCode = "NOT_TRADEABLE"
	ViolationInvalidQuantity     ViolationCode = "INVALID_QUANTITY"
	ViolationLotSize             ViolationCode = "LOT_SIZE"
	ViolationMaxOrderSize        ViolationCode = "MAX_ORDER_SIZE"
	ViolationGlobalCap           ViolationCode = "GLOBAL_CAP"
	ViolationInsufficientFunds   ViolationCode = "INSUFFICIENT_FUNDS"
	ViolationInsufficientShares  ViolationCode = "INSUFFICIENT_SHARES"
	ViolationMarketClosed        ViolationCode = "MARKET_CLOSED"
	ViolationPMApprovalRequired  ViolationCode = "PM_APPROVAL_REQUIRED"
	ViolationUnknownCustodian    ViolationCode = "UNKNOWN_CUSTODIAN"
	ViolationUnknownStrategy     ViolationCode = "UNKNOWN_STRATEGY"
	ViolationBadCredential       ViolationCode = "BAD_CREDENTIAL"
	ViolationCircuitBreaker      ViolationCode = "CIRCUIT_BREAKER"
	ViolationDailyExecutionLimit ViolationCode = "DAILY_EXECUTION_LIMIT"
	ViolationRestrictedSymbol    ViolationCode = "RESTRICTED_SYMBOL"
	ViolationNotionalCeiling     ViolationCode = "NOTIONAL_CEILING"
	ViolationSectorExposure      ViolationCode = "SECTOR_EXPOSURE"
)

// ValidationFailure means the order broke a business rule. It maps to a
// REJECTED outcome, never an ERRORED one.
type ValidationFailure struct {
	Code   ViolationCode
	Reason string
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("validation failed [%s]: %s", e.Code, e.Reason)
}

// UpstreamUnavailable means a pipeline stage could not produce an answer:
// a timeout, an exhausted retry budget, or a dependency that refused to
// serve. It maps to an ERRORED outcome.
type UpstreamUnavailable struct {
	Stage string
	Cause string
	Err   error
}

func (e *UpstreamUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s unavailable: %s: %v", e.Stage, e.Cause, e.Err)
	}
	return fmt.Sprintf("%s unavailable: %s", e.Stage, e.Cause)
}

func (e *UpstreamUnavailable) Unwrap() error { return e.Err }

// CalculationInconsistency means two amounts that must agree did not, within
// tolerance. Both values are carried so the divergence is visible in logs
// and outcomes.
type CalculationInconsistency struct {
	What      string
	Expected  float64
	Actual    float64
	Tolerance float64
}

func (e *CalculationInconsistency) Error() string {
	return fmt.Sprintf("calculation inconsistency in %s: expected %.4f, actual %.4f (tolerance %.4f)",
		e.What, e.Expected, e.Actual, e.Tolerance)
}

// DataIntegrityDefect means reference data violated an invariant the
// pipeline depends on, such as a missing cost basis where one is required.
// The affected computation is short-circuited rather than run on a
// fabricated value.
type DataIntegrityDefect struct {
	Symbol    string
	Invariant string
}

func (e *DataIntegrityDefect) Error() string {
	return fmt.Sprintf("data integrity defect for %s: %s", e.Symbol, e.Invariant)
}
