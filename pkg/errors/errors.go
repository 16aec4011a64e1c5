// Package errors implements the structured error taxonomy used by the backtest
// core: integrity errors and invariant violations abort a run, while validation
// errors are surfaced only through the event stream and never escape as panics.
package errors

import (
	"fmt"
	"runtime"
	"time"
)

// ErrorCode classifies a backtest-core error.
type ErrorCode string

const (
	// Integrity errors: raised during producer/engine setup, abort the run.
	ErrMissingInstrument  ErrorCode = "MISSING_INSTRUMENT"
	ErrAsymmetricBars     ErrorCode = "ASYMMETRIC_BID_ASK_BARS"
	ErrBarShapeMismatch   ErrorCode = "BAR_SHAPE_MISMATCH"
	ErrInvalidBarPriceType ErrorCode = "INVALID_BAR_PRICE_TYPE"

	// Validation errors: command-time, surfaced as rejection/reject events.
	ErrInvalidPrice      ErrorCode = "INVALID_PRICE"
	ErrInvalidQuantity   ErrorCode = "INVALID_QUANTITY"
	ErrUnknownOrder      ErrorCode = "UNKNOWN_ORDER"
	ErrPostOnlyWouldTake ErrorCode = "POST_ONLY_WOULD_TAKE"
	ErrStopInMarket      ErrorCode = "STOP_IN_MARKET"
	ErrReduceOnlyInvalid ErrorCode = "REDUCE_ONLY_WOULD_INCREASE"
	ErrNoOpposingPrice   ErrorCode = "NO_OPPOSING_PRICE"
	ErrParentRejected    ErrorCode = "PARENT_REJECTED"

	// Invariant violations: programmer errors, abort the run.
	ErrFillOfClosedOrder   ErrorCode = "FILL_OF_CLOSED_ORDER"
	ErrDuplicateOrderID    ErrorCode = "DUPLICATE_CLIENT_ORDER_ID"
	ErrNegativeLeavesQty   ErrorCode = "NEGATIVE_LEAVES_QTY"
	ErrStatusBacktrack     ErrorCode = "STATUS_BACKTRACK"

	// Model errors: malformed configuration, abort the run.
	ErrProbabilityOutOfRange ErrorCode = "PROBABILITY_OUT_OF_RANGE"
	ErrNegativeLatency       ErrorCode = "NEGATIVE_LATENCY"
	ErrPrecisionMismatch     ErrorCode = "PRECISION_MISMATCH"

	ErrInternal ErrorCode = "INTERNAL_ERROR"
)

// Severity indicates how urgently an error must be handled.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// CoreError is a structured error carrying enough context to diagnose a run
// abort without re-running it.
type CoreError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Severity  Severity               `json:"severity"`
	Timestamp time.Time              `json:"timestamp"`
	File      string                 `json:"file,omitempty"`
	Line      int                    `json:"line,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (caused by: %v)", e.Code, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message)
}

func (e *CoreError) Unwrap() error { return e.Cause }

// WithDetail attaches an identifier (symbol, client_order_id, ...) to the error.
func (e *CoreError) WithDetail(key string, value interface{}) *CoreError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a CoreError, capturing the caller's source location.
func New(code ErrorCode, message string) *CoreError {
	_, file, line, _ := runtime.Caller(1)
	return &CoreError{
		Code:      code,
		Message:   message,
		Severity:  severityForCode(code),
		Timestamp: time.Now(),
		File:      file,
		Line:      line,
	}
}

// Newf creates a CoreError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *CoreError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a cause to a new CoreError. Returns nil if err is nil, so it
// is safe to use as `return errors.Wrap(err, ...)` in an early-return chain.
func Wrap(err error, code ErrorCode, message string) *CoreError {
	if err == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	return &CoreError{
		Code:      code,
		Message:   message,
		Severity:  severityForCode(code),
		Timestamp: time.Now(),
		File:      file,
		Line:      line,
		Cause:     err,
	}
}

// Is reports whether err carries the given error code.
func Is(err error, code ErrorCode) bool {
	var ce *CoreError
	if As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// As finds the first CoreError in err's chain.
func As(err error, target interface{}) bool {
	if err == nil {
		return false
	}
	if ce, ok := err.(*CoreError); ok {
		if ptr, ok := target.(**CoreError); ok {
			*ptr = ce
			return true
		}
	}
	if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
		return As(unwrapper.Unwrap(), target)
	}
	return false
}

// Code extracts the ErrorCode from err, or "" if err is not a CoreError.
func Code(err error) ErrorCode {
	var ce *CoreError
	if As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsIntegrity reports whether code belongs to the integrity-error class
// (raised during setup; always aborts the run).
func IsIntegrity(code ErrorCode) bool {
	switch code {
	case ErrMissingInstrument, ErrAsymmetricBars, ErrBarShapeMismatch, ErrInvalidBarPriceType:
		return true
	default:
		return false
	}
}

// IsInvariant reports whether code belongs to the invariant-violation class
// (programmer errors; always aborts the run).
func IsInvariant(code ErrorCode) bool {
	switch code {
	case ErrFillOfClosedOrder, ErrDuplicateOrderID, ErrNegativeLeavesQty, ErrStatusBacktrack:
		return true
	default:
		return false
	}
}

// IsValidation reports whether code belongs to the validation-error class
// (command-time; surfaced only as rejection events, never as a panic).
func IsValidation(code ErrorCode) bool {
	switch code {
	case ErrInvalidPrice, ErrInvalidQuantity, ErrUnknownOrder, ErrPostOnlyWouldTake,
		ErrStopInMarket, ErrReduceOnlyInvalid, ErrNoOpposingPrice, ErrParentRejected:
		return true
	default:
		return false
	}
}

func severityForCode(code ErrorCode) Severity {
	switch {
	case IsIntegrity(code), IsInvariant(code):
		return SeverityCritical
	case code == ErrProbabilityOutOfRange || code == ErrNegativeLatency || code == ErrPrecisionMismatch:
		return SeverityCritical
	case IsValidation(code):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Group collects multiple integrity errors discovered during a single setup
// pass (e.g. several instruments missing data) so they can be reported together.
type Group struct {
	errors []error
}

// NewGroup creates an empty error group.
func NewGroup() *Group { return &Group{} }

// Add appends err to the group if non-nil.
func (g *Group) Add(err error) {
	if err != nil {
		g.errors = append(g.errors, err)
	}
}

// HasErrors reports whether any error was added.
func (g *Group) HasErrors() bool { return len(g.errors) > 0 }

// Errors returns all collected errors.
func (g *Group) Errors() []error { return g.errors }

func (g *Group) Error() string {
	switch len(g.errors) {
	case 0:
		return ""
	case 1:
		return g.errors[0].Error()
	default:
		return fmt.Sprintf("%d integrity errors occurred, first: %v", len(g.errors), g.errors[0])
	}
}
