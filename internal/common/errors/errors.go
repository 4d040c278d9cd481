// internal/common/errors/errors.go

// Package errors provides standardized error handling for the underwriting engine
// and its BPMN workflow integration.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidInput            ErrorCode = "INVALID_INPUT"
	ErrCodeUnknownLoanType         ErrorCode = "UNKNOWN_LOAN_TYPE"
	ErrCodeGraphInvariantViolation ErrorCode = "GRAPH_INVARIANT_VIOLATION"

	ErrCodeTaskExecutionFailure ErrorCode = "TASK_EXECUTION_FAILURE"
	ErrCodeTaskTimeout          ErrorCode = "TASK_TIMEOUT"

	ErrCodeTransactionNotFound     ErrorCode = "TRANSACTION_NOT_FOUND"
	ErrCodeTransactionLookupFailed ErrorCode = "TRANSACTION_LOOKUP_FAILED"

	ErrCodeRunCancelled            ErrorCode = "RUN_CANCELLED"
	ErrCodeRunNotActive            ErrorCode = "RUN_NOT_ACTIVE"
	ErrCodeDecisionAlreadyProduced ErrorCode = "DECISION_ALREADY_PRODUCED"

	ErrCodeAuditSinkFailed ErrorCode = "AUDIT_SINK_FAILED"
	ErrCodePayloadInvalid  ErrorCode = "PAYLOAD_VALIDATION_FAILED"
	ErrCodeWorkflowHost    ErrorCode = "WORKFLOW_HOST_ERROR"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches any StandardError carrying the same code, so callers can write
// errors.Is(err, errors.ErrGraphInvariantViolation).
func (e *StandardError) Is(target error) bool {
	var t *StandardError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidInput            = &StandardError{Code: ErrCodeInvalidInput}
	ErrUnknownLoanType         = &StandardError{Code: ErrCodeUnknownLoanType}
	ErrGraphInvariantViolation = &StandardError{Code: ErrCodeGraphInvariantViolation}
	ErrTaskExecutionFailure    = &StandardError{Code: ErrCodeTaskExecutionFailure}
	ErrTaskTimeout             = &StandardError{Code: ErrCodeTaskTimeout}
	ErrTransactionNotFound     = &StandardError{Code: ErrCodeTransactionNotFound}
	ErrRunCancelled            = &StandardError{Code: ErrCodeRunCancelled}
	ErrRunNotActive            = &StandardError{Code: ErrCodeRunNotActive}
	ErrDecisionAlreadyProduced = &StandardError{Code: ErrCodeDecisionAlreadyProduced}
	ErrPayloadInvalid          = &StandardError{Code: ErrCodePayloadInvalid}
)

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 2. Error Constructors
// ==========================

// NewInvalidInputError reports a caller error in numeric or structural input.
func NewInvalidInputError(field, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid input",
		Details:   fmt.Sprintf("%s: %s", field, details),
		Retryable: false,
		Metadata:  map[string]interface{}{"field": field},
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownLoanTypeError is returned by the graph builder for unsupported loan types.
func NewUnknownLoanTypeError(loanType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownLoanType,
		Message:   "Unknown loan type",
		Details:   fmt.Sprintf("type: %q", loanType),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewGraphInvariantViolationError marks a cyclic, dangling or duplicate task graph.
func NewGraphInvariantViolationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGraphInvariantViolation,
		Message:   "Task graph invariant violated",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTaskExecutionFailureError wraps a failed port call made by an automated task.
func NewTaskExecutionFailureError(taskID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTaskExecutionFailure,
		Message:   "Task execution failed",
		Details:   fmt.Sprintf("taskId: %s, error: %v", taskID, err),
		Retryable: true,
		Metadata:  map[string]interface{}{"taskId": taskID},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewTaskTimeoutError is the timeout variant of a task execution failure.
func NewTaskTimeoutError(taskID string, timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeTaskTimeout,
		Message:   "Task execution timed out",
		Details:   fmt.Sprintf("taskId: %s, timeout: %s", taskID, timeout),
		Retryable: true,
		Metadata:  map[string]interface{}{"taskId": taskID},
		Timestamp: time.Now().UTC(),
	}
}

func NewTransactionNotFoundError(transactionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransactionNotFound,
		Message:   "Transaction not found",
		Details:   fmt.Sprintf("transactionId: %s", transactionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewTransactionLookupFailedError(transactionID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransactionLookupFailed,
		Message:   "Transaction lookup failed",
		Details:   fmt.Sprintf("transactionId: %s, error: %v", transactionID, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewRunCancelledError reports a run that stopped before reaching a decision.
func NewRunCancelledError(runID string, cause error) *StandardError {
	details := fmt.Sprintf("runId: %s", runID)
	if cause != nil {
		details = fmt.Sprintf("runId: %s, cause: %v", runID, cause)
	}
	return &StandardError{
		Code:      ErrCodeRunCancelled,
		Message:   "Workflow run cancelled before completion",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewRunNotActiveError(runID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRunNotActive,
		Message:   "Workflow run is no longer accepting signals",
		Details:   fmt.Sprintf("runId: %s", runID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDecisionAlreadyProducedError(runID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDecisionAlreadyProduced,
		Message:   "Decision already produced for this run",
		Details:   fmt.Sprintf("runId: %s", runID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuditSinkFailedError(sink string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuditSinkFailed,
		Message:   fmt.Sprintf("Audit sink '%s' error", sink),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewWorkflowHostError wraps a failed call to the Zeebe gateway.
func NewWorkflowHostError(operation string, err error, retryable bool) *StandardError {
	return &StandardError{
		Code:      ErrCodeWorkflowHost,
		Message:   fmt.Sprintf("Zeebe operation '%s' failed", operation),
		Details:   err.Error(),
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewPayloadInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePayloadInvalid,
		Message:   "Payload failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidInput:            "INVALID_INPUT",
	ErrCodeUnknownLoanType:         "UNKNOWN_LOAN_TYPE",
	ErrCodeGraphInvariantViolation: "GRAPH_INVARIANT_VIOLATION",
	ErrCodeTaskExecutionFailure:    "TASK_EXECUTION_FAILURE",
	ErrCodeTaskTimeout:             "TASK_TIMEOUT",
	ErrCodeTransactionNotFound:     "TRANSACTION_NOT_FOUND",
	ErrCodeTransactionLookupFailed: "TRANSACTION_LOOKUP_FAILED",
	ErrCodeRunCancelled:            "UNDERWRITING_CANCELLED",
	ErrCodePayloadInvalid:          "PAYLOAD_VALIDATION_FAILED",
}

// GetRetryCount returns the recommended job retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeTransactionLookupFailed,
		ErrCodeAuditSinkFailed,
		ErrCodeWorkflowHost:
		return 3

	case ErrCodeRunCancelled,
		ErrCodeTaskTimeout:
		return 2

	case ErrCodeTaskExecutionFailure:
		return 1

	default:
		return 0 // input and invariant errors are never retried
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// AsStandardError extracts a StandardError from err, if any.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "GRAPH"):
		return "INVARIANT"
	case strings.HasPrefix(codeStr, "TASK"):
		return "EXECUTION"
	case strings.Contains(codeStr, "TRANSACTION"):
		return "STORAGE"
	case strings.HasPrefix(codeStr, "RUN") || strings.Contains(codeStr, "DECISION"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "AUDIT"):
		return "AUDIT"
	case strings.Contains(codeStr, "HOST"):
		return "INTEGRATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "UNKNOWN") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
