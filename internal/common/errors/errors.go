// Package errors provides the coded error type shared by the conversation
// engine, the recommendation engine and the job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Conversation errors. These are user-input problems and are surfaced as a
// re-prompt rather than a failure.
const (
	ErrCodeInvalidCategory       ErrorCode = "INVALID_CATEGORY"
	ErrCodeNoActiveCategory      ErrorCode = "NO_ACTIVE_CATEGORY"
	ErrCodeNoActiveSession       ErrorCode = "NO_ACTIVE_SESSION"
	ErrCodeEmptyAnswer           ErrorCode = "EMPTY_ANSWER"
	ErrCodeConversationCompleted ErrorCode = "CONVERSATION_COMPLETED"
	ErrCodeUnrecognizedMessage   ErrorCode = "UNRECOGNIZED_MESSAGE"
)

// Recommendation errors.
const (
	ErrCodeModelNotTrained          ErrorCode = "MODEL_NOT_TRAINED"
	ErrCodeDimensionMismatch        ErrorCode = "DIMENSION_MISMATCH"
	ErrCodeInsufficientTrainingData ErrorCode = "INSUFFICIENT_TRAINING_DATA"
	ErrCodeFeedbackInvalid          ErrorCode = "FEEDBACK_INVALID"
	ErrCodeUnknownTask              ErrorCode = "UNKNOWN_TASK"
)

// Infrastructure errors.
const (
	ErrCodePersistenceFailed      ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeSessionStoreFailed     ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeKnowledgeLookupFailed  ErrorCode = "KNOWLEDGE_LOOKUP_FAILED"
	ErrCodeInputValidationFailed  ErrorCode = "INPUT_VALIDATION_FAILED"
	ErrCodeExternalServiceFailure ErrorCode = "EXTERNAL_SERVICE_FAILURE"
	ErrCodeTimeout                ErrorCode = "TIMEOUT"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

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
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidCategoryError creates a non-retryable unknown category error.
func NewInvalidCategoryError(categoryID string) *StandardError {
	return newError(ErrCodeInvalidCategory, "Invalid category selected", fmt.Sprintf("categoryId: %s", categoryID), false)
}

// NewNoActiveCategoryError is returned when an answer arrives before a category was chosen.
func NewNoActiveCategoryError(userID string) *StandardError {
	return newError(ErrCodeNoActiveCategory, "No category selected", fmt.Sprintf("userId: %s", userID), false)
}

// NewNoActiveSessionError is returned by status lookups for unknown users.
func NewNoActiveSessionError(userID string) *StandardError {
	return newError(ErrCodeNoActiveSession, "No active conversation", fmt.Sprintf("userId: %s", userID), false)
}

func NewEmptyAnswerError(questionIndex int) *StandardError {
	return newError(ErrCodeEmptyAnswer, "Answer must not be empty", fmt.Sprintf("question: %d", questionIndex+1), false)
}

func NewConversationCompletedError(userID string) *StandardError {
	return newError(ErrCodeConversationCompleted, "Conversation already completed", fmt.Sprintf("userId: %s", userID), false)
}

func NewUnrecognizedMessageError(message string) *StandardError {
	return newError(ErrCodeUnrecognizedMessage, "Message not understood", message, false)
}

// NewModelNotTrainedError marks a prediction request made before any training.
func NewModelNotTrainedError(task string) *StandardError {
	return newError(ErrCodeModelNotTrained, "model not trained", fmt.Sprintf("task: %s", task), false)
}

// NewDimensionMismatchError is fatal at training time: a model and its
// vectorizer disagree on feature width.
func NewDimensionMismatchError(task string, want, got int) *StandardError {
	return newError(ErrCodeDimensionMismatch, "Feature dimensionality mismatch",
		fmt.Sprintf("task: %s, expected %d features, got %d", task, want, got), false)
}

func NewInsufficientTrainingDataError(task string, have int) *StandardError {
	return newError(ErrCodeInsufficientTrainingData, "Insufficient training data",
		fmt.Sprintf("task: %s, examples: %d", task, have), false)
}

func NewFeedbackInvalidError(details string) *StandardError {
	return newError(ErrCodeFeedbackInvalid, "Feedback record is invalid", details, false)
}

func NewUnknownTaskError(task string) *StandardError {
	return newError(ErrCodeUnknownTask, "Unknown prediction task", fmt.Sprintf("task: %s", task), false)
}

// NewPersistenceFailedError creates a retryable storage error.
func NewPersistenceFailedError(operation string, err error) *StandardError {
	return newError(ErrCodePersistenceFailed, fmt.Sprintf("Persistence %s failed", operation), errDetails(err), true)
}

func NewSessionStoreFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeSessionStoreFailed, fmt.Sprintf("Session store %s failed", operation), errDetails(err), true)
}

// NewSessionConflictError reports a save that lost a race with another writer
// for the same user. Replaying the turn reads the fresh state.
func NewSessionConflictError(userID string) *StandardError {
	return newError(ErrCodeSessionStoreFailed, "Session store save failed", "state was modified concurrently", true).
		WithMetadata("userId", userID)
}

func NewKnowledgeLookupFailedError(plantType string, err error) *StandardError {
	return newError(ErrCodeKnowledgeLookupFailed, "Knowledge base lookup failed",
		fmt.Sprintf("plantType: %s: %s", plantType, errDetails(err)), true)
}

func NewInputValidationFailedError(details string) *StandardError {
	return newError(ErrCodeInputValidationFailed, "Input validation failed", details, false)
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalServiceFailure, fmt.Sprintf("%s request failed", service), errDetails(err), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("%s request timed out", service), errDetails(err), true)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", errDetails(err), false)
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodePersistenceFailed,
		ErrCodeSessionStoreFailed,
		ErrCodeExternalServiceFailure:
		return 3

	case ErrCodeTimeout,
		ErrCodeKnowledgeLookupFailed:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
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
// 5. Utility Functions
// ==========================

// AsStandard unwraps err into a StandardError, or wraps it as INTERNAL_ERROR.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// HasCode reports whether err is a StandardError carrying code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "PERSISTENCE") || strings.Contains(codeStr, "STORE"):
		return "STORAGE"
	case strings.Contains(codeStr, "CATEGORY") || strings.Contains(codeStr, "SESSION") ||
		strings.Contains(codeStr, "ANSWER") || strings.Contains(codeStr, "CONVERSATION") ||
		strings.Contains(codeStr, "MESSAGE"):
		return "CONVERSATION"
	case strings.Contains(codeStr, "MODEL") || strings.Contains(codeStr, "DIMENSION") ||
		strings.Contains(codeStr, "TRAINING") || strings.Contains(codeStr, "TASK"):
		return "MODEL"
	case strings.Contains(codeStr, "FEEDBACK") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "KNOWLEDGE") || strings.Contains(codeStr, "EXTERNAL") ||
		strings.Contains(codeStr, "TIMEOUT"):
		return "EXTERNAL"
	default:
		return "OTHER"
	}
}
