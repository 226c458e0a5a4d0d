package engine

import (
	"net/http"

	"github.com/Abraxas-365/craftable/errx"
)

var ErrRegistry = errx.NewRegistry("ENGINE")

var (
	// Execution errors
	CodeExecutionNotFound      = ErrRegistry.Register("EXECUTION_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Execution not found")
	CodeExecutionAlreadyActive = ErrRegistry.Register("EXECUTION_ALREADY_ACTIVE", errx.TypeConflict, http.StatusConflict, "Customer already has an active execution on this channel")
	CodeExecutionNotWaiting    = ErrRegistry.Register("EXECUTION_NOT_WAITING", errx.TypeBusiness, http.StatusConflict, "Execution is not waiting for a reply")
	CodeMaxStepsExceeded       = ErrRegistry.Register("MAX_STEPS_EXCEEDED", errx.TypeInternal, http.StatusInternalServerError, "Execution exceeded the step budget")

	// Processing errors
	CodeDuplicateMessage        = ErrRegistry.Register("DUPLICATE_MESSAGE", errx.TypeConflict, http.StatusConflict, "Message was already processed")
	CodeMessageProcessingFailed = ErrRegistry.Register("MESSAGE_PROCESSING_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Message processing failed")
	CodeCustomerLocked          = ErrRegistry.Register("CUSTOMER_LOCKED", errx.TypeConflict, http.StatusConflict, "Customer is being processed by another worker")

	// Node errors
	CodeNodeExecutionFailed = ErrRegistry.Register("NODE_EXECUTION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Node execution failed")
	CodeNodeExecutorMissing = ErrRegistry.Register("NODE_EXECUTOR_MISSING", errx.TypeInternal, http.StatusInternalServerError, "No executor registered for node type")
	CodeExpressionFailed    = ErrRegistry.Register("EXPRESSION_FAILED", errx.TypeValidation, http.StatusBadRequest, "Expression evaluation failed")

	// Wait errors
	CodeWaitTimeoutExpired = ErrRegistry.Register("WAIT_TIMEOUT_EXPIRED", errx.TypeBusiness, http.StatusGone, "Wait for reply expired")
)

// Error constructor functions
func ErrExecutionNotFound() *errx.Error {
	return ErrRegistry.New(CodeExecutionNotFound)
}

func ErrExecutionAlreadyActive() *errx.Error {
	return ErrRegistry.New(CodeExecutionAlreadyActive)
}

func ErrExecutionNotWaiting() *errx.Error {
	return ErrRegistry.New(CodeExecutionNotWaiting)
}

func ErrMaxStepsExceeded() *errx.Error {
	return ErrRegistry.New(CodeMaxStepsExceeded)
}

func ErrDuplicateMessage() *errx.Error {
	return ErrRegistry.New(CodeDuplicateMessage)
}

func ErrMessageProcessingFailed() *errx.Error {
	return ErrRegistry.New(CodeMessageProcessingFailed)
}

func ErrCustomerLocked() *errx.Error {
	return ErrRegistry.New(CodeCustomerLocked)
}

func ErrNodeExecutionFailed() *errx.Error {
	return ErrRegistry.New(CodeNodeExecutionFailed)
}

func ErrNodeExecutorMissing() *errx.Error {
	return ErrRegistry.New(CodeNodeExecutorMissing)
}

func ErrExpressionFailed() *errx.Error {
	return ErrRegistry.New(CodeExpressionFailed)
}

func ErrWaitTimeoutExpired() *errx.Error {
	return ErrRegistry.New(CodeWaitTimeoutExpired)
}
