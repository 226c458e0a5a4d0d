package flow

import (
	"net/http"

	"github.com/Abraxas-365/craftable/errx"
)

var ErrRegistry = errx.NewRegistry("FLOW")

var (
	// Flow errors
	CodeFlowNotFound      = ErrRegistry.Register("FLOW_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Flow not found")
	CodeFlowAlreadyExists = ErrRegistry.Register("FLOW_ALREADY_EXISTS", errx.TypeConflict, http.StatusConflict, "Flow already exists")
	CodeInvalidFlow       = ErrRegistry.Register("FLOW_INVALID", errx.TypeValidation, http.StatusBadRequest, "Invalid flow definition")
	CodeFlowNotPublished  = ErrRegistry.Register("FLOW_NOT_PUBLISHED", errx.TypeBusiness, http.StatusForbidden, "Flow is not published")

	// Graph errors
	CodeInvalidNode     = ErrRegistry.Register("INVALID_NODE", errx.TypeValidation, http.StatusBadRequest, "Invalid node configuration")
	CodeInvalidEdge     = ErrRegistry.Register("INVALID_EDGE", errx.TypeValidation, http.StatusBadRequest, "Invalid edge")
	CodeAmbiguousFanOut = ErrRegistry.Register("AMBIGUOUS_FAN_OUT", errx.TypeValidation, http.StatusBadRequest, "Multiple edges leave the same node handle")
	CodeNodeNotFound    = ErrRegistry.Register("NODE_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Node not found")

	// Matching errors
	CodeNoMatchingFlow = ErrRegistry.Register("NO_MATCHING_FLOW", errx.TypeBusiness, http.StatusNotFound, "No matching flow found")
)

// Error constructor functions
func ErrFlowNotFound() *errx.Error {
	return ErrRegistry.New(CodeFlowNotFound)
}

func ErrFlowAlreadyExists() *errx.Error {
	return ErrRegistry.New(CodeFlowAlreadyExists)
}

func ErrInvalidFlow() *errx.Error {
	return ErrRegistry.New(CodeInvalidFlow)
}

func ErrFlowNotPublished() *errx.Error {
	return ErrRegistry.New(CodeFlowNotPublished)
}

func ErrInvalidNode() *errx.Error {
	return ErrRegistry.New(CodeInvalidNode)
}

func ErrInvalidEdge() *errx.Error {
	return ErrRegistry.New(CodeInvalidEdge)
}

func ErrAmbiguousFanOut() *errx.Error {
	return ErrRegistry.New(CodeAmbiguousFanOut)
}

func ErrNodeNotFound() *errx.Error {
	return ErrRegistry.New(CodeNodeNotFound)
}

func ErrNoMatchingFlow() *errx.Error {
	return ErrRegistry.New(CodeNoMatchingFlow)
}
