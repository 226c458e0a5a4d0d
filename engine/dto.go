package engine

import (
	"github.com/Abraxas-365/craftable/storex"

	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// ============================================================================
// Execution DTOs
// ============================================================================

type ExecutionListRequest struct {
	storex.PaginationOptions
	OrgID      kernel.OrgID      `json:"org_id" validate:"required"`
	FlowID     kernel.FlowID     `json:"flow_id,omitempty"`
	ChannelID  kernel.ChannelID  `json:"channel_id,omitempty"`
	CustomerID kernel.CustomerID `json:"customer_id,omitempty"`
	Status     *ExecutionStatus  `json:"status,omitempty"`
}

func (elr ExecutionListRequest) GetOffset() int {
	return (elr.Page - 1) * elr.PageSize
}

type ExecutionListResponse = storex.Paginated[Execution]

type ExecutionDetailsDTO struct {
	ID            kernel.ExecutionID `json:"id"`
	FlowID        kernel.FlowID      `json:"flow_id"`
	CustomerID    kernel.CustomerID  `json:"customer_id"`
	Status        ExecutionStatus    `json:"status"`
	CurrentNodeID string             `json:"current_node_id"`
	FailureReason string             `json:"failure_reason,omitempty"`
}

func (e *Execution) ToDTO() ExecutionDetailsDTO {
	return ExecutionDetailsDTO{
		ID:            e.ID,
		FlowID:        e.FlowID,
		CustomerID:    e.CustomerID,
		Status:        e.Status,
		CurrentNodeID: e.CurrentNodeID,
		FailureReason: e.FailureReason,
	}
}

// ============================================================================
// Trace DTOs
// ============================================================================

type ExecutionTraceResponse struct {
	Execution ExecutionDetailsDTO `json:"execution"`
	Logs      []*ExecutionLog     `json:"logs"`
}
