package flow

import (
	"github.com/Abraxas-365/craftable/storex"

	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// ============================================================================
// Flow DTOs
// ============================================================================

type CreateFlowRequest struct {
	OrgID       kernel.OrgID     `json:"org_id" validate:"required"`
	ChannelID   kernel.ChannelID `json:"channel_id" validate:"required"`
	Name        string           `json:"name" validate:"required,min=2"`
	Description string           `json:"description,omitempty"`
	Trigger     Trigger          `json:"trigger" validate:"required"`
	Priority    int              `json:"priority,omitempty"`
	Nodes       []Node           `json:"nodes" validate:"required,min=1"`
	Edges       []Edge           `json:"edges,omitempty"`
}

type UpdateFlowRequest struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Trigger     *Trigger `json:"trigger,omitempty"`
	Priority    *int     `json:"priority,omitempty"`
	Nodes       *[]Node  `json:"nodes,omitempty"`
	Edges       *[]Edge  `json:"edges,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

type FlowListRequest struct {
	storex.PaginationOptions
	OrgID     kernel.OrgID     `json:"org_id" validate:"required"`
	ChannelID kernel.ChannelID `json:"channel_id,omitempty"`
	IsActive  *bool            `json:"is_active,omitempty"`
	Search    string           `json:"search,omitempty"`
}

func (flr FlowListRequest) GetOffset() int {
	return (flr.Page - 1) * flr.PageSize
}

type FlowListResponse = storex.Paginated[Flow]

// ============================================================================
// Validation DTOs
// ============================================================================

type ValidateFlowResponse struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
}

// ============================================================================
// Simple DTOs
// ============================================================================

type FlowDetailsDTO struct {
	ID        kernel.FlowID `json:"id"`
	Name      string        `json:"name"`
	IsActive  bool          `json:"is_active"`
	Priority  int           `json:"priority"`
	NodeCount int           `json:"node_count"`
}

func (f *Flow) ToDTO() FlowDetailsDTO {
	return FlowDetailsDTO{
		ID:        f.ID,
		Name:      f.Name,
		IsActive:  f.IsActive,
		Priority:  f.Priority,
		NodeCount: len(f.Nodes),
	}
}
