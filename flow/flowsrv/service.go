package flowsrv

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Abraxas-365/chatflow/flow"
	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// FlowService operaciones de autoría sobre flujos. La validación
// estructural corre al publicar, no al guardar: los borradores pueden
// estar rotos todo lo que quieran.
type FlowService struct {
	flowRepo flow.FlowRepository
}

func NewFlowService(flowRepo flow.FlowRepository) *FlowService {
	return &FlowService{flowRepo: flowRepo}
}

func (s *FlowService) CreateFlow(ctx context.Context, req flow.CreateFlowRequest) (*flow.Flow, error) {
	exists, err := s.flowRepo.ExistsByName(ctx, req.Name, req.OrgID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, flow.ErrFlowAlreadyExists().WithDetail("name", req.Name)
	}

	now := time.Now()
	f := flow.Flow{
		ID:          kernel.NewFlowID(uuid.New().String()),
		OrgID:       req.OrgID,
		ChannelID:   req.ChannelID,
		Name:        req.Name,
		Description: req.Description,
		Trigger:     req.Trigger,
		Priority:    req.Priority,
		IsActive:    false,
		IsPublished: false,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.flowRepo.Save(ctx, f); err != nil {
		return nil, err
	}

	return &f, nil
}

func (s *FlowService) GetFlow(ctx context.Context, id kernel.FlowID) (*flow.Flow, error) {
	return s.flowRepo.FindByID(ctx, id)
}

func (s *FlowService) UpdateFlow(ctx context.Context, id kernel.FlowID, req flow.UpdateFlowRequest) (*flow.Flow, error) {
	f, err := s.flowRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		f.Name = *req.Name
	}
	if req.Description != nil {
		f.Description = *req.Description
	}
	if req.Trigger != nil {
		f.Trigger = *req.Trigger
	}
	if req.Priority != nil {
		f.Priority = *req.Priority
	}
	if req.Nodes != nil {
		f.Nodes = *req.Nodes
		// el grafo cambió: vuelve a borrador hasta republicar
		f.IsPublished = false
	}
	if req.Edges != nil {
		f.Edges = *req.Edges
		f.IsPublished = false
	}
	if req.IsActive != nil {
		if *req.IsActive {
			f.Activate()
		} else {
			f.Deactivate()
		}
	}
	f.UpdatedAt = time.Now()

	if err := s.flowRepo.Save(ctx, *f); err != nil {
		return nil, err
	}

	return f, nil
}

// PublishFlow valida el grafo y lo marca publicado. Un flujo con
// fan-out ambiguo o aristas colgantes nunca llega al motor.
func (s *FlowService) PublishFlow(ctx context.Context, id kernel.FlowID) (*flow.Flow, error) {
	f, err := s.flowRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}

	f.IsPublished = true
	f.UpdatedAt = time.Now()

	if err := s.flowRepo.Save(ctx, *f); err != nil {
		return nil, err
	}

	return f, nil
}

// ValidateFlow corre la validación de publicación sin persistir nada
func (s *FlowService) ValidateFlow(ctx context.Context, id kernel.FlowID) (flow.ValidateFlowResponse, error) {
	f, err := s.flowRepo.FindByID(ctx, id)
	if err != nil {
		return flow.ValidateFlowResponse{}, err
	}

	if err := f.Validate(); err != nil {
		return flow.ValidateFlowResponse{
			IsValid: false,
			Errors:  []string{err.Error()},
		}, nil
	}

	return flow.ValidateFlowResponse{IsValid: true}, nil
}

func (s *FlowService) DeleteFlow(ctx context.Context, id kernel.FlowID, orgID kernel.OrgID) error {
	return s.flowRepo.Delete(ctx, id, orgID)
}

func (s *FlowService) ListFlows(ctx context.Context, req flow.FlowListRequest) (flow.FlowListResponse, error) {
	return s.flowRepo.List(ctx, req)
}
