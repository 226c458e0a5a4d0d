package flow

import (
	"strings"
	"time"

	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// ============================================================================
// Flow Entity
// ============================================================================

// Flow representa un flujo de automatización publicado desde el editor.
// El motor lo trata como sólo-lectura; el editor es el único que lo muta.
type Flow struct {
	ID          kernel.FlowID    `db:"id" json:"id"`
	OrgID       kernel.OrgID     `db:"org_id" json:"org_id"`
	ChannelID   kernel.ChannelID `db:"channel_id" json:"channel_id"`
	Name        string           `db:"name" json:"name"`
	Description string           `db:"description" json:"description"`
	Trigger     Trigger          `db:"trigger" json:"trigger"`
	Priority    int              `db:"priority" json:"priority"`
	IsActive    bool             `db:"is_active" json:"is_active"`
	IsPublished bool             `db:"is_published" json:"is_published"`
	Nodes       []Node           `db:"nodes" json:"nodes"`
	Edges       []Edge           `db:"edges" json:"edges"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// ============================================================================
// Trigger
// ============================================================================

// TriggerType tipo de disparador
type TriggerType string

const (
	TriggerKeyword    TriggerType = "keyword"
	TriggerAnyMessage TriggerType = "any_message"
)

// Trigger define cuándo un mensaje entrante activa el flujo
type Trigger struct {
	Type          TriggerType `json:"type"`
	Value         string      `json:"value,omitempty"`
	CaseSensitive bool        `json:"case_sensitive,omitempty"`
}

// Matches verifica si el texto entrante activa este trigger.
// Para keyword: igualdad exacta del texto recortado, o prefijo "keyword "
// (keyword con argumentos). Nunca un substring en medio del texto.
func (t Trigger) Matches(text string) bool {
	switch t.Type {
	case TriggerAnyMessage:
		return true
	case TriggerKeyword:
		keyword := strings.TrimSpace(t.Value)
		candidate := strings.TrimSpace(text)
		if !t.CaseSensitive {
			keyword = strings.ToLower(keyword)
			candidate = strings.ToLower(candidate)
		}
		if keyword == "" {
			return false
		}
		return candidate == keyword || strings.HasPrefix(candidate, keyword+" ")
	default:
		return false
	}
}

// ============================================================================
// Edge
// ============================================================================

// Edge conecta dos nodos; SourceHandle distingue salidas múltiples
// (true/false de condiciones, ids de botones, filas de listas).
type Edge struct {
	SourceNodeID string `json:"source_node_id"`
	SourceHandle string `json:"source_handle,omitempty"`
	TargetNodeID string `json:"target_node_id"`
}

// ============================================================================
// Domain Methods
// ============================================================================

// IsRunnable verifica si el flujo puede ser ejecutado por el motor
func (f *Flow) IsRunnable() bool {
	return f.IsActive && f.IsPublished && !f.ChannelID.IsEmpty() && len(f.Nodes) > 0
}

// GetNodeByID obtiene un nodo por ID
func (f *Flow) GetNodeByID(nodeID string) *Node {
	for i := range f.Nodes {
		if f.Nodes[i].ID == nodeID {
			return &f.Nodes[i]
		}
	}
	return nil
}

// TriggerNode retorna el nodo trigger del flujo (nil si no existe)
func (f *Flow) TriggerNode() *Node {
	for i := range f.Nodes {
		if f.Nodes[i].Type == NodeTrigger {
			return &f.Nodes[i]
		}
	}
	return nil
}

// EntryNodeID retorna el sucesor del trigger: el primer nodo real del walk
func (f *Flow) EntryNodeID() string {
	trigger := f.TriggerNode()
	if trigger == nil {
		return ""
	}
	for _, edge := range f.Edges {
		if edge.SourceNodeID == trigger.ID {
			return edge.TargetNodeID
		}
	}
	return ""
}

// OutgoingEdge retorna la arista saliente de un nodo para un handle dado.
// La validación de publicación garantiza que (source, handle) es único.
func (f *Flow) OutgoingEdge(nodeID, handle string) *Edge {
	for i := range f.Edges {
		if f.Edges[i].SourceNodeID == nodeID && f.Edges[i].SourceHandle == handle {
			return &f.Edges[i]
		}
	}
	return nil
}

// Activate activa el flujo
func (f *Flow) Activate() {
	f.IsActive = true
	f.UpdatedAt = time.Now()
}

// Deactivate desactiva el flujo
func (f *Flow) Deactivate() {
	f.IsActive = false
	f.UpdatedAt = time.Now()
}

// Validate aplica las reglas de publicación: exactamente un trigger,
// aristas hacia nodos existentes, y sin fan-out ambiguo (dos aristas
// compartiendo (source, handle) se rechazan aquí, no en runtime).
func (f *Flow) Validate() error {
	if f.Name == "" {
		return ErrInvalidFlow().WithDetail("reason", "name is required")
	}
	if len(f.Nodes) == 0 {
		return ErrInvalidFlow().WithDetail("reason", "flow has no nodes")
	}

	nodeIDs := make(map[string]bool)
	triggerCount := 0
	for _, node := range f.Nodes {
		if node.ID == "" {
			return ErrInvalidNode().WithDetail("reason", "node has no ID")
		}
		if nodeIDs[node.ID] {
			return ErrInvalidNode().
				WithDetail("node_id", node.ID).
				WithDetail("reason", "duplicate node ID")
		}
		nodeIDs[node.ID] = true

		if node.Type == NodeTrigger {
			triggerCount++
		}

		if node.Config != nil {
			if err := node.Config.Validate(); err != nil {
				return err
			}
		}
	}

	if triggerCount != 1 {
		return ErrInvalidFlow().
			WithDetail("trigger_count", triggerCount).
			WithDetail("reason", "flow must have exactly one trigger node")
	}

	seenHandles := make(map[string]bool)
	for _, edge := range f.Edges {
		if !nodeIDs[edge.SourceNodeID] {
			return ErrInvalidEdge().
				WithDetail("source_node_id", edge.SourceNodeID).
				WithDetail("reason", "edge source references non-existent node")
		}
		if !nodeIDs[edge.TargetNodeID] {
			return ErrInvalidEdge().
				WithDetail("target_node_id", edge.TargetNodeID).
				WithDetail("reason", "edge target references non-existent node")
		}
		key := edge.SourceNodeID + "\x00" + edge.SourceHandle
		if seenHandles[key] {
			return ErrAmbiguousFanOut().
				WithDetail("source_node_id", edge.SourceNodeID).
				WithDetail("source_handle", edge.SourceHandle)
		}
		seenHandles[key] = true
	}

	return nil
}
