package flowmatcher

import (
	"context"
	"log"

	"github.com/Abraxas-365/chatflow/flow"
	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// Matcher selecciona el flujo ganador para un mensaje entrante.
// Los flujos llegan del repositorio ya ordenados (prioridad desc,
// updated_at desc); aquí sólo se evalúan los triggers en ese orden.
type Matcher struct {
	flowRepo flow.FlowRepository
}

var _ flow.FlowMatcher = (*Matcher)(nil)

func NewMatcher(flowRepo flow.FlowRepository) *Matcher {
	return &Matcher{flowRepo: flowRepo}
}

// Match retorna el primer flujo cuyo trigger acepta el texto.
// Los triggers keyword se evalúan sobre el texto recortado; any_message
// acepta cualquier cosa, por eso conviene publicarlo con prioridad baja.
func (m *Matcher) Match(ctx context.Context, channelID kernel.ChannelID, messageText string) (*flow.Flow, error) {
	flows, err := m.flowRepo.FindRunnableByChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}

	for _, f := range flows {
		if !f.IsRunnable() {
			continue
		}
		if f.Trigger.Matches(messageText) {
			log.Printf("🔍 Flow matched: %s (priority=%d)", f.Name, f.Priority)
			return f, nil
		}
	}

	return nil, flow.ErrNoMatchingFlow().
		WithDetail("channel_id", channelID.String())
}
