package msgprocessor

import (
	"context"
	"log"
	"time"

	"github.com/Abraxas-365/craftable/errx"

	"github.com/Abraxas-365/chatflow/channels"
	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/flow"
	"github.com/Abraxas-365/chatflow/loyalty"
	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// Deduper camino rápido de idempotencia (redis); la base es la autoridad
type Deduper interface {
	FirstSeen(ctx context.Context, channelID kernel.ChannelID, messageID kernel.MessageID) bool
}

// MessageProcessor orquesta el ciclo de vida de cada mensaje entrante:
// idempotencia, lock por cliente, prefiltro de lealtad, reanudación de
// la ejecución activa o match + arranque de una nueva.
type MessageProcessor struct {
	flowRepo      flow.FlowRepository
	flowMatcher   flow.FlowMatcher
	execRepo      engine.ExecutionRepository
	processedRepo engine.ProcessedMessageRepository
	deduper       Deduper
	locker        engine.CustomerLocker
	walker        engine.FlowWalker
	scheduler     engine.ContinuationScheduler
	prefilter     loyalty.Prefilter
	gateway       engine.MessageGateway
	channelRepo   channels.ChannelRepository
}

func NewMessageProcessor(
	flowRepo flow.FlowRepository,
	flowMatcher flow.FlowMatcher,
	execRepo engine.ExecutionRepository,
	processedRepo engine.ProcessedMessageRepository,
	deduper Deduper,
	locker engine.CustomerLocker,
	walker engine.FlowWalker,
	scheduler engine.ContinuationScheduler,
	prefilter loyalty.Prefilter,
	gateway engine.MessageGateway,
	channelRepo channels.ChannelRepository,
) *MessageProcessor {
	return &MessageProcessor{
		flowRepo:      flowRepo,
		flowMatcher:   flowMatcher,
		execRepo:      execRepo,
		processedRepo: processedRepo,
		deduper:       deduper,
		locker:        locker,
		walker:        walker,
		scheduler:     scheduler,
		prefilter:     prefilter,
		gateway:       gateway,
		channelRepo:   channelRepo,
	}
}

// ProcessIncoming es el entry point para cada mensaje del webhook
func (mp *MessageProcessor) ProcessIncoming(ctx context.Context, msg engine.IncomingMessage) error {
	log.Printf("🚀 Processing message %s from %s on channel %s", msg.ID.String(), msg.From.String(), msg.ChannelID.String())

	if !msg.IsValid() {
		return engine.ErrMessageProcessingFailed().WithDetail("reason", "invalid message")
	}

	// 1. Idempotencia: camino rápido en redis, autoridad en postgres.
	// El marcador se inserta ANTES de cualquier efecto.
	if mp.deduper != nil && !mp.deduper.FirstSeen(ctx, msg.ChannelID, msg.ID) {
		log.Printf("🔁 Duplicate message %s (redis), discarding", msg.ID.String())
		return nil
	}

	inserted, err := mp.processedRepo.MarkProcessed(ctx, msg.ChannelID, msg.ID)
	if err != nil {
		return errx.Wrap(err, "failed to mark message processed", errx.TypeInternal)
	}
	if !inserted {
		log.Printf("🔁 Duplicate message %s, discarding", msg.ID.String())
		return nil
	}

	// 2. Lock por cliente: mensajes del mismo cliente nunca en paralelo
	token, err := mp.acquireWithRetry(ctx, msg.ChannelID, msg.From)
	if err != nil {
		return err
	}
	defer func() {
		if err := mp.locker.Release(context.Background(), msg.ChannelID, msg.From, token); err != nil {
			log.Printf("⚠️  Failed to release customer lock: %v", err)
		}
	}()

	// 3. Prefiltro de lealtad: los códigos del programa se consumen
	// antes de cualquier match de flujos
	if mp.prefilter != nil && msg.Text != "" {
		result, err := mp.prefilter.HandleMessage(ctx, msg.ChannelID, msg.From, msg.Text)
		if err != nil {
			log.Printf("⚠️  Loyalty prefilter failed: %v", err)
		} else if result.Handled {
			log.Printf("🎟️  Message %s consumed by loyalty program", msg.ID.String())
			if result.Reply != "" {
				mp.sendText(ctx, msg.ChannelID, msg.From, result.Reply)
			}
			return nil
		}
	}

	// 4. ¿Hay una ejecución activa para este cliente?
	active, err := mp.execRepo.FindActiveByCustomer(ctx, msg.ChannelID, msg.From)
	if err == nil {
		handled, err := mp.resumeActive(ctx, active, &msg)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
		// La espera venció: el mensaje queda libre para iniciar otro flujo
	} else if !errx.IsType(err, errx.TypeNotFound) {
		return errx.Wrap(err, "failed to look up active execution", errx.TypeInternal)
	}

	// 5. Match y arranque de una nueva ejecución
	return mp.startNew(ctx, &msg)
}

// resumeActive aplica el mensaje a la ejecución activa. handled=false
// significa que el slot quedó libre y el mensaje debe tratarse como
// disparador nuevo.
func (mp *MessageProcessor) resumeActive(ctx context.Context, exec *engine.Execution, msg *engine.IncomingMessage) (bool, error) {
	if !exec.IsWaitingReply() {
		// Running bajo lock no debería verse; waiting por delay ignora
		// los mensajes del cliente hasta que el scheduler retome.
		log.Printf("ℹ️  Execution %s is %s, message %s ignored", exec.ID.String(), exec.Status, msg.ID.String())
		return true, nil
	}

	f, err := mp.flowRepo.FindByID(ctx, exec.FlowID)
	if err != nil {
		exec.Fail("flow no longer exists")
		return true, mp.execRepo.Save(ctx, *exec)
	}

	wctx := mp.walkContext(ctx, f, exec, msg)

	log.Printf("▶️  Resuming execution %s at node %s", exec.ID.String(), exec.CurrentNodeID)
	if err := mp.walker.ResumeWithReply(ctx, wctx); err != nil {
		return true, err
	}

	if err := mp.persistOutcome(ctx, exec); err != nil {
		return true, err
	}

	// "wait timeout" perezoso: la ejecución falló y libera al cliente
	if exec.Status == engine.ExecutionStatusFailed && exec.FailureReason == "wait timeout" {
		return false, nil
	}

	return true, nil
}

// startNew hace match y camina una ejecución nueva
func (mp *MessageProcessor) startNew(ctx context.Context, msg *engine.IncomingMessage) error {
	f, err := mp.flowMatcher.Match(ctx, msg.ChannelID, msg.Text)
	if err != nil {
		if errx.IsType(err, errx.TypeBusiness) {
			log.Printf("ℹ️  No matching flow for message %s, ignoring", msg.ID.String())
			return nil
		}
		return err
	}

	exec := engine.NewExecution(f, msg.From)
	exec.SetVariable("message", msg.Text)
	exec.SetVariable("customer_phone", msg.From.String())
	if msg.ProfileName != "" {
		exec.SetVariable("customer_name", msg.ProfileName)
	}
	if msg.MediaURL != "" {
		exec.SetVariable("message_media_url", msg.MediaURL)
	}

	// La inserción reclama el slot único del cliente; perder la carrera
	// significa que otro worker ya arrancó una ejecución.
	if err := mp.execRepo.Save(ctx, *exec); err != nil {
		if errx.IsType(err, errx.TypeConflict) {
			log.Printf("ℹ️  Lost slot race for customer %s, discarding message %s", msg.From.String(), msg.ID.String())
			return nil
		}
		return err
	}

	log.Printf("🚀 Started execution %s of flow %s for %s", exec.ID.String(), f.Name, msg.From.String())

	wctx := mp.walkContext(ctx, f, exec, msg)
	if err := mp.walker.Walk(ctx, wctx); err != nil {
		return err
	}

	return mp.persistOutcome(ctx, exec)
}

// HandleContinuation retoma una ejecución suspendida por delay.
// Es el handler que corre el worker del scheduler.
func (mp *MessageProcessor) HandleContinuation(ctx context.Context, continuation *engine.Continuation) error {
	exec, err := mp.execRepo.FindByID(ctx, continuation.ExecutionID)
	if err != nil {
		return err
	}

	if exec.Status != engine.ExecutionStatusWaiting || exec.Wait == nil || exec.Wait.Reason != engine.WaitReasonDelay {
		log.Printf("ℹ️  Continuation %s ignored: execution is %s", continuation.ID, exec.Status)
		return nil
	}

	f, err := mp.flowRepo.FindByID(ctx, exec.FlowID)
	if err != nil {
		exec.Fail("flow no longer exists")
		return mp.execRepo.Save(ctx, *exec)
	}

	// Retomar por la arista que sigue al nodo delay
	edge := f.OutgoingEdge(exec.Wait.NodeID, "")
	if edge == nil {
		exec.Resume("")
		exec.Complete()
		return mp.execRepo.Save(ctx, *exec)
	}
	exec.Resume(edge.TargetNodeID)

	wctx := mp.walkContext(ctx, f, exec, nil)
	if err := mp.walker.Walk(ctx, wctx); err != nil {
		return err
	}

	return mp.persistOutcome(ctx, exec)
}

// persistOutcome guarda la ejecución y agenda la reanudación si el
// walk la dejó suspendida por delay.
func (mp *MessageProcessor) persistOutcome(ctx context.Context, exec *engine.Execution) error {
	if err := mp.execRepo.Save(ctx, *exec); err != nil {
		return err
	}

	if exec.Status == engine.ExecutionStatusWaiting && exec.Wait != nil &&
		exec.Wait.Reason == engine.WaitReasonDelay && exec.Wait.ResumeAt != nil {
		delay := time.Until(*exec.Wait.ResumeAt)
		if delay < 0 {
			delay = 0
		}
		continuation := &engine.Continuation{
			ExecutionID: exec.ID,
			NodeID:      exec.Wait.NodeID,
		}
		if err := mp.scheduler.Schedule(ctx, continuation, delay); err != nil {
			return errx.Wrap(err, "failed to schedule continuation", errx.TypeInternal).
				WithDetail("execution_id", exec.ID.String())
		}
	}

	return nil
}

func (mp *MessageProcessor) walkContext(ctx context.Context, f *flow.Flow, exec *engine.Execution, msg *engine.IncomingMessage) *engine.WalkContext {
	wctx := &engine.WalkContext{
		Flow:      f,
		Execution: exec,
		Message:   msg,
	}

	if mp.channelRepo != nil {
		if channel, err := mp.channelRepo.FindByID(ctx, exec.ChannelID); err == nil {
			wctx.DefaultCountryCode = channel.Config.DefaultCountryCode
		}
	}

	return wctx
}

// acquireWithRetry reintenta el lock un rato corto: los mensajes del
// mismo cliente llegan en ráfaga y suelen encontrar el lock tomado.
func (mp *MessageProcessor) acquireWithRetry(ctx context.Context, channelID kernel.ChannelID, customerID kernel.CustomerID) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 10; attempt++ {
		token, err := mp.locker.Acquire(ctx, channelID, customerID)
		if err == nil {
			return token, nil
		}
		lastErr = err
		if !errx.IsType(err, errx.TypeConflict) {
			return "", err
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return "", lastErr
}

func (mp *MessageProcessor) sendText(ctx context.Context, channelID kernel.ChannelID, to kernel.CustomerID, text string) {
	if mp.gateway == nil {
		return
	}
	if _, err := mp.gateway.Send(ctx, channelID, to, engine.OutboundMessage{Kind: engine.OutboundText, Text: text}); err != nil {
		log.Printf("⚠️  Failed to send loyalty reply: %v", err)
	}
}
