package waitsweep

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/Abraxas-365/chatflow/engine"
)

// sweepTimeout tope para una pasada completa del barrido
const sweepTimeout = 30 * time.Second

// Sweeper marca como fallidas las ejecuciones cuyo timeout de espera
// venció sin respuesta del cliente. El chequeo perezoso del walker
// cubre a los clientes que sí vuelven a escribir; este barrido cierra
// a los que nunca vuelven, para liberar su slot de single-flight.
type Sweeper struct {
	execRepo engine.ExecutionRepository
	logRepo  engine.ExecutionLogRepository
	schedule string
	batch    int

	cron *cron.Cron
}

func NewSweeper(
	execRepo engine.ExecutionRepository,
	logRepo engine.ExecutionLogRepository,
	schedule string,
	batch int,
) *Sweeper {
	if batch <= 0 {
		batch = 100
	}

	return &Sweeper{
		execRepo: execRepo,
		logRepo:  logRepo,
		schedule: schedule,
		batch:    batch,
	}
}

// Start registra el job y arranca el scheduler
func (s *Sweeper) Start() error {
	s.cron = cron.New()

	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		if err := s.Sweep(ctx); err != nil {
			log.Printf("❌ Wait sweep failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("⏰ Wait sweeper started (schedule: %s)", s.schedule)
	return nil
}

// Stop detiene el scheduler y espera los jobs en curso
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	log.Println("⏰ Wait sweeper stopped")
}

// Sweep corre una pasada: busca esperas vencidas y las cierra
func (s *Sweeper) Sweep(ctx context.Context) error {
	expired, err := s.execRepo.FindExpiredWaits(ctx, time.Now(), s.batch)
	if err != nil {
		return err
	}

	if len(expired) == 0 {
		return nil
	}

	log.Printf("⏰ Sweeping %d expired waits", len(expired))

	for _, exec := range expired {
		s.expire(ctx, exec)
	}

	return nil
}

func (s *Sweeper) expire(ctx context.Context, exec *engine.Execution) {
	nodeID := ""
	if exec.Wait != nil {
		nodeID = exec.Wait.NodeID
	}

	exec.Fail("wait timeout")

	if err := s.execRepo.Save(ctx, *exec); err != nil {
		log.Printf("❌ Failed to expire execution %s: %v", exec.ID, err)
		return
	}

	entry := engine.ExecutionLog{
		ID:          uuid.New().String(),
		ExecutionID: exec.ID,
		NodeID:      nodeID,
		NodeType:    "waitForReply",
		Status:      engine.LogStatusFailed,
		Detail:      "wait_expired",
		CreatedAt:   time.Now(),
	}
	if err := s.logRepo.Append(ctx, entry); err != nil {
		log.Printf("⚠️ Failed to log wait expiry for %s: %v", exec.ID, err)
	}

	log.Printf("⏰ Execution %s expired waiting at node %s", exec.ID, nodeID)
}
