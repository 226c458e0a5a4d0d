package delayscheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/Abraxas-365/chatflow/engine"
)

const (
	delayedExecutionsKey = "chatflow:delayed_executions" // Sorted set
	continuationPrefix   = "chatflow:continuation:"      // String keys
)

var _ engine.ContinuationScheduler = (*RedisScheduler)(nil)

// RedisScheduler agenda reanudaciones de ejecuciones suspendidas por
// delay: un sorted set ordenado por timestamp de vencimiento y un
// worker que reclama los vencidos con ZRem (el que borra, ejecuta).
type RedisScheduler struct {
	redis          *redis.Client
	syncThreshold  time.Duration
	onContinuation engine.ContinuationHandler
	workerRunning  bool
	stopChan       chan struct{}
}

func NewRedisScheduler(
	redisClient *redis.Client,
	syncThreshold time.Duration,
	handler engine.ContinuationHandler,
) *RedisScheduler {
	return &RedisScheduler{
		redis:          redisClient,
		syncThreshold:  syncThreshold,
		onContinuation: handler,
		stopChan:       make(chan struct{}),
	}
}

// Schedule agenda la reanudación de una ejecución
func (r *RedisScheduler) Schedule(ctx context.Context, continuation *engine.Continuation, delay time.Duration) error {
	if continuation.ID == "" {
		continuation.ID = uuid.New().String()
	}

	continuation.ScheduledFor = time.Now().Add(delay)
	continuation.CreatedAt = time.Now()

	data, err := json.Marshal(continuation)
	if err != nil {
		return fmt.Errorf("failed to marshal continuation: %w", err)
	}

	key := continuationPrefix + continuation.ID
	if err := r.redis.Set(ctx, key, data, delay+time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to store continuation: %w", err)
	}

	score := float64(continuation.ScheduledFor.Unix())
	if err := r.redis.ZAdd(ctx, delayedExecutionsKey, &redis.Z{
		Score:  score,
		Member: continuation.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to schedule continuation: %w", err)
	}

	log.Printf("⏰ Scheduled %s for %v (delay: %v)", continuation.String(), continuation.ScheduledFor, delay)
	return nil
}

// Cancel retira una reanudación agendada
func (r *RedisScheduler) Cancel(ctx context.Context, id string) error {
	if err := r.redis.ZRem(ctx, delayedExecutionsKey, id).Err(); err != nil {
		return fmt.Errorf("failed to cancel continuation: %w", err)
	}
	return r.redis.Del(ctx, continuationPrefix+id).Err()
}

// ShouldUseAsync decide si un delay va por el scheduler o duerme inline
func (r *RedisScheduler) ShouldUseAsync(duration time.Duration) bool {
	return duration > r.syncThreshold
}

// StartWorker arranca el worker de fondo
func (r *RedisScheduler) StartWorker(ctx context.Context) {
	if r.workerRunning {
		log.Println("⚠️  Delay scheduler worker already running")
		return
	}

	r.workerRunning = true
	log.Println("🚀 Starting delay scheduler worker...")

	go r.workerLoop(ctx)
}

// StopWorker detiene el worker de fondo
func (r *RedisScheduler) StopWorker() {
	if !r.workerRunning {
		return
	}

	log.Println("🛑 Stopping delay scheduler worker...")
	close(r.stopChan)
	r.workerRunning = false
}

func (r *RedisScheduler) workerLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️  Delay scheduler worker stopped (context done)")
			return
		case <-r.stopChan:
			log.Println("⏹️  Delay scheduler worker stopped")
			return
		case <-ticker.C:
			if err := r.processDueContinuations(ctx); err != nil {
				log.Printf("❌ Error processing due continuations: %v", err)
			}
		}
	}
}

func (r *RedisScheduler) processDueContinuations(ctx context.Context) error {
	now := float64(time.Now().Unix())

	jobs, err := r.redis.ZRangeByScore(ctx, delayedExecutionsKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%f", now),
		Count: 10,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to fetch due continuations: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("📋 Found %d due continuation(s)", len(jobs))

	for _, jobID := range jobs {
		// Reclamo atómico: sólo quien logra el ZRem ejecuta el job
		removed, err := r.redis.ZRem(ctx, delayedExecutionsKey, jobID).Result()
		if err != nil || removed == 0 {
			continue
		}

		go r.executeJob(context.Background(), jobID)
	}

	return nil
}

func (r *RedisScheduler) executeJob(ctx context.Context, jobID string) {
	log.Printf("▶️  Resuming delayed execution: %s", jobID)

	key := continuationPrefix + jobID
	data, err := r.redis.Get(ctx, key).Result()
	if err != nil {
		log.Printf("❌ Failed to retrieve continuation %s: %v", jobID, err)
		return
	}

	var continuation engine.Continuation
	if err := json.Unmarshal([]byte(data), &continuation); err != nil {
		log.Printf("❌ Failed to unmarshal continuation %s: %v", jobID, err)
		return
	}

	if r.onContinuation != nil {
		if err := r.onContinuation(ctx, &continuation); err != nil {
			log.Printf("❌ Failed to resume %s: %v", continuation.String(), err)
			return
		}
	}

	r.redis.Del(ctx, key)
	log.Printf("✅ Completed delayed job: %s", jobID)
}

// GetPendingCount retorna cuántas reanudaciones quedan agendadas
func (r *RedisScheduler) GetPendingCount(ctx context.Context) (int64, error) {
	return r.redis.ZCard(ctx, delayedExecutionsKey).Result()
}

// SetContinuationHandler permite cablear el handler después de construir
// el scheduler (el procesador de mensajes y el scheduler se referencian
// mutuamente).
func (r *RedisScheduler) SetContinuationHandler(handler engine.ContinuationHandler) {
	r.onContinuation = handler
}
