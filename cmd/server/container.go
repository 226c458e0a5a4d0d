package main

import (
	"context"
	"log"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	"github.com/Abraxas-365/chatflow/channels"
	"github.com/Abraxas-365/chatflow/channels/channelsinfra"
	"github.com/Abraxas-365/chatflow/channels/whatsapp"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/engine/delayscheduler"
	"github.com/Abraxas-365/chatflow/engine/engineapi"
	"github.com/Abraxas-365/chatflow/engine/engineinfra"
	"github.com/Abraxas-365/chatflow/engine/msgprocessor"
	"github.com/Abraxas-365/chatflow/engine/nodeexec"
	"github.com/Abraxas-365/chatflow/engine/waitsweep"
	"github.com/Abraxas-365/chatflow/engine/walker"
	"github.com/Abraxas-365/chatflow/engine/webhook"

	"github.com/Abraxas-365/chatflow/flow"
	"github.com/Abraxas-365/chatflow/flow/flowapi"
	"github.com/Abraxas-365/chatflow/flow/flowinfra"
	"github.com/Abraxas-365/chatflow/flow/flowmatcher"
	"github.com/Abraxas-365/chatflow/flow/flowsrv"

	"github.com/Abraxas-365/chatflow/loyalty/loyaltyinfra"

	"github.com/Abraxas-365/chatflow/pkg/config"
)

// Container contains all application dependencies
type Container struct {
	// =================================================================
	// CONFIGURATION & INFRASTRUCTURE
	// =================================================================
	Config      *config.Config
	DB          *sqlx.DB
	RedisClient *redis.Client

	// =================================================================
	// FLOWS
	// =================================================================
	FlowRepo    flow.FlowRepository
	FlowMatcher flow.FlowMatcher
	FlowService *flowsrv.FlowService
	FlowHandler *flowapi.FlowHandler

	// =================================================================
	// CHANNELS
	// =================================================================
	ChannelRepo channels.ChannelRepository
	Gateway     engine.MessageGateway
	MediaRelay  channels.MediaRelay

	// =================================================================
	// LOYALTY
	// =================================================================
	LoyaltyStore *loyaltyinfra.PostgresLoyaltyStore

	// =================================================================
	// ENGINE
	// =================================================================
	ExecutionRepo    engine.ExecutionRepository
	ExecutionLogRepo engine.ExecutionLogRepository
	ProcessedRepo    engine.ProcessedMessageRepository
	Deduper          *engineinfra.RedisDeduper
	CustomerLocker   engine.CustomerLocker
	Interpolator     engine.Interpolator
	Walker           engine.FlowWalker
	DelayScheduler   *delayscheduler.RedisScheduler
	MessageProcessor *msgprocessor.MessageProcessor
	WaitSweeper      *waitsweep.Sweeper

	// API Handlers
	WebhookHandler   *webhook.Handler
	ExecutionHandler *engineapi.ExecutionHandler
}

// NewContainer creates a new dependency container
func NewContainer(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client) *Container {
	c := &Container{
		Config:      cfg,
		DB:          db,
		RedisClient: redisClient,
	}

	log.Println("📦 Initializing dependency container...")

	c.initFlowComponents()
	c.initChannelComponents()
	c.initLoyaltyComponents()
	c.initEngineComponents() // engine last: uses flows, channels and loyalty

	log.Println("✅ Dependency container initialized successfully")

	return c
}

// =================================================================
// FLOWS
// =================================================================

func (c *Container) initFlowComponents() {
	log.Println("  📋 Initializing flow components...")

	c.FlowRepo = flowinfra.NewPostgresFlowRepository(c.DB)
	c.FlowMatcher = flowmatcher.NewMatcher(c.FlowRepo)
	c.FlowService = flowsrv.NewFlowService(c.FlowRepo)
	c.FlowHandler = flowapi.NewFlowHandler(c.FlowService)
}

// =================================================================
// CHANNELS
// =================================================================

func (c *Container) initChannelComponents() {
	log.Println("  📱 Initializing channel components...")

	c.ChannelRepo = channelsinfra.NewPostgresChannelRepository(c.DB)
	c.Gateway = whatsapp.NewGateway(c.ChannelRepo)
	c.MediaRelay = whatsapp.NewS3MediaRelay(c.Config.Media)
}

// =================================================================
// LOYALTY
// =================================================================

func (c *Container) initLoyaltyComponents() {
	log.Println("  🎟️ Initializing loyalty components...")

	c.LoyaltyStore = loyaltyinfra.NewPostgresLoyaltyStore(c.DB)
}

// =================================================================
// ENGINE
// =================================================================

func (c *Container) initEngineComponents() {
	log.Println("  ⚙️ Initializing engine components...")

	c.ExecutionRepo = engineinfra.NewPostgresExecutionRepository(c.DB)
	c.ExecutionLogRepo = engineinfra.NewPostgresExecutionLogRepository(c.DB)
	c.ProcessedRepo = engineinfra.NewPostgresProcessedMessageRepository(c.DB)
	c.Deduper = engineinfra.NewRedisDeduper(c.RedisClient)
	c.CustomerLocker = engineinfra.NewRedisCustomerLocker(c.RedisClient, c.Config.Engine.CustomerLockTTL)

	c.Interpolator = engine.NewInterpolator()

	c.Walker = walker.NewWalker(
		c.ExecutionLogRepo,
		c.Gateway,
		c.Config.Engine.MaxWalkSteps,
		nodeexec.NewSendExecutor(c.Gateway, c.Interpolator),
		nodeexec.NewWaitExecutor(),
		nodeexec.NewConditionExecutor(),
		nodeexec.NewSetVariableExecutor(c.Interpolator),
		nodeexec.NewLoopExecutor(),
		nodeexec.NewAPICallExecutor(c.Interpolator),
		nodeexec.NewDelayExecutor(c.Config.Engine.SyncDelayThreshold),
		nodeexec.NewCustomerDataExecutor(),
		nodeexec.NewUtilityExecutor(c.Interpolator),
		nodeexec.NewMarkReadExecutor(c.Gateway),
		nodeexec.NewEndExecutor(),
		nodeexec.NewStampCardExecutor(c.LoyaltyStore, c.Gateway, c.Interpolator),
	)

	// El handler de continuaciones necesita al procesador y el
	// procesador al scheduler: se cablea en dos pasos
	c.DelayScheduler = delayscheduler.NewRedisScheduler(
		c.RedisClient,
		c.Config.Engine.SyncDelayThreshold,
		nil,
	)

	c.MessageProcessor = msgprocessor.NewMessageProcessor(
		c.FlowRepo,
		c.FlowMatcher,
		c.ExecutionRepo,
		c.ProcessedRepo,
		c.Deduper,
		c.CustomerLocker,
		c.Walker,
		c.DelayScheduler,
		c.LoyaltyStore,
		c.Gateway,
		c.ChannelRepo,
	)

	c.DelayScheduler.SetContinuationHandler(c.MessageProcessor.HandleContinuation)

	c.WaitSweeper = waitsweep.NewSweeper(
		c.ExecutionRepo,
		c.ExecutionLogRepo,
		c.Config.Engine.WaitSweepSchedule,
		c.Config.Engine.WaitSweepBatch,
	)

	c.WebhookHandler = webhook.NewHandler(c.ChannelRepo, c.MessageProcessor, c.MediaRelay)
	c.ExecutionHandler = engineapi.NewExecutionHandler(c.ExecutionRepo, c.ExecutionLogRepo)
}

// =================================================================
// LIFECYCLE
// =================================================================

// StartWorkers arranca el worker de continuaciones y el barrido de waits
func (c *Container) StartWorkers(ctx context.Context) error {
	c.DelayScheduler.StartWorker(ctx)
	log.Println("  ⏰ Delay scheduler worker started")

	if err := c.WaitSweeper.Start(); err != nil {
		return err
	}

	return nil
}

func (c *Container) Cleanup() {
	log.Println("🧹 Cleaning up container resources...")

	if c.WaitSweeper != nil {
		c.WaitSweeper.Stop()
	}

	if c.DelayScheduler != nil {
		log.Println("  ⏰ Stopping delay scheduler...")
		c.DelayScheduler.StopWorker()
	}

	if c.DB != nil {
		log.Println("  🗄️ Closing database connections...")
		c.DB.Close()
	}

	if c.RedisClient != nil {
		log.Println("  🔴 Closing Redis connections...")
		c.RedisClient.Close()
	}

	log.Println("✅ Container cleanup complete")
}

func (c *Container) HealthCheck() map[string]bool {
	health := make(map[string]bool)

	if c.DB != nil {
		health["database"] = c.DB.Ping() == nil
	} else {
		health["database"] = false
	}

	if c.RedisClient != nil {
		health["redis"] = c.RedisClient.Ping(c.RedisClient.Context()).Err() == nil
	} else {
		health["redis"] = false
	}

	health["message_processor"] = c.MessageProcessor != nil
	health["delay_scheduler"] = c.DelayScheduler != nil
	health["wait_sweeper"] = c.WaitSweeper != nil

	return health
}

func (c *Container) GetServiceNames() []string {
	return []string{
		"FlowService",
		"FlowMatcher",
		"MessageProcessor",
		"Walker",
		"DelayScheduler",
		"WaitSweeper",
		"Gateway",
	}
}

func (c *Container) GetRepositoryNames() []string {
	return []string{
		"FlowRepo",
		"ChannelRepo",
		"ExecutionRepo",
		"ExecutionLogRepo",
		"ProcessedRepo",
		"LoyaltyStore",
	}
}
