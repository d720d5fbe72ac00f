package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classroom-economy/cache"
	"classroom-economy/config"
	"classroom-economy/handlers"
	"classroom-economy/middleware"
	"classroom-economy/services"
	"classroom-economy/store"
	"classroom-economy/utils"
	"classroom-economy/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Println("⚠️  STORE_DRIVER=memory: state is lost on restart")
		st = store.NewMemoryStore()
	default:
		db, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("failed to connect to database: ", err)
		}
		gs := store.NewGormStore(db)
		if err := gs.Migrate(); err != nil {
			log.Fatal("failed to migrate database: ", err)
		}
		st = gs
	}

	var snapshots services.SnapshotCache = cache.NewMemoryCache(cfg.SnapshotCacheTTL)
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL, cfg.SnapshotCacheTTL)
		if err != nil {
			log.Fatal("failed to connect to redis: ", err)
		}
		defer rc.Close()
		snapshots = rc
	}

	var hooks []services.IntegrationHook
	if cfg.WebhookURL != "" {
		hooks = append(hooks, services.NewWebhookHook(cfg.WebhookURL, cfg.WebhookToken, utils.HTTPClient))
	}
	outbox := services.NewOutboxDispatcher(st, cfg.OutboxMaxAttempts, services.LogNotifier{}, hooks...)

	core := services.NewCore(services.Options{
		Store:              st,
		Location:           cfg.Location,
		DefaultDailyBudget: cfg.DefaultDailyBudget,
		Outbox:             outbox,
		Cache:              snapshots,
	})
	svc := handlers.Services{
		Core:        core,
		Progression: services.NewProgressionService(core),
		Jobs:        services.NewJobService(core),
		Quests:      services.NewQuestService(core),
		Events:      services.NewEventService(core),
		Guilds:      services.NewGuildService(core),
	}

	var archiver *services.LedgerArchiver
	if cfg.ArchiveEnabled() {
		uploader, err := utils.NewR2Uploader(ctx, cfg.R2AccountID, cfg.R2AccessKey, cfg.R2SecretKey, cfg.R2Bucket)
		if err != nil {
			log.Fatal("failed to initialize R2 client: ", err)
		}
		archiver = services.NewLedgerArchiver(core, uploader)
	} else {
		log.Println("⚠️  R2 not configured, ledger archive disabled")
	}

	sched, err := services.StartScheduler(ctx, core, svc.Progression, archiver, cfg.ArchiveHour)
	if err != nil {
		log.Fatal("failed to start scheduler: ", err)
	}

	go workers.PollOutbox(ctx, outbox, cfg.OutboxPollInterval)

	if cfg.RosterSyncURL != "" {
		workers.NewRosterSyncWorker(core, cfg.RosterSyncURL, "/api/v1/public/roster", cfg.GatewayToken, cfg.RosterSyncInterval, utils.HTTPClient).Start(ctx)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})
	app.Use(recover.New())

	// 🔐❗ GLOBAL: Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupRoutes(app, svc)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Port)
	log.Printf("✅ Store: %s, timezone: %s, default daily budget: %d", cfg.StoreDriver, cfg.Location, cfg.DefaultDailyBudget)
	log.Printf("✅ Outbox polling every %s (%d hook(s))", cfg.OutboxPollInterval, len(hooks))

	<-ctx.Done()
	log.Println("Shutting down server...")
	services.StopScheduler(sched)
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}
