package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cargodesk-backend/internal/config"
	"cargodesk-backend/internal/database"
	"cargodesk-backend/internal/discord"
	"cargodesk-backend/internal/handler"
	"cargodesk-backend/internal/middleware"
	"cargodesk-backend/internal/realtime"
	"cargodesk-backend/internal/repository"
	"cargodesk-backend/internal/repository/memory"
	"cargodesk-backend/internal/service"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	startedAt := time.Now()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	health := map[string]handler.Pinger{}

	// Storage
	var stores service.Stores
	if cfg.UseMemoryStore() {
		log.Println("Using in-memory store (DATABASE_URL=memory://), data is lost on restart")
		db := memory.New()
		stores = service.Stores{
			Chats:         db.Chats(),
			Messages:      db.Messages(),
			Notifications: db.Notifications(),
			Staff:         db.Staff(),
		}
	} else {
		pool, err := database.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()

		if _, err := database.RunMigrations(ctx, pool); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Println("Migrations applied successfully")

		health["database"] = pool
		stores = service.Stores{
			Chats:         repository.NewChatRepository(pool),
			Messages:      repository.NewMessageRepository(pool),
			Notifications: repository.NewNotificationRepository(pool),
			Staff:         repository.NewStaffRepository(pool),
		}
	}

	// Realtime
	hub := realtime.NewHub()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		relay := realtime.NewRedisRelay(rdb, hub)
		health["redis"] = relay
		go relay.Run(ctx)
		log.Println("Realtime relay enabled via Redis")
	}
	go hub.Run()

	// Services
	alerts, err := service.NewStaffAlertService(cfg.DiscordStaffWebhook)
	if err != nil {
		log.Fatalf("Invalid DISCORD_STAFF_WEBHOOK: %v", err)
	}
	support := service.NewSupport(stores, hub, alerts, service.SystemClock)
	support.Messages.SetPageSize(cfg.DefaultPageSize)
	authSvc := service.NewAuthService(cfg.JWTSecret)

	retention, err := service.NewRetentionJob(stores.Notifications, cfg.RetentionCron,
		time.Duration(cfg.NotificationRetentionDays)*24*time.Hour, service.SystemClock)
	if err != nil {
		log.Fatalf("Invalid retention settings: %v", err)
	}
	go retention.Run(ctx)

	bot, err := discord.NewBot(cfg.DiscordBotToken, support, hub)
	if err != nil {
		log.Fatalf("Failed to create Discord bot: %v", err)
	}
	if err := bot.Start(); err != nil {
		log.Printf("Discord bot failed to start: %v", err)
	}
	defer bot.Stop()

	// Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
		BodyLimit:    1 * 1024 * 1024, // 1MB
	})

	app.Use(recover.New())
	app.Use(middleware.Logger(500 * time.Millisecond))
	app.Use(cors.New())

	handler.Mount(app, handler.Deps{
		Config:    cfg,
		Auth:      authSvc,
		Support:   support,
		Hub:       hub,
		Health:    health,
		StartedAt: startedAt,
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Printf("Support backend running on :%s (%s), body limit %s", cfg.Port, cfg.Env, humanize.IBytes(1*1024*1024))

	<-quit
	log.Println("Shutting down...")
	_ = app.ShutdownWithTimeout(5 * time.Second)
	stop()
	hub.Shutdown()
	log.Println("Server stopped")
}
