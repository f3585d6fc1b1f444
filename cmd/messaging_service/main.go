package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "school_messaging_service/cmd/messaging_service/docs"
	"school_messaging_service/internal/messaging/app"
	"school_messaging_service/internal/messaging/repository"
	"school_messaging_service/internal/messaging/router"
	presence "school_messaging_service/internal/presence/app"
	"school_messaging_service/pkg/config"
	"school_messaging_service/pkg/database"
	"school_messaging_service/pkg/logger"
	"school_messaging_service/pkg/relay"
	testtool "school_messaging_service/pkg/test_tool"
	"school_messaging_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.MessagingService, config.EnvConfig.MessagingServiceLogPath)
	defer logger.Log.Sync()
	cfg := config.LoadConfig[config.Messaging](config.EnvConfig.MessagingService, config.EnvConfig.MessagingServiceYAMLPath)
	logger.Log.SetDebugMode(!config.IsProduction())

	if cfg.JWTSecret != "" {
		token.SetSecret(cfg.JWTSecret)
	}
	testtool.StartPprof(cfg.Pprof)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 訊息儲存
	db := openStore(cfg)
	store := repository.NewStore(db)
	if err := store.AutoMigrate(); err != nil {
		logger.Log.Fatal("auto migrate failed", zap.Error(err))
	}

	// 2. 使用者目錄
	users := openUserDirectory(ctx, cfg)

	// 3. Relay (Pub/Sub)
	rl := openRelay(ctx, cfg)
	defer rl.Close()

	// 4. 下游 message.sent
	var sink repository.MessageSink = repository.NopMessageSink{}
	if len(cfg.Kafka.Brokers) > 0 {
		w, err := database.NewKafkaWriterWithRetry(ctx, database.KafkaConnection{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			RetryCount:    cfg.Kafka.RetryCount,
			RetryInterval: time.Duration(cfg.Kafka.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal("kafka unavailable", zap.Strings("brokers", cfg.Kafka.Brokers), zap.Error(err))
		}
		defer w.Close()
		sink = repository.NewKafkaMessageSink(w)
	}

	// 5. Repository / UseCase
	convRepo := repository.NewConversationRepository(store)
	partRepo := repository.NewParticipantRepository(store)
	msgRepo := repository.NewMessageRepository(store)
	notifier := app.NewNotifier(rl, cfg.Relay.PublishTimeout)

	convUC := app.NewConversationUseCase(store, convRepo, partRepo, msgRepo, users, notifier)
	msgUC := app.NewMessageUseCase(store, convRepo, partRepo, msgRepo, notifier, sink)

	announcer := presence.NewAnnouncer(rl, cfg.Presence.HeartbeatInterval)
	tracker := presence.NewTracker(rl, cfg.Presence.HeartbeatInterval)
	if err := tracker.Start(ctx); err != nil {
		logger.Log.Fatal("presence tracker failed to start", zap.Error(err))
	}
	defer tracker.Stop()

	// 6. 啟動 Fiber
	r := fiber.New(fiber.Config{DisableStartupMessage: config.IsProduction()})
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.MessagingServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	router.RegisterRoutes(r,
		app.NewMessagingHandler(convUC, msgUC),
		presence.NewPresenceHandler(announcer, tracker),
		app.NewMessagingWebsocketHandler(rl, msgUC, announcer),
	)

	port := cfg.Port
	if config.EnvConfig.MessagingServicePort != "" {
		port = config.EnvConfig.MessagingServicePort
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Log.Info("Messaging Service listening", zap.String("port", port))
		return r.Listen(":" + port)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info("shutting down")
		return r.ShutdownWithTimeout(10 * time.Second)
	})
	if err := g.Wait(); err != nil {
		logger.Log.Error("messaging service stopped", zap.Error(err))
	}
}

func openStore(cfg config.Messaging) *gorm.DB {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "./messaging.db"
		}
		db, err := database.NewGormSQLite(path)
		if err != nil {
			logger.Log.Fatal("open sqlite failed", zap.String("path", path), zap.Error(err))
		}
		return db
	default:
		db, err := database.NewGormPostgres(database.Connection{
			ConnectStr:    cfg.Postgres.DSN(),
			RetryCount:    cfg.Postgres.RetryCount,
			RetryInterval: time.Duration(cfg.Postgres.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal("Unable to connect to PostgreSQL database after retries",
				zap.String("host", cfg.Postgres.Host), zap.Error(err))
		}
		return db
	}
}

// openUserDirectory the member table lives in the same postgres; sqlite
// deployments trust the token
func openUserDirectory(ctx context.Context, cfg config.Messaging) repository.UserDirectory {
	if cfg.Store.Driver == "sqlite" {
		return repository.OpenUserDirectory{}
	}
	pool, err := database.NewDatabaseConnection(ctx, database.Connection{
		ConnectStr:    cfg.Postgres.DSN(),
		RetryCount:    cfg.Postgres.RetryCount,
		RetryInterval: time.Duration(cfg.Postgres.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to PostgreSQL database after retries",
			zap.String("host", cfg.Postgres.Host), zap.Error(err))
	}
	return repository.NewPgUserDirectory(pool)
}

func openRelay(ctx context.Context, cfg config.Messaging) relay.Relay {
	if cfg.Relay.Backend != "redis" {
		logger.Log.Info("using in-process relay")
		return relay.NewMemoryRelay(0)
	}
	masterName, sentinel := config.GetRedisSetting()
	client, err := database.NewRedisClient(ctx, cfg.Redis.Addr, masterName, sentinel, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}
	return relay.NewRedisRelay(client)
}
