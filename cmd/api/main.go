package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/oms-chat/internal/api/http"
	"github.com/spec-kit/oms-chat/internal/api/http/handlers"
	"github.com/spec-kit/oms-chat/internal/api/ws"
	"github.com/spec-kit/oms-chat/internal/auth"
	"github.com/spec-kit/oms-chat/internal/chat"
	"github.com/spec-kit/oms-chat/internal/config"
	"github.com/spec-kit/oms-chat/internal/events"
	"github.com/spec-kit/oms-chat/internal/observability"
	"github.com/spec-kit/oms-chat/internal/persistence"
	"github.com/spec-kit/oms-chat/internal/repository"
	"github.com/spec-kit/oms-chat/internal/service"
	"github.com/spec-kit/oms-chat/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewChatMessageRepository(pool)

	authService := service.NewAuthService(*cfg, userRepo)
	accessService := service.NewAccessService(ticketRepo, userRepo, logger)
	chatService := service.NewChatService(service.ChatDependencies{
		MessageRepo: messageRepo,
		TicketRepo:  ticketRepo,
		UserRepo:    userRepo,
		Access:      accessService,
	})

	var fanout chat.Fanout = chat.NewLocalFanout()
	if cfg.Chat.Fanout == config.FanoutRedis {
		redisFanout := chat.NewRedisFanout(redis.Client, cfg.Chat.RedisChannel, logger)
		go worker.RunWithRestart(ctx, "chat-fanout", redisFanout, logger)
		fanout = redisFanout
	}
	defer fanout.Close() //nolint:errcheck

	gateway, err := chat.NewGateway(chat.Dependencies{
		Verifier:   auth.NewVerifier(authService.Tokens()),
		Access:     accessService,
		Store:      chatService,
		Users:      chatService,
		Fanout:     fanout,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	}, chat.Options{
		HistoryLimit:     cfg.Chat.HistoryLimit,
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		EventTimeout:     cfg.Chat.EventTimeout(),
	})
	if err != nil {
		logger.Fatal("failed to build chat gateway", zap.Error(err))
	}

	notificationService := service.NewNotificationService(dispatcher, ticketRepo, gateway, logger)
	worker.StartNotificationWorker(notificationService)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:           handlers.NewAuthHandler(authService),
		TicketChat:     handlers.NewTicketChatHandler(chatService, gateway, metrics),
		AuthMiddleware: auth.NewAuthMiddleware(authService.Tokens(), userRepo),
	})

	chatServer := ws.NewServer(cfg.Chat, gateway, logger)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	go func() {
		if err := chatServer.ListenAndServe(); err != nil {
			logger.Fatal("chat listen", zap.Error(err))
		}
	}()
	logger.Info("service started",
		zap.String("http_addr", cfg.App.Addr()),
		zap.String("chat_addr", cfg.Chat.Addr()),
		zap.String("fanout", cfg.Chat.Fanout))

	waitForShutdown(logger)

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := chatServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("chat shutdown", zap.Error(err))
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
