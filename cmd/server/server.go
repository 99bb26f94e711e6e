package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"

	"jan-server/services/conversation-api/internal/config"
	"jan-server/services/conversation-api/internal/domain/chat"
	"jan-server/services/conversation-api/internal/domain/conversation"
	"jan-server/services/conversation-api/internal/infrastructure/auth"
	"jan-server/services/conversation-api/internal/infrastructure/database"
	"jan-server/services/conversation-api/internal/infrastructure/llmprovider"
	"jan-server/services/conversation-api/internal/infrastructure/logger"
	"jan-server/services/conversation-api/internal/infrastructure/metrics"
	"jan-server/services/conversation-api/internal/infrastructure/observability"
	"jan-server/services/conversation-api/internal/infrastructure/repository/uow"
	"jan-server/services/conversation-api/internal/infrastructure/storage"
	"jan-server/services/conversation-api/internal/interfaces/httpserver"
	"jan-server/services/conversation-api/internal/webhook"
	"jan-server/services/conversation-api/internal/worker"
)

// @title Conversation API
// @version 1.0
// @description Stores branching conversation trees: messages, branches, forks, and turn appends with consistency maintenance.
// @contact.name Jan Server Team
// @contact.url https://github.com/janhq/jan-server
// @BasePath /
type Application struct {
	httpServer *httpserver.HttpServer
	log        zerolog.Logger
}

func NewApplication(httpServer *httpserver.HttpServer, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		log:        log,
	}
}

func (a *Application) Start(ctx context.Context) error {
	return a.httpServer.Run(ctx)
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.EnableTracing {
		shutdownTelemetry, err := observability.SetupTracing(ctx, cfg.ServiceName, cfg.Environment, cfg.OTLPEndpoint)
		if err != nil {
			log.Fatal().Err(err).Msg("initialize tracing")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("shutdown tracing")
			}
		}()
	}

	db, err := database.Connect(database.Config{
		Path:     cfg.DatabasePath,
		LogLevel: gormlogger.Warn,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}

	if err := database.AutoMigrate(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	authValidator, err := auth.NewValidator(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize auth validator")
	}

	conversationService := conversation.NewService(
		uow.NewRepos(db),
		uow.NewManager(db),
		metrics.NewTreeMetrics(),
		conversation.RepairStepBudget(cfg.RepairStepBudget),
		log,
	)

	attachmentStore, err := storage.NewLocalStorage(cfg.AttachmentPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize attachment storage")
	}

	var chatService *chat.Orchestrator
	if cfg.LLMAPIURL != "" {
		llmClient := llmprovider.NewClient(cfg.LLMAPIURL, cfg.LLMAPIKey)
		chatService = chat.NewOrchestrator(conversationService, llmClient, chat.Options{
			Model:         cfg.LLMModel,
			SystemPrompt:  cfg.LLMSystemPrompt,
			ContextLength: cfg.LLMContextLength,
		}, log)
	}

	// Background consistency sweeps
	if cfg.MaintenanceEnabled {
		notifier := webhook.NewHTTPService(cfg.MaintenanceWebhookURL, log)
		runner := worker.NewRunner(conversationService, notifier, worker.Config{
			Interval:  cfg.MaintenanceInterval,
			Repair:    cfg.MaintenanceRepair,
			BatchSize: cfg.MaintenanceBatch,
		}, log)
		if err := runner.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("start maintenance runner")
		}
		defer runner.Stop()
	}

	httpServer := newHTTPServer(cfg, log, conversationService, chatService, attachmentStore, authValidator)
	app := NewApplication(httpServer, log)

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

// newHTTPServer keeps a nil *chat.Orchestrator from becoming a non-nil
// interface value inside the handler provider.
func newHTTPServer(cfg *config.Config, log zerolog.Logger, conversations *conversation.Service, chatService *chat.Orchestrator, store conversation.AttachmentStore, authValidator *auth.Validator) *httpserver.HttpServer {
	if chatService == nil {
		return httpserver.New(cfg, log, conversations, nil, store, authValidator)
	}
	return httpserver.New(cfg, log, conversations, chatService, store, authValidator)
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
