//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"jan-server/services/conversation-api/internal/config"
	"jan-server/services/conversation-api/internal/domain/chat"
	"jan-server/services/conversation-api/internal/domain/conversation"
	"jan-server/services/conversation-api/internal/domain/llm"
	"jan-server/services/conversation-api/internal/infrastructure/auth"
	"jan-server/services/conversation-api/internal/infrastructure/database"
	"jan-server/services/conversation-api/internal/infrastructure/llmprovider"
	"jan-server/services/conversation-api/internal/infrastructure/logger"
	"jan-server/services/conversation-api/internal/infrastructure/metrics"
	"jan-server/services/conversation-api/internal/infrastructure/repository/uow"
	"jan-server/services/conversation-api/internal/infrastructure/storage"
	"jan-server/services/conversation-api/internal/interfaces/httpserver"
	"jan-server/services/conversation-api/internal/interfaces/httpserver/handlers"
)

var conversationSet = wire.NewSet(
	uow.NewRepos,
	uow.NewManager,
	wire.Bind(new(conversation.TxManager), new(*uow.Manager)),
	newTreeMetrics,
	wire.Bind(new(conversation.Metrics), new(*metrics.TreeMetrics)),
	newRepairStepBudget,
	conversation.NewService,
	wire.Bind(new(handlers.ConversationService), new(*conversation.Service)),
	newLLMProvider,
	wire.Bind(new(llm.Provider), new(*llmprovider.Client)),
	newChatOptions,
	chat.NewOrchestrator,
	wire.Bind(new(handlers.ChatService), new(*chat.Orchestrator)),
	newAttachmentStore,
	wire.Bind(new(conversation.AttachmentStore), new(*storage.LocalStorage)),
)

// BuildApplication demonstrates how to assemble the conversation service with Wire.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		newDatabaseConfig,
		newGormDB,
		newAuthValidator,
		conversationSet,
		httpserver.New,
		NewApplication,
	)
	return nil, nil
}

func newAuthValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*auth.Validator, error) {
	return auth.NewValidator(ctx, cfg, log)
}

func newDatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		Path:     cfg.DatabasePath,
		LogLevel: gormlogger.Warn,
	}
}

func newGormDB(ctx context.Context, cfg database.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func newTreeMetrics() *metrics.TreeMetrics {
	return metrics.NewTreeMetrics()
}

func newRepairStepBudget(cfg *config.Config) conversation.RepairStepBudget {
	return conversation.RepairStepBudget(cfg.RepairStepBudget)
}

func newLLMProvider(cfg *config.Config) *llmprovider.Client {
	return llmprovider.NewClient(cfg.LLMAPIURL, cfg.LLMAPIKey)
}

func newChatOptions(cfg *config.Config) chat.Options {
	return chat.Options{
		Model:         cfg.LLMModel,
		SystemPrompt:  cfg.LLMSystemPrompt,
		ContextLength: cfg.LLMContextLength,
	}
}

func newAttachmentStore(cfg *config.Config, log zerolog.Logger) (*storage.LocalStorage, error) {
	return storage.NewLocalStorage(cfg.AttachmentPath, log)
}
