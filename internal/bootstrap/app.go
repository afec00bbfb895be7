package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"toolsmith/internal/ai"
	"toolsmith/internal/config"
	"toolsmith/internal/model"
	mysqlClient "toolsmith/internal/platform/mysql"
	rabbitmqClient "toolsmith/internal/platform/rabbitmq"
	redisClient "toolsmith/internal/platform/redis"
	"toolsmith/internal/repository"
	"toolsmith/internal/worker"
)

type App struct {
	Config      *config.Config
	MySQL       *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	LLMClient   *ai.OpenAICompatibleClient
	EmbedWorker *worker.EmbedWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.User{},
		&model.Tool{},
		&model.ToolDocument{},
		&model.Document{},
		&model.DocumentSection{},
		&model.Thread{},
		&model.Message{},
		&model.Feedback{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	llmClient := ai.NewOpenAICompatibleClient()
	embedder := ai.NewEmbeddingClient(llmClient, ai.EmbeddingConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.EmbeddingModel,
	})

	sectionRepo := repository.NewSectionRepository(mysqlDB)
	embedWorker := worker.NewEmbedWorker(mqConn, sectionRepo, embedder, cfg.RabbitMQ.EmbedJobQueue)
	if err := embedWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start embed worker failed: %w", err)
	}

	return &App{
		Config:      cfg,
		MySQL:       mysqlDB,
		Redis:       redisCli,
		MQConn:      mqConn,
		LLMClient:   llmClient,
		EmbedWorker: embedWorker,
		StartedAt:   time.Now(),
	}, nil
}

// ChatConfigs returns the ordered backend list for generation: primary first,
// then the fallback deployment when one is configured.
func (a *App) ChatConfigs() []ai.ChatConfig {
	configs := []ai.ChatConfig{{
		BaseURL: a.Config.LLM.BaseURL,
		APIKey:  a.Config.LLM.APIKey,
		Model:   a.Config.LLM.Model,
	}}
	if a.Config.Fallback.Enabled {
		configs = append(configs, ai.ChatConfig{
			BaseURL: a.Config.Fallback.BaseURL,
			APIKey:  a.Config.Fallback.APIKey,
			Model:   a.Config.Fallback.Model,
		})
	}
	return configs
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.EmbedWorker != nil {
		a.EmbedWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
