package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"toolsmith/internal/ai"
	appsvc "toolsmith/internal/app"
	"toolsmith/internal/bootstrap"
	"toolsmith/internal/cache"
	"toolsmith/internal/platform/rabbitmq"
	"toolsmith/internal/rag"
	"toolsmith/internal/repository"
	"toolsmith/internal/transport/http/handler"
	"toolsmith/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	toolRepo := repository.NewToolRepository(app.MySQL)
	docRepo := repository.NewDocumentRepository(app.MySQL)
	sectionRepo := repository.NewSectionRepository(app.MySQL)
	threadRepo := repository.NewThreadRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)
	feedbackRepo := repository.NewFeedbackRepository(app.MySQL)

	historyCache := cache.NewHistoryCache(app.Redis, time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second)
	embedPublisher := rabbitmq.NewEmbedJobPublisher(app.MQConn, app.Config.RabbitMQ.EmbedJobQueue)

	failover := ai.NewFailover(app.LLMClient, app.ChatConfigs()...)
	embedder := ai.NewEmbeddingClient(app.LLMClient, ai.EmbeddingConfig{
		BaseURL: app.Config.LLM.BaseURL,
		APIKey:  app.Config.LLM.APIKey,
		Model:   app.Config.LLM.EmbeddingModel,
	})

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	toolService := appsvc.NewToolService(toolRepo, docRepo)
	docService := appsvc.NewDocumentService(
		docRepo,
		sectionRepo,
		embedPublisher,
		failover,
		app.Config.Upload.Dir,
		app.Config.Retrieval.ChunkMinWords,
		app.Config.Retrieval.ChunkMaxWords,
	)
	convoService := appsvc.NewConversationService(threadRepo, messageRepo, feedbackRepo, messageRepo, historyCache)
	generateService := appsvc.NewGenerateService(appsvc.GenerateDeps{
		Tools:          toolService,
		Convo:          convoService,
		Documents:      docService,
		Sections:       sectionRepo,
		Classifier:     rag.NewLLMClassifier(failover),
		Embedder:       embedder,
		Searcher:       rag.NewSectionSearcher(sectionRepo),
		Streamer:       failover,
		MatchThreshold: app.Config.Retrieval.MatchThreshold,
		MatchLimit:     app.Config.Retrieval.MatchLimit,
		WindowRadius:   app.Config.Retrieval.WindowRadius,
	})

	authHandler := handler.NewAuthHandler(authService)
	toolHandler := handler.NewToolHandler(toolService)
	docHandler := handler.NewDocumentHandler(docService, app.Config.Upload.MaxSizeBytes)
	threadHandler := handler.NewThreadHandler(convoService)
	generateHandler := handler.NewGenerateHandler(generateService)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	authed := v1.Group("")
	authed.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))

	authed.POST("/tools", toolHandler.Create)
	authed.GET("/tools", toolHandler.List)
	authed.GET("/tools/:id", toolHandler.Get)
	authed.PATCH("/tools/:id", toolHandler.Update)
	authed.DELETE("/tools/:id", toolHandler.Delete)
	authed.POST("/tools/:id/documents", toolHandler.AttachDocument)
	authed.GET("/tools/:id/documents", toolHandler.ListDocuments)
	authed.DELETE("/tools/:id/documents/:doc_id", toolHandler.DetachDocument)

	authed.POST("/documents", docHandler.Upload)
	authed.GET("/documents", docHandler.List)
	authed.GET("/documents/:id", docHandler.Get)
	authed.POST("/documents/:id/summarize", docHandler.Summarize)
	authed.DELETE("/documents/:id", docHandler.Delete)

	authed.GET("/threads", threadHandler.List)
	authed.GET("/threads/:id/messages", threadHandler.Messages)
	authed.DELETE("/threads/:id", threadHandler.Delete)
	authed.POST("/feedback", threadHandler.SubmitFeedback)

	authed.POST("/generate", generateHandler.Stream)

	return router
}
