package main

import (
	"context"
	"time"

	"github.com/AReid987/real-estate-agents/internal/content"
	"github.com/AReid987/real-estate-agents/internal/handlers"
	"github.com/AReid987/real-estate-agents/internal/listings"
	"github.com/AReid987/real-estate-agents/internal/notifications"
	"github.com/AReid987/real-estate-agents/internal/orchestrator"
	"github.com/AReid987/real-estate-agents/internal/scheduler"
	"github.com/AReid987/real-estate-agents/internal/workflow"
	"github.com/AReid987/real-estate-agents/pkg/config"
	"github.com/AReid987/real-estate-agents/pkg/database"
	"github.com/AReid987/real-estate-agents/pkg/email"
	"github.com/AReid987/real-estate-agents/pkg/llm"
	"github.com/AReid987/real-estate-agents/pkg/logging"
	"github.com/AReid987/real-estate-agents/pkg/monitoring"
	"github.com/AReid987/real-estate-agents/pkg/server"
	"github.com/AReid987/real-estate-agents/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("herald")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Herald (Real Estate Marketing Automation)")

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = config.GetEnv("DATABASE_URL", "")
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	if err := database.ApplySchema(context.Background(), db, logger); err != nil {
		logger.WithError(err).Fatal("Failed to apply database schema")
	}

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("herald", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("herald", version.Version, version.GitCommit)

	transitions, dispatched, posts := metricsCollector.CreateWorkflowMetrics()

	// LLM provider is optional; content generation falls back to templates
	// without one
	var provider llm.Provider
	llmConfig := llm.LoadConfig()
	if llmConfig.IsConfigured() {
		p, err := llm.NewProvider(llmConfig)
		if err != nil {
			logger.WithError(err).Fatal("Invalid LLM configuration")
		}
		provider = p
		logger.WithField("provider", llmConfig.Provider).Info("LLM provider configured")
	} else {
		logger.Info("No LLM provider configured, using template content generation")
	}

	// Notification channels
	emailSender := email.NewSender(email.ConfigFromEnv())
	emailChannel := notifications.NewSMTPEmailChannel(emailSender, logger)
	pushChannel := notifications.NewLogPushChannel(logger)
	smsChannel := notifications.NewLogSMSChannel(logger)

	// Social poster falls back to a logging mock when no gateway is set
	var poster scheduler.Poster
	httpPoster := scheduler.NewHTTPPosterFromEnv()
	if httpPoster.IsConfigured() {
		poster = httpPoster
	} else {
		logger.Info("No social gateway configured, using mock poster")
		poster = scheduler.NewLogPoster(logger)
	}

	// Domain components
	generator := content.NewGenerator(db, logger, provider)
	wf := workflow.New(db, logger, transitions)
	sched := scheduler.New(db, logger, poster, posts)
	dispatcher := notifications.NewDispatcher(db, logger, emailChannel, pushChannel, smsChannel, dispatched)
	ingester := listings.NewIngester(db, logger, listings.NewHTTPSourceFromEnv())

	orch := orchestrator.New(orchestrator.ConfigFromEnv(), logger, generator, wf, sched, dispatcher, ingester)

	// Add health checks
	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("orchestrator", monitoring.OrchestratorHealthCheck(orch.IsRunning))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": config.GetEnv("DATABASE_URL", ""),
	}))

	// Start the periodic loops
	if err := orch.Initialize(context.Background()); err != nil {
		logger.WithError(err).Fatal("Failed to start orchestrator")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := orch.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("Orchestrator shutdown failed")
		}
	}()

	// Initialize handlers
	handlers.Init(logger, orch, wf, sched, dispatcher, ingester)

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "herald", healthChecker, metricsCollector)

	agents := router.Group("/agents")
	{
		agents.POST("/generate-content", handlers.GenerateContent)
		agents.POST("/approve-content", handlers.ApproveContent)
		agents.GET("/pending-approvals", handlers.GetPendingApprovals)
		agents.POST("/schedule-post", handlers.SchedulePost)
		agents.GET("/status", handlers.GetStatus)
	}

	router.POST("/notifications/:id/read", handlers.MarkNotificationRead)
	router.GET("/listings", handlers.GetListings)

	// Start server with graceful shutdown
	serverConfig := server.DefaultConfig("herald", "18030")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
