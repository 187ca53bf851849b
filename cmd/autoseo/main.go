package main

import (
	"context"

	"autoseo/internal/audit"
	"autoseo/internal/billing"
	"autoseo/internal/config"
	"autoseo/internal/crawler"
	"autoseo/internal/database"
	"autoseo/internal/handlers"
	"autoseo/internal/logging"
	"autoseo/internal/monitoring"
	"autoseo/internal/server"
	"autoseo/internal/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("autoseo")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting AutoSEO (SEO Audit API)")

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = config.RequireEnv("DATABASE_URL")
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	if err := database.EnsureSchema(db, logger); err != nil {
		logger.WithError(err).Fatal("Failed to apply database schema")
	}

	adminKey := config.RequireEnv("ADMIN_API_KEY")

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("autoseo", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("autoseo", version.Version, version.GitCommit)

	// Create billing and audit pipeline metrics
	gateDecisions, usageEvents, rollovers := metricsCollector.CreateBillingMetrics()
	audits, pagesCrawled := metricsCollector.CreateAuditMetrics()

	// Billing engine
	engine := billing.NewEngine(db, logger, &billing.Metrics{
		GateDecisions: gateDecisions,
		UsageEvents:   usageEvents,
		Rollovers:     rollovers,
	})

	// Audit runner
	crawlerCfg := crawler.DefaultConfig()
	crawlerCfg.UserAgent = config.GetEnv("CRAWLER_USER_AGENT", crawler.DefaultUserAgent)
	crawlerCfg.FetchTimeout = config.GetEnvDuration("CRAWLER_FETCH_TIMEOUT", crawlerCfg.FetchTimeout)
	crawlerCfg.PolitenessDelay = config.GetEnvDuration("CRAWLER_POLITENESS_DELAY", crawlerCfg.PolitenessDelay)

	runner := audit.NewRunner(db, logger, engine, &audit.Metrics{
		Audits:       audits,
		PagesCrawled: pagesCrawled,
	}, crawlerCfg, config.GetEnvInt("AUDIT_WORKERS", audit.DefaultWorkers))

	// Sites stuck in running from a previous crash go back to failed
	if reset, err := runner.RecoverStale(audit.DefaultStaleThreshold); err != nil {
		logger.WithError(err).Warn("Stale audit recovery failed")
	} else if reset > 0 {
		logger.WithField("sites_reset", reset).Info("Recovered stale audits")
	}

	runnerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	runner.Start(runnerCtx)

	// Add health checks
	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("audit_queue", monitoring.AuditQueueHealthCheck(runner.QueueDepth))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL":  config.GetEnv("DATABASE_URL", ""),
		"ADMIN_API_KEY": config.GetEnv("ADMIN_API_KEY", ""),
	}))

	// Initialize handlers
	handlers.Init(db, logger, engine, runner)

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "autoseo", healthChecker, metricsCollector)
	handlers.SetupRoutes(router, adminKey)

	// Start server with graceful shutdown
	serverConfig := server.DefaultConfig("autoseo", "18021")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}

	// Drain queued audits before exiting
	runner.Stop()
}
