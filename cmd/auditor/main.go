package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"brandlens/internal/audit"
	"brandlens/internal/audit/orchestrator"
	"brandlens/internal/audit/progress"
	"brandlens/internal/infra/provider"
	workerPkg "brandlens/internal/infra/worker"
	"brandlens/internal/observability/logging"
	"brandlens/internal/observability/slo"
	"brandlens/internal/observability/tracing"
	"brandlens/internal/resilience/circuitbreaker"
	"brandlens/internal/resilience/classify"
	"brandlens/internal/resilience/fallback"
	"brandlens/internal/resilience/retry"
)

func main() {
	logger := initLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := tracing.Init("brandlens-auditor")
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("tracer shutdown failed", slog.Any("error", err))
		}
	}()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewMetrics()
	workerConfig := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	logger.Info("auditor configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("audit_timeout", workerConfig.AuditTimeout),
		slog.String("plan_path", workerConfig.PlanPath),
		slog.Int("health_port", workerConfig.HealthPort))

	plan, err := audit.LoadPlan(workerConfig.PlanPath)
	if err != nil {
		logger.Error("failed to load audit plan",
			slog.String("path", workerConfig.PlanPath),
			slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("audit plan loaded",
		slog.String("brand", plan.Brand.Name),
		slog.Int("stages", len(plan.Stages)),
		slog.Int("worker_limit", plan.WorkerLimit))

	svc, chain := setupAuditService(logger, plan)
	defer chain.Close()

	// Latest progress snapshot, exposed by the metrics server.
	store := &progressStore{}

	startMetricsServer(ctx, logger, store)

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	startCronWorker(ctx, logger, svc, plan, store, workerConfig, workerMetrics, healthServer)
}

// initLogger selects the log handler from LOG_FORMAT: "text" gives the
// colorized console handler for local runs, anything else JSON.
func initLogger() *slog.Logger {
	var logger *slog.Logger
	if os.Getenv("LOG_FORMAT") == "text" {
		logger = logging.NewTextLogger()
	} else {
		logger = logging.NewLogger()
	}
	slog.SetDefault(logger)
	return logger
}

// setupAuditService wires the audit service: providers, fallback chain,
// circuit breakers, and the orchestrator.
func setupAuditService(logger *slog.Logger, plan *audit.Plan) (*audit.Service, *fallback.Chain) {
	httpClient := createHTTPClient()

	chain := fallback.New(fallback.DefaultConfig())

	// Secondary-model fallback for LLM visibility probing.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		chain.Register("llm", provider.NewOpenAIVisibilityProvider(key))
		logger.Info("OpenAI visibility fallback registered")
	} else {
		logger.Info("OpenAI visibility fallback disabled, OPENAI_API_KEY not set")
	}

	// Website scrape fallback for brand profile data.
	chain.Register("brand", provider.NewBrandScrapeProvider(createScraperHTTPClient()))

	prober := createProber(logger)
	news := provider.NewNewsFetcher(httpClient, plan.NewsFeeds)

	var profile audit.ProfileClient
	if baseURL := os.Getenv("BRAND_API_URL"); baseURL != "" {
		profile = provider.NewBrandDataClient(httpClient, baseURL, 5, 10)
		logger.Info("brand data client initialized", slog.String("base_url", baseURL))
	} else {
		logger.Warn("brand data client disabled, BRAND_API_URL not set")
	}

	breakers := circuitbreaker.NewRegistry(breakerConfigFor)
	executor := retry.NewExecutor(classify.New(chain))
	orch := orchestrator.New(executor, breakers, chain, orchestrator.Config{
		WorkerLimit: plan.WorkerLimit,
	})

	return audit.NewService(orch, prober, news, profile), chain
}

// breakerConfigFor maps each stage to the breaker tuning for its data
// source. Unknown stages get the default configuration.
func breakerConfigFor(name string) circuitbreaker.Config {
	switch name {
	case audit.StageLLMVisibility:
		return circuitbreaker.LLMAPIConfig(name)
	case audit.StageNewsMentions:
		return circuitbreaker.NewsFeedConfig(name)
	case audit.StageBrandData:
		return circuitbreaker.BrandAPIConfig(name)
	default:
		return circuitbreaker.DefaultConfig(name)
	}
}

// createProber creates the LLM visibility prober. The Anthropic API key
// is required; the audit has no primary data source without it.
func createProber(logger *slog.Logger) *provider.LLMProber {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		logger.Error("ANTHROPIC_API_KEY is required")
		os.Exit(1)
	}
	return provider.NewLLMProber(apiKey)
}

// createHTTPClient creates an HTTP client with timeouts and connection
// pooling. TLS 1.2+ is enforced.
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}

// createScraperHTTPClient creates the client used for website scraping.
// Shorter timeout than the API client; URL validation happens in the
// scrape provider.
func createScraperHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}

// startCronWorker starts the cron scheduler and blocks until shutdown.
func startCronWorker(ctx context.Context, logger *slog.Logger, svc *audit.Service, plan *audit.Plan, store *progressStore, cfg workerPkg.Config, metrics *workerPkg.Metrics, healthServer *workerPkg.HealthServer) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	sloRecorder := slo.NewRecorder()
	_, err = c.AddFunc(cfg.CronSchedule, func() {
		runAuditJob(ctx, logger, svc, plan, store, cfg, metrics, sloRecorder)
	})
	if err != nil {
		logger.Error("failed to add cron job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	healthServer.SetReady(true)
	logger.Info("auditor started",
		slog.String("schedule", cfg.CronSchedule),
		slog.String("timezone", cfg.Timezone))

	<-ctx.Done()
	healthServer.SetReady(false)

	// Let a running job finish before exiting.
	stopCtx := c.Stop()
	<-stopCtx.Done()
	logger.Info("auditor stopped")
}

// runAuditJob executes one scheduled audit with a timeout.
func runAuditJob(ctx context.Context, logger *slog.Logger, svc *audit.Service, plan *audit.Plan, store *progressStore, cfg workerPkg.Config, metrics *workerPkg.Metrics, sloRecorder *slo.Recorder) {
	startTime := time.Now()
	logger.Info("audit started", slog.String("brand", plan.Brand.Name))

	jobCtx, cancel := context.WithTimeout(ctx, cfg.AuditTimeout)
	defer cancel()

	sink := func(s progress.Snapshot) {
		store.Set(s)
		logger.Debug("audit progress",
			slog.String("analysis_id", s.AnalysisID),
			slog.String("status", string(s.Status)),
			slog.String("stage", s.CurrentStage),
			slog.Float64("overall_progress", s.OverallProgress))
	}

	run, result, err := svc.Run(jobCtx, plan, sink)
	if err != nil {
		logger.Error("audit failed", slog.Any("error", err))
		metrics.RecordJobRun("failure")
		metrics.RecordJobDuration(time.Since(startTime).Seconds())
		if result != nil {
			sloRecorder.ObserveRun(false, result.FallbacksUsed > 0, result.StagesTotal, result.StagesFailed)
		}
		return
	}

	metrics.RecordJobRun("success")
	metrics.RecordJobDuration(time.Since(startTime).Seconds())
	metrics.RecordStagesSettled(result.StagesSucceeded + result.StagesFellBack)
	if result.Succeeded() {
		metrics.RecordLastSuccess()
	}
	sloRecorder.ObserveRun(result.Succeeded(), result.FallbacksUsed > 0, result.StagesTotal, result.StagesFailed)

	logger.Info("audit completed",
		slog.String("run_id", run.ID),
		slog.String("status", string(run.Status)),
		slog.Int("stages_succeeded", result.StagesSucceeded),
		slog.Int("stages_fell_back", result.StagesFellBack),
		slog.Int("stages_failed", result.StagesFailed),
		slog.Int64("retries_used", result.RetriesUsed),
		slog.Int("peak_concurrency", result.PeakConcurrency),
		slog.Duration("duration", result.Duration),
	)
}
