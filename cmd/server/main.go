// Command server is a thin demo entrypoint wiring the scan pipeline
// end to end: config, parser, pattern catalogue, analyzers, ML
// detector, cache tier, admission layer, event sinks, telemetry, and
// the orchestrator, behind a small gin HTTP surface. Production
// deployments are expected to embed internal/orchestrator directly
// rather than run this binary; it exists to exercise the pipeline.
package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rawblock/txscan-engine/internal/analyzers"
	"github.com/rawblock/txscan-engine/internal/admission"
	"github.com/rawblock/txscan-engine/internal/cache"
	"github.com/rawblock/txscan-engine/internal/config"
	"github.com/rawblock/txscan-engine/internal/events"
	"github.com/rawblock/txscan-engine/internal/explainer"
	"github.com/rawblock/txscan-engine/internal/httpapi"
	"github.com/rawblock/txscan-engine/internal/ml"
	"github.com/rawblock/txscan-engine/internal/orchestrator"
	"github.com/rawblock/txscan-engine/internal/parser"
	"github.com/rawblock/txscan-engine/internal/patterns"
	"github.com/rawblock/txscan-engine/internal/telemetry"
	"github.com/rawblock/txscan-engine/internal/threatfeed"
)

func main() {
	log.Println("Starting txscan-engine (Microservice: realtime-tx-risk-scanner)...")

	cfg := config.Load()

	var redisClient *goredis.Client
	if cfg.RedisAddr != "" {
		redisClient = goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("Warning: Redis unreachable at %s, continuing with L1-only cache. Error: %v", cfg.RedisAddr, err)
			redisClient = nil
		}
	} else {
		log.Println("REDIS_ADDR not set, continuing with L1-only cache")
	}

	var pgPool *pgxpool.Pool
	if cfg.DSN != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DSN)
		if err != nil {
			log.Printf("Warning: Failed to connect to PostgreSQL, continuing without the scan-event sink. Error: %v", err)
		} else if err := pool.Ping(context.Background()); err != nil {
			log.Printf("Warning: PostgreSQL ping failed, continuing without the scan-event sink. Error: %v", err)
		} else {
			pgPool = pool
			defer pgPool.Close()
		}
	} else {
		log.Println("DATABASE_URL not set, continuing without the scan-event sink")
	}

	cacheTier := cache.New(redisClient, cache.NamespacesFromConfig(cfg.CacheNamespaces), cache.BreakerConfig{
		FailureThreshold: uint32(cfg.CacheBreakerFailureThreshold),
		ResetTimeout:     cfg.CacheBreakerResetPeriod,
	})

	registry := analyzers.NewProgramRegistry(nil, nil)
	programAnalyzer := analyzers.NewProgramAnalyzer(registry)
	accountAnalyzer := analyzers.NewAccountAnalyzer()

	catalogue := patterns.NewCatalogue(nil)
	patternEngine := patterns.NewEngine(catalogue, cacheTier, patterns.DefaultDeadlines())

	detector := ml.NewDeterministicDetector()
	explainerClient := explainer.New(nil, cfg.ExplainerDeadline)

	wsHub := events.NewWSBroadcastSink()
	go wsHub.Run()

	var sinks []events.ScanEventSink
	sinks = append(sinks, wsHub)
	if pgPool != nil {
		sinks = append(sinks, events.NewPostgresSink(pgPool, 0, 0))
	}
	multiSink := events.NewMultiSink(sinks...)

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	tracerProvider := telemetry.NewTracerProvider("txscan-engine")
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Printf("Warning: tracer provider shutdown failed: %v", err)
		}
	}()

	deadlines := orchestrator.Deadlines{
		Pipeline: cfg.PipelineDeadline,
		Program:  cfg.PerAnalyzerDeadlines["program"],
		Pattern:  cfg.PerAnalyzerDeadlines["pattern"],
		ML:       cfg.PerAnalyzerDeadlines["ml"],
		Account:  cfg.PerAnalyzerDeadlines["account"],
	}
	orch := orchestrator.New(
		programAnalyzer, accountAnalyzer, patternEngine, detector, explainerClient,
		multiSink, deadlines,
		orchestrator.WithCaches(cacheTier, cacheTier),
		orchestrator.WithObserver(metrics),
	)

	admitter := admission.New(admission.Config{
		MaxQueueSize:      cfg.QueueMaxSize,
		WorkerCount:       cfg.WorkerCount,
		ConcurrencyLimit:  cfg.ConcurrencyLimit,
		BreakerThreshold:  uint32(cfg.AdmissionBreakerThreshold),
		BreakerResetAfter: cfg.AdmissionBreakerResetPeriod,
	})
	defer admitter.Stop()

	if cfg.ThreatFeedPath != "" {
		scheduler := threatfeed.NewScheduler(
			threatfeed.NewJSONFileSource(cfg.ThreatFeedPath),
			catalogue,
			cfg.ThreatFeedInterval,
			cfg.ThreatFeedRetry,
		)
		go scheduler.Run(context.Background())
	} else {
		log.Println("THREAT_FEED_PATH not set, pattern catalogue will not auto-reload")
	}

	p := parser.New(5 * time.Minute)

	handler := httpapi.NewHandler(admitter, orch, p, cacheTier, cfg.PipelineDeadline, httpapi.WithStatus(catalogue, cacheTier))
	router := httpapi.SetupRouter(handler, wsHub, httpapi.RouterConfig{
		AllowedOrigins:  cfg.AllowedOrigin,
		AuthToken:       cfg.APIAuthToken,
		RateLimitPerMin: 120,
		RateLimitBurst:  20,
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	log.Printf("Engine running on :%s (API node: realtime-tx-risk-scanner)\n", cfg.HTTPAddr)
	if err := router.Run(":" + cfg.HTTPAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
