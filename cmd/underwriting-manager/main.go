// cmd/underwriting-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loan-underwriting/internal/audit"
	"loan-underwriting/internal/common/aws"
	"loan-underwriting/internal/common/camunda"
	"loan-underwriting/internal/common/config"
	"loan-underwriting/internal/common/database"
	"loan-underwriting/internal/common/logger"
	"loan-underwriting/internal/common/observability"
	"loan-underwriting/internal/store"
	"loan-underwriting/internal/underwriting/engine"
	"loan-underwriting/internal/underwriting/executor"
	"loan-underwriting/internal/underwriting/scheduler"

	ru "loan-underwriting/internal/workers/underwriting/run-underwriting"
)

const serviceName = "underwriting-manager"

// retryWithBackoff attempts operation with exponential backoff.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err,
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{"service": serviceName})

	log.Info("starting underwriting manager", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := observability.New(serviceName, cfg.Tracing.JaegerEndpoint, log)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		log.Error("postgres failed after retries", map[string]interface{}{"error": err})
		os.Exit(1)
	}
	defer pg.Close()
	if err := pg.Migrate(ctx); err != nil {
		log.Error("schema migration failed", map[string]interface{}{"error": err})
		os.Exit(1)
	}
	log.Info("PostgreSQL connected successfully", nil)

	// --- Redis ---
	redis := database.NewRedis(cfg.Database.Redis)
	if err := retryWithBackoff(func() error { return redis.Ping(ctx) }, 10, 2*time.Second, log, "Redis connection"); err != nil {
		log.Error("redis failed after retries", map[string]interface{}{"error": err})
		os.Exit(1)
	}
	defer redis.Close()
	log.Info("Redis connected successfully", nil)

	// --- Audit sinks ---
	sink, err := buildAuditSink(ctx, cfg, pg, log)
	if err != nil {
		log.Error("audit sink setup failed", map[string]interface{}{"error": err})
		os.Exit(1)
	}
	emitter := audit.NewEmitter(sink, log)

	// --- Engine ---
	transactions := store.NewPostgresStore(pg.DB)
	fetcher := store.NewCachedFetcher(transactions, redis, config.GetDuration(cfg.Database.Redis.CacheTTL), log)
	eng := engine.New(scheduler.ConfigFrom(cfg.Underwriting), engine.Dependencies{
		Fetcher:       fetcher,
		Executor:      executor.New(executor.ConfigFrom(cfg.Underwriting), executor.Ports{}, log),
		Emitter:       emitter,
		Observability: obs,
	}, log)

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(camunda.ConfigFrom(cfg.Camunda))
		return err
	}, 10, 2*time.Second, log, "Zeebe client initialization")
	if err != nil {
		log.Error("zeebe client failed after retries", map[string]interface{}{"error": err})
		os.Exit(1)
	}
	defer zeebe.Close()
	log.Info("Zeebe client connected successfully", nil)

	var workers []*camunda.CamundaWorker
	if config.IsWorkerEnabled(cfg, ru.TaskType) {
		wcfg := config.GetWorkerConfig(cfg, ru.TaskType)
		hcfg := ru.LoadConfig()
		hcfg.Timeout = config.GetDuration(wcfg.Timeout)
		hcfg.CompleteRetry.MaxRetries = wcfg.MaxRetries
		handler := ru.NewHandler(hcfg, eng, fetcher, log)
		w := camunda.NewWorker(zeebe.GetClient(), ru.TaskType, camunda.WorkerOptions{
			MaxJobsActive: wcfg.MaxJobsActive,
			Timeout:       config.GetDuration(wcfg.Timeout),
		}, handler, log)
		w.Start()
		workers = append(workers, w)
	} else {
		log.Info("worker disabled", map[string]interface{}{"taskType": ru.TaskType})
	}

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           healthMux(pg, redis, zeebe),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("health/metrics server listening", map[string]interface{}{"address": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("health/metrics server failed", map[string]interface{}{"error": err})
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, stopping workers", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, w := range workers {
		w.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("health/metrics server shutdown", map[string]interface{}{"error": err})
	}
	log.Info("underwriting manager stopped", nil)
}

func buildAuditSink(ctx context.Context, cfg *config.Config, pg *database.PostgresClient, log logger.Logger) (audit.Sink, error) {
	sinks := audit.NewMultiSink()
	if cfg.Audit.HasSink(config.SinkLog) {
		sinks.Add(config.SinkLog, audit.NewLogSink(log))
	}
	if cfg.Audit.HasSink(config.SinkPostgres) {
		sinks.Add(config.SinkPostgres, audit.NewPostgresSink(pg))
	}
	if cfg.Audit.HasSink(config.SinkElasticsearch) {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, err
		}
		if err := es.Ping(ctx); err != nil {
			log.Warn("elasticsearch not reachable, audit indexing will retry per event", map[string]interface{}{"error": err})
		}
		sinks.Add(config.SinkElasticsearch, audit.NewElasticsearchSink(es, cfg.Audit.ElasticsearchIndex))
	}
	if cfg.Audit.HasSink(config.SinkSNS) || cfg.Audit.HasSink(config.SinkSES) {
		clients, err := aws.NewClients(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, err
		}
		if cfg.Audit.HasSink(config.SinkSNS) {
			sinks.Add(config.SinkSNS, audit.NewSNSSink(clients.SNS, cfg.Audit.SNSTopicARN))
		}
		if cfg.Audit.HasSink(config.SinkSES) {
			sinks.Add(config.SinkSES, audit.NewSESNotifier(clients.SES, cfg.Audit.SES.FromEmail, cfg.Audit.SES.ToEmails))
		}
	}
	log.Info("audit sinks configured", map[string]interface{}{"sinks": cfg.Audit.Sinks, "count": sinks.Len()})
	return sinks, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

func healthMux(pg, redis pinger, zeebe *camunda.Client) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{"postgres": "ok", "redis": "ok", "zeebe": "ok"}
		status := http.StatusOK
		if err := pg.Ping(ctx); err != nil {
			checks["postgres"], status = err.Error(), http.StatusServiceUnavailable
		}
		if err := redis.Ping(ctx); err != nil {
			checks["redis"], status = err.Error(), http.StatusServiceUnavailable
		}
		if err := zeebe.HealthCheck(ctx); err != nil {
			checks["zeebe"], status = err.Error(), http.StatusServiceUnavailable
		}
		writeStatus(w, status, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
