// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dealdesk-workers/internal/common/aws"
	"dealdesk-workers/internal/common/camunda"
	"dealdesk-workers/internal/common/config"
	"dealdesk-workers/internal/common/database"
	"dealdesk-workers/internal/common/logger"
	"dealdesk-workers/internal/common/observability"
	"dealdesk-workers/internal/repository"

	notify "dealdesk-workers/internal/workers/communication/notify-at-risk-deal"
	chs "dealdesk-workers/internal/workers/deal/calculate-health-score"
	phs "dealdesk-workers/internal/workers/deal/persist-health-score"
	rph "dealdesk-workers/internal/workers/deal/refresh-pipeline-health"
	ihs "dealdesk-workers/internal/workers/reporting/index-health-snapshot"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
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

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe client with retry ---
	var zeebeClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         time.Duration(cfg.Camunda.RequestTimeout) * time.Millisecond,
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebeClient.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	dealRepo := repository.NewDealRepository(
		pg.DB,
		rdb.Client,
		time.Duration(cfg.Scoring.PopulationCacheTTL)*time.Second,
		log,
	)

	var workers []*camunda.CamundaWorker
	register := func(taskType string, handler camunda.JobHandler) {
		wcfg := cfg.Workers[taskType]
		if !wcfg.Enabled {
			zapLog.Info("worker disabled", zap.String("taskType", taskType))
			return
		}
		maxJobs := wcfg.MaxJobsActive
		if maxJobs == 0 {
			maxJobs = cfg.Camunda.MaxJobsActive
		}
		w := camunda.NewWorker(zeebeClient.GetClient(), taskType, maxJobs, handler, zapLog)
		w.Start()
		workers = append(workers, w)
	}

	// --- Deal scoring workers ---
	register(chs.TaskType, chs.NewHandler(
		&chs.Config{Timeout: time.Duration(cfg.Workers[chs.TaskType].Timeout) * time.Millisecond},
		dealRepo, log,
	))

	register(phs.TaskType, phs.NewHandler(
		&phs.Config{Timeout: time.Duration(cfg.Workers[phs.TaskType].Timeout) * time.Millisecond},
		dealRepo, log,
	))

	register(rph.TaskType, rph.NewHandler(
		&rph.Config{
			Timeout:         time.Duration(cfg.Workers[rph.TaskType].Timeout) * time.Millisecond,
			AtRiskThreshold: cfg.Scoring.AtRiskThreshold,
		},
		dealRepo, log,
	))

	// --- Reporting worker ---
	register(ihs.TaskType, ihs.NewHandler(
		&ihs.Config{
			Timeout:   time.Duration(cfg.Workers[ihs.TaskType].Timeout) * time.Millisecond,
			IndexName: cfg.Scoring.HealthIndex,
		},
		ihs.NewESIndexer(esClient), log,
	))

	// --- Communication worker ---
	if cfg.Workers[notify.TaskType].Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("failed to create SES client", zap.Error(err))
		}
		snsClient, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("failed to create SNS client", zap.Error(err))
		}

		register(notify.TaskType, notify.NewHandler(
			&notify.Config{
				EmailEnabled: cfg.Integrations.AWS.SES.Enabled,
				SMSEnabled:   cfg.Integrations.AWS.SNS.Enabled,
				FromEmail:    cfg.Integrations.AWS.SES.FromEmail,
				AWSRegion:    cfg.Integrations.AWS.Region,
				Timeout:      time.Duration(cfg.Workers[notify.TaskType].Timeout) * time.Millisecond,
			},
			dealRepo, sesClient, snsClient, log,
		))
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", notify.TaskType))
	}

	zapLog.Info("All workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	if cfg.Metrics.Enabled {
		go func() {
			http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "healthy",
					"time":   time.Now().Format(time.RFC3339),
				})
			})
			http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "ready",
					"time":   time.Now().Format(time.RFC3339),
				})
			})
			http.Handle("/metrics", promhttp.Handler())

			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			zapLog.Info("Health/Metrics server listening", zap.String("addr", addr))
			if err := http.ListenAndServe(addr, nil); err != nil {
				zapLog.Error("Health/Metrics server failed", zap.Error(err))
			}
		}()
	}

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop(shutdownCtx)
	}

	zapLog.Info("Worker manager stopped gracefully")
}
