// cmd/engine-runner/main.go
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
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"merithire-engine/internal/abuse"
	"merithire-engine/internal/audit"
	"merithire-engine/internal/channels"
	commonaws "merithire-engine/internal/common/aws"
	"merithire-engine/internal/common/config"
	"merithire-engine/internal/common/database"
	"merithire-engine/internal/common/logger"
	"merithire-engine/internal/common/observability"
	"merithire-engine/internal/engine/delivery"
	"merithire-engine/internal/engine/pipeline"
	"merithire-engine/internal/engine/scoring"
	"merithire-engine/internal/engine/submission"
	"merithire-engine/internal/store"
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
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting engine runner...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("engine-runner")
	defer obs.Shutdown()

	ctx := context.Background()

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
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Shared components ---
	st := store.NewStore(pg.DB, log)
	ledger := abuse.NewLedger(redis.Client, log)
	auditEmitter := audit.NewWebhookEmitter(
		cfg.Audit.WebhookURL,
		time.Duration(cfg.Audit.Timeout)*time.Millisecond,
		log,
	)

	// --- Delivery channels ---
	var chans []channels.Channel
	chans = append(chans, channels.NewInAppChannel(st, log))

	if cfg.Notifications.Email.Enabled {
		sesClient, err := commonaws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("SES client init failed", zap.Error(err))
		}
		emailChannel, err := channels.NewEmailChannel(sesClient, cfg.Notifications.Email.FromEmail, log)
		if err != nil {
			zapLog.Fatal("email channel init failed", zap.Error(err))
		}
		chans = append(chans, emailChannel)
	}

	if cfg.Notifications.Push.Enabled {
		snsClient, err := commonaws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("SNS client init failed", zap.Error(err))
		}
		pushChannel, err := channels.NewPushChannel(snsClient, cfg.Notifications.Push.TopicARN, log)
		if err != nil {
			zapLog.Fatal("push channel init failed", zap.Error(err))
		}
		chans = append(chans, pushChannel)
	}

	// --- Engines ---
	scoringEngine := scoring.NewEngine(log)
	submissionService := submission.NewService(
		submission.LoadConfig(), st, ledger, scoringEngine, redis.Client, log,
	)

	pipelineEngine := pipeline.NewEngine(pipeline.LoadConfig(), st, log)

	deliveryConfig, err := delivery.LoadConfig(
		cfg.Engines.Delivery.Timezone,
		cfg.Engines.Delivery.ProviderRPS,
		cfg.Engines.Delivery.ProviderBurst,
	)
	if err != nil {
		zapLog.Fatal("delivery config invalid", zap.Error(err))
	}
	deliveryEngine := delivery.NewEngine(deliveryConfig, st, chans, auditEmitter, log)

	// --- Scheduled runs ---
	scheduler := cron.New()

	_, err = scheduler.AddFunc(cfg.Engines.Pipeline.CronSpec, func() {
		for _, scope := range cfg.Engines.Scopes {
			start := time.Now()
			result, err := pipelineEngine.Apply(ctx, scope,
				cfg.Engines.Pipeline.ApplyLimit, cfg.Engines.Pipeline.RebalanceLimit)
			if err != nil {
				obs.RecordRun(ctx, "pipeline", "error")
				log.Error("pipeline run failed", map[string]interface{}{
					"scope": scope,
					"error": err,
				})
				continue
			}
			obs.RecordRun(ctx, "pipeline", "ok")
			obs.RecordRunDuration(ctx, "pipeline", time.Since(start))
			log.Info("pipeline run complete", map[string]interface{}{
				"scope":                scope,
				"appliedStatusUpdates": result.AppliedStatusUpdates,
				"movedInterviews":      result.MovedInterviews,
			})
		}
	})
	if err != nil {
		zapLog.Fatal("pipeline cron spec invalid", zap.Error(err))
	}

	_, err = scheduler.AddFunc(cfg.Engines.Delivery.CronSpec, func() {
		for _, scope := range cfg.Engines.Scopes {
			summary, err := deliveryEngine.Run(ctx, scope)
			if err != nil {
				obs.RecordRun(ctx, "delivery", "error")
				log.Error("delivery run failed", map[string]interface{}{
					"scope": scope,
					"error": err,
				})
				continue
			}
			obs.RecordRun(ctx, "delivery", "ok")
			obs.RecordRunDuration(ctx, "delivery", summary.Duration)
			log.Info("delivery run complete", map[string]interface{}{
				"scope":     scope,
				"attempted": summary.Attempted,
				"accepted":  summary.Accepted,
				"rejected":  summary.Rejected,
			})
		}
	})
	if err != nil {
		zapLog.Fatal("delivery cron spec invalid", zap.Error(err))
	}

	scheduler.Start()
	zapLog.Info("Scheduler started",
		zap.String("pipelineCron", cfg.Engines.Pipeline.CronSpec),
		zap.String("deliveryCron", cfg.Engines.Delivery.CronSpec),
		zap.Int("scopes", len(cfg.Engines.Scopes)),
	)

	// --- Synchronous invocation surface ---
	http.HandleFunc("/submissions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var sub submission.Submission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		outcome, err := submissionService.Submit(r.Context(), &sub)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(outcome)
	})
	http.HandleFunc("/pipeline/snapshot", func(w http.ResponseWriter, r *http.Request) {
		snap, err := pipelineEngine.Snapshot(r.Context(), r.URL.Query().Get("scope"))
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snap)
	})
	http.HandleFunc("/delivery/preview", func(w http.ResponseWriter, r *http.Request) {
		preview, err := deliveryEngine.Preview(r.Context(), r.URL.Query().Get("scope"))
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(preview)
	})

	// --- Health & Metrics Server ---
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
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping scheduler...")
	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		zapLog.Warn("Scheduler stop timed out")
	}

	zapLog.Info("Engine runner stopped gracefully")
}
