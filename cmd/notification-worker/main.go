// cmd/notification-worker/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	awsclient "returns-notifier/internal/common/aws"
	"returns-notifier/internal/common/camunda"
	"returns-notifier/internal/common/config"
	"returns-notifier/internal/common/database"
	"returns-notifier/internal/common/logger"
	"returns-notifier/internal/common/observability"
	"returns-notifier/internal/i18n"
	"returns-notifier/internal/messaging"
	"returns-notifier/internal/references"

	grn "returns-notifier/internal/workers/returns/goods-return-notification"
)

const serviceName = "notification-worker"

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

type pingCloser interface {
	Ping(ctx context.Context) error
	Close() error
}

// pingOrClose pings c and closes it when the ping fails.
func pingOrClose(ctx context.Context, c pingCloser) error {
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return err
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewWithOptions(logger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notification worker...", zap.String("environment", cfg.App.Environment))

	obs, err := observability.New(observability.Options{
		ServiceName:    serviceName,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
		SampleRatio:    cfg.Observability.SampleRatio,
	})
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pingOrClose(ctx, pg)
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
		return pingOrClose(ctx, redis)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Localization ---
	bundle, err := i18n.NewBundle(cfg.Notifications.DefaultLanguage)
	if err != nil {
		zapLog.Fatal("locale bundle failed", zap.Error(err))
	}
	if dir := cfg.Notifications.LocaleDir; dir != "" {
		if err := bundle.LoadDir(dir); err != nil {
			zapLog.Fatal("locale directory failed", zap.String("dir", dir), zap.Error(err))
		}
	}

	// --- Transports ---
	awsCfg, err := awsclient.LoadConfig(ctx, cfg.Integrations.AWS.Region, cfg.Integrations.AWS.Endpoint)
	if err != nil {
		zapLog.Fatal("aws config failed", zap.Error(err))
	}

	var email messaging.EmailTransport
	switch cfg.Integrations.Email.Provider {
	case "smtp":
		email = messaging.NewSMTPTransport(cfg.Integrations.Email.SMTP)
	default:
		email = messaging.NewSESTransport(awsclient.NewSESClient(awsCfg), cfg.Integrations.AWS.SES.ConfigurationSet, log)
	}

	sms := messaging.NewSMSNotifier(awsclient.NewSNSClient(awsCfg), bundle, messaging.SMSOptions{
		Enabled:       cfg.Notifications.SMS.Enabled && cfg.Integrations.AWS.SNS.Enabled,
		SenderID:      cfg.Integrations.AWS.SNS.DefaultSMSSenderID,
		SMSType:       cfg.Integrations.AWS.SNS.SMSType,
		RatePerMinute: cfg.Notifications.SMS.RatePerMinute,
		Burst:         cfg.Notifications.SMS.Burst,
	}, log)
	zapLog.Info("Transports initialized", zap.String("emailProvider", cfg.Integrations.Email.Provider))

	// --- References ---
	cacheTTL := time.Duration(cfg.Notifications.CacheTTL) * time.Second
	repo := references.NewRepository(pg, redis, cacheTTL, log)
	recipients := references.NewRecipients(pg, redis, cacheTTL, cfg.Notifications.FromEmail, log)

	// --- Zeebe ---
	zeebe, err := camunda.NewClientWithConfig(ctx, camunda.ConfigFromApp(cfg.Camunda), log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	workerCfg := grn.LoadConfig(cfg)
	dispatcher := grn.NewDispatcher(workerCfg, grn.Dependencies{
		Lookup:     repo,
		Localizer:  bundle,
		Recipients: recipients,
		Email:      email,
		SMS:        sms,
		Obs:        obs,
	}, log.WithFields(map[string]interface{}{"component": "dispatcher"}))
	handler := grn.NewHandler(workerCfg, dispatcher, obs, log)

	jobWorker := camunda.NewWorker(zeebe.GetClient(), grn.TaskType, config.GetWorkerConfig(cfg, grn.TaskType), handler, log)

	stopEviction := make(chan struct{})
	go evictIdleLimiters(sms, stopEviction)

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		status := http.StatusOK
		runCheck := func(name string, check func(context.Context) error) {
			checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(checkCtx); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				return
			}
			checks[name] = "ok"
		}
		runCheck("postgres", pg.Ping)
		runCheck("redis", redis.Ping)
		runCheck("zeebe", zeebe.HealthCheck)
		checks["postgres_open_connections"] = strconv.Itoa(pg.Stats().OpenConnections)

		label := "ready"
		if status != http.StatusOK {
			label = "not ready"
		}
		writeStatus(w, status, label, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Observability.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping worker...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	jobWorker.Stop()
	close(stopEviction)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error flushing telemetry", zap.Error(err))
	}

	zapLog.Info("Notification worker stopped")
}

// evictIdleLimiters drops per-reseller SMS limiters that have been idle for an
// hour.
func evictIdleLimiters(sms *messaging.SMSNotifier, stop <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sms.EvictIdle(time.Hour)
		case <-stop:
			return
		}
	}
}

func writeStatus(w http.ResponseWriter, code int, status string, checks map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	body := map[string]interface{}{"status": status, "service": serviceName}
	if checks != nil {
		body["checks"] = checks
	}
	_ = json.NewEncoder(w).Encode(body)
}
