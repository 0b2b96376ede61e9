package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Clark-Hu/tourbook/internal/config"
	httpserver "github.com/Clark-Hu/tourbook/internal/http"
	"github.com/Clark-Hu/tourbook/internal/lib/logger/sl"
	"github.com/Clark-Hu/tourbook/internal/lib/logger/slogpretty"
	"github.com/Clark-Hu/tourbook/internal/notify"
	"github.com/Clark-Hu/tourbook/internal/repository"
	"github.com/Clark-Hu/tourbook/internal/scheduler"
	"github.com/Clark-Hu/tourbook/internal/service"
	"github.com/Clark-Hu/tourbook/internal/store"
	"github.com/Clark-Hu/tourbook/internal/textgen"
)

// staleSweepTimeout bounds one scheduled sweep over stale bookings.
const staleSweepTimeout = 2 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", sl.Err(err))
		os.Exit(1)
	}

	log := setupLogger(cfg.Env)
	log.Info("starting tourbook", slog.String("env", cfg.Env))
	log.Debug("debug messages are enabled")

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := store.New(dbCtx, cfg.Database.URL, store.Options{
		MaxConns:               int32(cfg.Database.MaxConns),
		MinConns:               int32(cfg.Database.MinConns),
		MaxConnIdleTime:        cfg.Database.MaxConnIdle,
		MaxConnLifetime:        cfg.Database.MaxConnLifetime,
		ConnTimeout:            cfg.Database.ConnTimeout,
		StatementCacheCapacity: cfg.Database.StatementCache,
		Logger:                 log,
	})
	if err != nil {
		log.Error("failed to connect database", sl.Err(err))
		os.Exit(1)
	}
	defer st.Close()

	notifier, err := setupNotifier(cfg.Mail, log)
	if err != nil {
		log.Error("failed to init notifier", sl.Err(err))
		os.Exit(1)
	}

	repo := repository.New(st)
	deps := service.Deps{
		Tours:            repo.Tours,
		Bookings:         repo.Bookings,
		Reviews:          repo.Reviews,
		Users:            repo.Users,
		Notifier:         notifier,
		Logger:           log,
		OpTimeout:        cfg.Database.OpTimeout,
		EnforceGroupSize: cfg.EnforceGroupSize,
	}
	if cfg.TextGen.URL != "" {
		explainer, err := textgen.NewHTTPClient(cfg.TextGen.URL, cfg.TextGen.APIKey, cfg.TextGen.Timeout, log)
		if err != nil {
			log.Error("failed to init text generation client", sl.Err(err))
			os.Exit(1)
		}
		deps.Explainer = explainer
		deps.ExplainTimeout = cfg.TextGen.Timeout
	}
	svc := service.New(deps)

	sched, err := scheduler.New(cfg.StaleBookingSchedule, svc, staleSweepTimeout, log)
	if err != nil {
		log.Error("failed to init scheduler", sl.Err(err))
		os.Exit(1)
	}
	sched.Start()

	server := httpserver.New(cfg, st, svc, log)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", sl.Err(err))
		}
	case <-ctx.Done():
		log.Info("application stopping")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("graceful shutdown error", sl.Err(err))
	}
	sched.Stop(shutdownCtx)

	log.Info("application stopped")
}

// setupNotifier sends email through SendGrid when a key is configured and
// falls back to logging otherwise.
func setupNotifier(cfg config.Mail, log *slog.Logger) (notify.Notifier, error) {
	if cfg.SendGridAPIKey == "" {
		log.Warn("SENDGRID_API_KEY not set, notifications are logged only")
		return notify.NewLogNotifier(log), nil
	}
	return notify.NewSendGridNotifier(cfg.SendGridAPIKey, cfg.From, cfg.FromName, log)
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvLocal:
		log = setupPrettySlog()
	case config.EnvDev:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvProd:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	h := opts.NewPrettyHandler(os.Stdout)

	return slog.New(h)
}
