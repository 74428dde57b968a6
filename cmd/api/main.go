package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetcrm_backend/internal/blacklist"
	lifecycle "fleetcrm_backend/internal/config"
	"fleetcrm_backend/internal/email"
	"fleetcrm_backend/internal/events"
	apphttp "fleetcrm_backend/internal/http"
	"fleetcrm_backend/internal/http/router"
	"fleetcrm_backend/internal/leads"
	"fleetcrm_backend/internal/notification"
	"fleetcrm_backend/internal/nurturing"
	"fleetcrm_backend/internal/reminders"
	tokenrepo "fleetcrm_backend/internal/tokens/repository"
	tokensvc "fleetcrm_backend/internal/tokens/service"
	"fleetcrm_backend/internal/verification"
	"fleetcrm_backend/migrations"
	"fleetcrm_backend/platform/clock"
	"fleetcrm_backend/platform/config"
	"fleetcrm_backend/platform/db"
	"fleetcrm_backend/platform/logger"
	"fleetcrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	policy := loadLifecyclePolicy(cfg, log)

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	clk := clock.Real{}

	// ========================================================================
	// Domain Modules
	// ========================================================================

	blacklistModule := blacklist.NewModule(pool, clk, val)

	leadsModule := leads.NewModule(pool, blacklistModule.Service(), policy.ReasonPolicy(), eventBus, clk, val)

	verificationModule := verification.NewModule(pool, leadsModule.Repository(), leadsModule.Service(), policy.Verification, eventBus, clk, val)

	// Wire code issuing: leads → verification (wizard start triggers the first code)
	leadsModule.SetCodeIssuer(verificationModule.Service())

	tokens := tokensvc.New(tokenrepo.New(pool), clk)

	nurturingModule := nurturing.NewModule(pool, leadsModule.Repository(), leadsModule.Service(), tokens, sender, &policy, cfg.GetAppBaseURL(), clk, log)

	remindersModule := reminders.NewModule(leadsModule.Repository(), tokens, sender, &policy, cfg.GetAppBaseURL(), clk, log)

	notificationModule := notification.NewModule(sender, log)
	notificationModule.RegisterHandlers(eventBus)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			verificationModule,
			blacklistModule,
			nurturingModule,
			remindersModule,
			notificationModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func loadLifecyclePolicy(cfg config.LifecycleConfig, log *logger.Logger) lifecycle.LifecyclePolicy {
	path := cfg.GetLifecyclePolicyPath()
	if path == "" {
		return lifecycle.DefaultLifecyclePolicy()
	}

	policy, err := lifecycle.LoadLifecyclePolicy(path)
	if err != nil {
		log.Error("failed to load lifecycle policy", "path", path, "error", err)
		panic("failed to load lifecycle policy: " + err.Error())
	}
	log.Info("lifecycle policy loaded", "path", path)
	return policy
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
