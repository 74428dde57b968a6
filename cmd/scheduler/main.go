package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fleetcrm_backend/internal/blacklist"
	lifecycle "fleetcrm_backend/internal/config"
	"fleetcrm_backend/internal/email"
	"fleetcrm_backend/internal/events"
	"fleetcrm_backend/internal/leads"
	"fleetcrm_backend/internal/nurturing"
	"fleetcrm_backend/internal/reminders"
	"fleetcrm_backend/internal/scheduler"
	tokenrepo "fleetcrm_backend/internal/tokens/repository"
	tokensvc "fleetcrm_backend/internal/tokens/service"
	"fleetcrm_backend/platform/clock"
	"fleetcrm_backend/platform/config"
	"fleetcrm_backend/platform/db"
	"fleetcrm_backend/platform/logger"
	"fleetcrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	policy := loadLifecyclePolicy(cfg, log)

	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	val := validator.New()
	clk := clock.Real{}

	// Worker-side sweep wiring (no HTTP handlers required).
	blacklistModule := blacklist.NewModule(pool, clk, val)
	leadsModule := leads.NewModule(pool, blacklistModule.Service(), policy.ReasonPolicy(), eventBus, clk, val)
	tokens := tokensvc.New(tokenrepo.New(pool), clk)

	nurturingModule := nurturing.NewModule(pool, leadsModule.Repository(), leadsModule.Service(), tokens, sender, &policy, cfg.GetAppBaseURL(), clk, log)
	remindersModule := reminders.NewModule(leadsModule.Repository(), tokens, sender, &policy, cfg.GetAppBaseURL(), clk, log)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	worker, err := scheduler.NewWorker(cfg, nurturingModule.Service(), remindersModule.Service(), clk, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	interval := getDurationEnv("SWEEP_INTERVAL", 15*time.Minute)
	pruneInterval := getDurationEnv("TOKEN_PRUNE_INTERVAL", 12*time.Hour)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		enqueueSweeps(gctx, client, clk, interval, log)
		return nil
	})
	g.Go(func() error {
		pruneTokens(gctx, tokens, pruneInterval, log)
		return nil
	})
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("scheduler stopped", "error", err)
	}
}

// pruneTokens periodically removes resume and confirmation tokens whose
// validity window has closed.
func pruneTokens(ctx context.Context, tokens *tokensvc.Service, interval time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pruned, err := tokens.PruneExpired(ctx)
		if err != nil {
			log.Error("failed to prune expired tokens", "error", err)
			continue
		}
		if pruned > 0 {
			log.Info("pruned expired tokens", "count", pruned)
		}
	}
}

// enqueueSweeps schedules recurring sweep tasks on the queue. An immediate
// pair runs on startup so a restarted worker never waits a full interval.
func enqueueSweeps(ctx context.Context, client *scheduler.Client, clk clock.Clock, interval time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		now := clk.Now()
		if err := client.EnqueueNurturingSweep(ctx, now); err != nil {
			log.Error("failed to enqueue nurturing sweep", "error", err)
		}
		if err := client.EnqueueReminderSweep(ctx, now); err != nil {
			log.Error("failed to enqueue reminder sweep", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
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
		return errors.New(name + ": invalid retry attempts")
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

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}
