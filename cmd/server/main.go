package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"memberverify/internal/admin"
	"memberverify/internal/contact"
	"memberverify/internal/cron"
	"memberverify/internal/platform/config"
	"memberverify/internal/platform/httpserver"
	"memberverify/internal/platform/logger"
	platformmetrics "memberverify/internal/platform/metrics"
	"memberverify/internal/platform/middleware"
	"memberverify/internal/purge"
	ratelimitmetrics "memberverify/internal/ratelimit/metrics"
	ratelimitmw "memberverify/internal/ratelimit/middleware"
	ratelimitmodels "memberverify/internal/ratelimit/models"
	"memberverify/internal/ratelimit/ports"
	ratelimitservice "memberverify/internal/ratelimit/service"
	ratelimitmemory "memberverify/internal/ratelimit/store/memory"
	"memberverify/internal/reminder"
	"memberverify/internal/token"
	verificationhandler "memberverify/internal/verification/handler"
	"memberverify/internal/verification/matcher"
	verificationmetrics "memberverify/internal/verification/metrics"
	verificationservice "memberverify/internal/verification/service"
	"memberverify/pkg/platform/httputil"
	adminmw "memberverify/pkg/platform/middleware/admin"
	"memberverify/pkg/platform/middleware/metadata"
	"memberverify/pkg/platform/middleware/requesttime"
)

const shutdownTimeout = 10 * time.Second

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("memberverify stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	tokens := token.New(cfg.TokenSecret)
	verifyMetrics := verificationmetrics.New()

	verifySvc, err := verificationservice.New(infra.members, infra.artifacts, tokens,
		verificationservice.WithLogger(log),
		verificationservice.WithMetrics(verifyMetrics),
	)
	if err != nil {
		return fmt.Errorf("verification service: %w", err)
	}

	purger, err := purge.New(infra.members, infra.artifacts,
		purge.WithLogger(log),
		purge.WithMetrics(purge.NewMetrics()),
	)
	if err != nil {
		return fmt.Errorf("purger: %w", err)
	}

	reminders, err := reminder.New(infra.members, tokens, infra.mail, cfg.BaseURL,
		reminder.WithLogger(log),
		reminder.WithBcc(infra.bcc...),
		reminder.WithContact(cfg.Mail.ContactInbox),
	)
	if err != nil {
		return fmt.Errorf("reminder: %w", err)
	}

	var checker *matcher.Matcher
	if infra.mailbox != nil {
		checker, err = matcher.New(infra.mailbox, infra.members, cfg.Mailbox.CorporateDomain, cfg.Mailbox.IntakeAddress,
			matcher.WithLogger(log),
			matcher.WithMetrics(verifyMetrics),
			matcher.WithMaxResults(cfg.Mailbox.MaxResults),
		)
		if err != nil {
			return fmt.Errorf("email matcher: %w", err)
		}
	}

	adminOpts := []admin.Option{admin.WithLogger(log)}
	if infra.tx != nil {
		adminOpts = append(adminOpts, admin.WithTxRunner(infra.tx))
	}
	adminSvc, err := admin.NewService(infra.members, infra.audit, infra.artifacts, tokens, purger, cfg.BaseURL, adminOpts...)
	if err != nil {
		return fmt.Errorf("admin service: %w", err)
	}

	inbox := cfg.Mail.ContactInbox
	if inbox == "" {
		inbox = cfg.Mail.From
	}
	var contactSvc *contact.Service
	if inbox != "" {
		contactSvc, err = contact.NewService(infra.mail, inbox, log)
		if err != nil {
			return fmt.Errorf("contact service: %w", err)
		}
	} else {
		log.Warn("no contact inbox configured, contact form disabled")
	}

	limiter, err := ratelimitservice.New(infra.limitStore,
		ratelimitservice.WithLogger(log),
		ratelimitservice.WithMetrics(ratelimitmetrics.New()),
	)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	limits := ratelimitmw.New(limiter, log, ratelimitmw.WithDisabled(cfg.RateLimitDisabled))
	if cfg.RateLimitDisabled {
		log.Warn("rate limiting disabled by configuration")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(platformmetrics.New().Middleware)

	verificationhandler.New(verifySvc, log,
		verificationhandler.WithRateLimit(limits.RateLimit(ratelimitmodels.NamespaceVerify)),
	).Register(r)
	if contactSvc != nil {
		contact.NewHandler(contactSvc, log, limits.RateLimit(ratelimitmodels.NamespaceContact)).Register(r)
	}
	adminGuard := adminmw.RequireAdminToken(cfg.AdminToken, log)
	if cfg.AdminTokenHash != "" {
		adminGuard = adminmw.RequireAdminTokenHash(cfg.AdminTokenHash, log)
	}
	admin.NewHandler(adminSvc, adminGuard, log).Register(r)

	cronOpts := []cron.Option{cron.WithPurger(purger), cron.WithReminder(reminders)}
	if checker != nil {
		cronOpts = append(cronOpts, cron.WithMailChecker(checker))
	}
	cron.NewHandler(cfg.CronSecret, log, cronOpts...).Register(r)

	r.Get("/health", healthHandler(infra))
	r.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting memberverify", "addr", cfg.Addr, "storage", infra.backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if infra.publisher != nil {
		g.Go(func() error { return infra.publisher.Run(gctx) })
	}
	g.Go(ignoreCancel(func() error { return purger.Schedule(gctx, cfg.Jobs.PurgeInterval) }))
	g.Go(ignoreCancel(func() error { return reminders.Schedule(gctx, cfg.Jobs.ReminderInterval) }))
	if checker != nil {
		g.Go(ignoreCancel(func() error { return checker.Run(gctx, cfg.Jobs.MailPollInterval) }))
	}
	if sweep := limitSweep(infra.limitStore, cfg.Jobs.RateLimitSweep, log); sweep != nil {
		g.Go(ignoreCancel(func() error { return sweep(gctx) }))
	}

	return g.Wait()
}

// limitSweep returns the cleanup loop for process-local rate-limit windows, or
// nil when the store expires keys itself.
func limitSweep(store ports.Store, interval time.Duration, log *slog.Logger) func(context.Context) error {
	mem, ok := store.(*ratelimitmemory.Store)
	if !ok {
		return nil
	}
	return func(ctx context.Context) error {
		return mem.StartSweep(ctx, interval, log)
	}
}

// ignoreCancel turns the context error a job loop returns on shutdown into a
// clean exit.
func ignoreCancel(loop func() error) func() error {
	return func() error {
		if err := loop(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

func healthHandler(infra *infra) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := infra.health(ctx)
		status := http.StatusOK
		for _, v := range checks {
			if v != "ok" {
				status = http.StatusServiceUnavailable
			}
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status": http.StatusText(status),
			"checks": checks,
		})
	}
}
