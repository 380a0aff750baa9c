package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/toftewellness/wellness-api/pkg/api"
	"github.com/toftewellness/wellness-api/pkg/audit"
	"github.com/toftewellness/wellness-api/pkg/auth"
	"github.com/toftewellness/wellness-api/pkg/config"
	"github.com/toftewellness/wellness-api/pkg/mail"
	"github.com/toftewellness/wellness-api/pkg/ratelimit"
	"github.com/toftewellness/wellness-api/pkg/store"
	"github.com/toftewellness/wellness-api/pkg/system"
	"github.com/toftewellness/wellness-api/pkg/telemetry"
	"github.com/toftewellness/wellness-api/pkg/version"
)

func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			cfg, err := rt.loadConfig()
			if err != nil {
				return err
			}
			logger, err := system.SetupLogger(rt.debug)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, rt.debug, logger)
		},
	}
}

// serve runs the API until ctx is cancelled, then shuts everything down in
// dependency order.
func serve(ctx context.Context, cfg config.Config, debug bool, logger *zap.Logger) error {
	log := logger.Sugar()
	log.Infow("Starting wellness api", "version", version.GetBuildInfo().String())
	printConfig(log, cfg)

	_, otelShutdown, err := telemetry.Init(ctx, telemetry.OptionsFromConfig(cfg.Telemetry, version.Version, log))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	st, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}

	authn, err := newAuthenticator(st, cfg.Auth, log)
	if err != nil {
		_ = st.Close(context.Background())
		return err
	}

	auditor, err := audit.NewFromConfig(cfg.Audit, logger)
	if err != nil {
		_ = st.Close(context.Background())
		return err
	}

	limiter := newLimiter(cfg.RateLimits, log)
	adminLimiter := newAdminLimiter(cfg.AdminRateLimit)
	notifier := mail.NewNotifier(cfg.Mail, log)

	server, err := api.NewServer(logger, cfg, debug, api.Dependencies{
		Store:        st,
		Auth:         authn,
		Limiter:      limiter,
		AdminLimiter: adminLimiter,
		Audit:        auditor,
		Notifier:     notifier,
	})
	if err != nil {
		_ = st.Close(context.Background())
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Listen() }()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case runErr = <-errCh:
		if runErr != nil {
			log.Errorw("HTTP server failed", "error", runErr)
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shCtx); err != nil {
		log.Warnw("HTTP server shutdown incomplete", "error", err)
	}
	authn.Wait()
	if err := notifier.Stop(shCtx); err != nil {
		log.Warnw("Mail queue not drained", "error", err)
	}
	if err := auditor.Close(); err != nil {
		log.Warnw("Audit sink close failed", "error", err)
	}
	limiter.Stop()
	adminLimiter.Stop()
	if err := otelShutdown(shCtx); err != nil {
		log.Warnw("Telemetry shutdown failed", "error", err)
	}
	if err := st.Close(shCtx); err != nil {
		log.Warnw("Store close failed", "error", err)
	}

	log.Info("Stopped")
	return runErr
}

// openStore connects the configured backend. The Mongo backend also
// ensures the unique index on admin emails.
func openStore(ctx context.Context, cfg config.Database, log *zap.SugaredLogger) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		log.Warn("Using the in-memory store; data is lost on restart")
		return store.NewMemory(), nil
	case config.BackendMongo, "":
		m, err := store.NewMongo(ctx, store.MongoOptions{
			URI:            cfg.URI,
			Database:       cfg.Name,
			ConnectTimeout: cfg.ConnectTimeout,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("connecting to MongoDB: %w", err)
		}
		if err := m.EnsureIndexes(ctx); err != nil {
			_ = m.Close(context.Background())
			return nil, fmt.Errorf("ensuring MongoDB indexes: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported database backend %q", cfg.Backend)
	}
}

func newAuthenticator(admins store.AdminStore, cfg config.Auth, log *zap.SugaredLogger) (*auth.Authenticator, error) {
	return auth.New(admins, auth.Options{
		JWTSecret:         cfg.JWTSecret,
		SetupSecret:       cfg.SetupSecret,
		TokenTTL:          cfg.TokenTTL,
		BcryptCost:        cfg.BcryptCost,
		MinPasswordLength: cfg.MinPasswordLength,
	}, log)
}

func newLimiter(cfg config.RateLimits, log *zap.SugaredLogger) *ratelimit.Limiter {
	policy := func(l config.RateLimit) ratelimit.Policy {
		return ratelimit.Policy{MaxAttempts: l.MaxAttempts, Window: l.Window}
	}
	return ratelimit.NewLimiter(map[ratelimit.Category]ratelimit.Policy{
		ratelimit.CategoryLogin:   policy(cfg.Login),
		ratelimit.CategorySignup:  policy(cfg.Signup),
		ratelimit.CategoryContact: policy(cfg.Contact),
	},
		ratelimit.WithMaxKeys(cfg.MaxKeys),
		ratelimit.WithCleanupInterval(cfg.CleanupInterval),
		ratelimit.WithLogger(log.Named("ratelimit")),
	)
}

func newAdminLimiter(cfg config.AdminRateLimit) *ratelimit.IPRateLimiter {
	rl := ratelimit.DefaultAdminConfig()
	if cfg.Rate > 0 {
		rl.Rate = cfg.Rate
	}
	if cfg.Burst > 0 {
		rl.Burst = cfg.Burst
	}
	return ratelimit.New(rl)
}
