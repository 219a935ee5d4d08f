// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fiberline/backoffice/adapters/auth"
	"github.com/fiberline/backoffice/adapters/clock"
	"github.com/fiberline/backoffice/adapters/hasher"
	"github.com/fiberline/backoffice/adapters/idgen"
	"github.com/fiberline/backoffice/adapters/metrics"
	"github.com/fiberline/backoffice/adapters/remote"
	"github.com/fiberline/backoffice/adapters/sqlite"
	"github.com/fiberline/backoffice/app"
	"github.com/fiberline/backoffice/config"
	"github.com/fiberline/backoffice/ports"
	"github.com/fiberline/backoffice/web"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	// Services
	Auth    *app.AuthService
	Billing *app.BillingService
	Intake  *app.IntakeService

	// lapseEvery is the loaded sweep interval, used when no config holder
	// exists (env-only deployments).
	lapseEvery time.Duration
	stopSweep  chan struct{}
}

// New creates and initializes the application from the given config file.
// A missing file falls back to built-in defaults.
func New(configPath string) (*App, error) {
	cfg, err := config.LoadWithFallback(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	logger.Info().Msg("initializing backoffice")

	a := &App{
		Logger:    logger,
		stopSweep: make(chan struct{}),
	}

	// Config holder for hot reload. Falls back to a static config when the
	// file does not exist.
	if _, statErr := os.Stat(configPath); statErr == nil {
		holder, err := config.NewHolder(configPath, logger)
		if err != nil {
			return nil, fmt.Errorf("config holder: %w", err)
		}
		a.Config = holder
		cfg = holder.Get()
	}
	a.lapseEvery = cfg.Billing.LapseInterval

	// Services always record metrics; the endpoint is exposed only when
	// enabled in config.
	a.Metrics = sharedCollector()
	if cfg.Metrics.Enabled {
		logger.Info().Msg("prometheus metrics enabled")
	}

	if err := a.initDatabase(cfg); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	if err := a.initServices(cfg); err != nil {
		a.DB.Close()
		return nil, fmt.Errorf("init services: %w", err)
	}

	if err := a.initHTTPServer(cfg); err != nil {
		a.DB.Close()
		return nil, fmt.Errorf("init http server: %w", err)
	}

	if a.Config != nil {
		a.Config.OnChange(func(newCfg *config.Config) {
			a.Metrics.ConfigReloads.Inc()
			a.Metrics.ConfigLastReload.SetToCurrentTime()
			applyLogLevel(newCfg.Logging.Level)
		})
		a.Config.OnReloadError(func(error) {
			a.Metrics.ConfigReloadErrors.Inc()
		})
	}

	return a, nil
}

func (a *App) initDatabase(cfg *config.Config) error {
	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}

	a.DB = db
	a.Logger.Info().Str("dsn", cfg.Database.DSN).Msg("database initialized")
	return nil
}

func (a *App) initServices(cfg *config.Config) error {
	accounts := sqlite.NewAccountStore(a.DB)
	installations := sqlite.NewInstallationStore(a.DB)
	payments := sqlite.NewPaymentStore(a.DB)
	plans := sqlite.NewPlanStore(a.DB)
	operators := sqlite.NewOperatorStore(a.DB)

	clk := clock.Real{}
	ids := idgen.UUID{}
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	bcryptHasher := hasher.NewBcrypt(cfg.Auth.BcryptCost)

	var reconciler ports.Reconciler
	if cfg.Reconcile.Enabled {
		client := remote.NewClient(remote.ClientConfig{
			BaseURL: cfg.Reconcile.Remote.URL,
			APIKey:  cfg.Reconcile.Remote.APIKey,
			Timeout: cfg.Reconcile.Remote.Timeout,
			Headers: cfg.Reconcile.Remote.Headers,
		})
		reconciler = remote.NewReconciler(client)
		a.Logger.Info().Str("url", cfg.Reconcile.Remote.URL).Msg("remote reconciliation enabled")
	}

	a.Billing = app.NewBillingService(payments, installations, plans, clk, ids, reconciler, a.Metrics, a.Logger)

	var directory ports.AccountDirectory
	switch cfg.Directory.Mode {
	case "remote":
		client := remote.NewClient(remote.ClientConfig{
			BaseURL: cfg.Directory.Remote.URL,
			APIKey:  cfg.Directory.Remote.APIKey,
			Timeout: cfg.Directory.Remote.Timeout,
			Headers: cfg.Directory.Remote.Headers,
		})
		directory = remote.NewDirectory(client)
		a.Logger.Info().Str("url", cfg.Directory.Remote.URL).Msg("remote identity directory enabled")
	default:
		directory = app.NewLocalDirectory(accounts)
	}

	a.Intake = app.NewIntakeService(accounts, installations, directory, a.Billing, clk, ids, cfg.Intake.IdentityLength, a.Logger)
	a.Auth = app.NewAuthService(operators, bcryptHasher, tokens, ids, a.Metrics, a.Logger)

	// First-run operator from config; no-op when operators already exist.
	if cfg.Auth.AdminEmail != "" && cfg.Auth.AdminPassword != "" {
		if err := a.Auth.EnsureOperator(context.Background(), cfg.Auth.AdminEmail, "Admin", cfg.Auth.AdminPassword); err != nil {
			return fmt.Errorf("ensure operator: %w", err)
		}
	}

	return nil
}

func (a *App) initHTTPServer(cfg *config.Config) error {
	accounts := sqlite.NewAccountStore(a.DB)
	installations := sqlite.NewInstallationStore(a.DB)
	plans := sqlite.NewPlanStore(a.DB)

	handler := web.NewHandler(web.Deps{
		Auth:           a.Auth,
		Billing:        a.Billing,
		Intake:         a.Intake,
		Accounts:       accounts,
		Installations:  installations,
		Plans:          plans,
		Metrics:        a.Metrics,
		Logger:         a.Logger,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	a.HTTPServer = &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	a.Logger.Info().Str("addr", addr).Msg("http server configured")
	return nil
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	if a.Config != nil {
		if err := a.Config.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch unavailable")
		}
		a.Config.WatchSignals()
	}

	a.startLapseSweep()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// startLapseSweep runs the periodic commitment lapse sweep when
// configured. Lapsing also happens on demand through the API, so a zero
// interval just disables the background pass.
func (a *App) startLapseSweep() {
	interval := a.lapseInterval()
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := a.Billing.LapseOverdue(context.Background())
				if err != nil {
					a.Logger.Error().Err(err).Msg("lapse sweep failed")
					continue
				}
				if n > 0 {
					a.Logger.Info().Int("lapsed", n).Msg("lapse sweep")
				}
			case <-a.stopSweep:
				return
			}
		}
	}()

	a.Logger.Info().Dur("interval", interval).Msg("lapse sweep started")
}

func (a *App) lapseInterval() time.Duration {
	if a.Config != nil {
		return a.Config.Get().Billing.LapseInterval
	}
	return a.lapseEvery
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	close(a.stopSweep)

	if a.Config != nil {
		a.Config.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// sharedCollector returns the process-wide metrics collector. Collectors
// register with the global prometheus registry, so creating one per App
// instance would panic on duplicate registration.
func sharedCollector() *metrics.Collector {
	collectorOnce.Do(func() { collector = metrics.New() })
	return collector
}

var (
	collectorOnce sync.Once
	collector     *metrics.Collector
)

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	applyLogLevel(cfg.Level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func applyLogLevel(levelStr string) {
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
