package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-auth-legacy"
	"github.com/goliatone/go-auth-legacy/activitymap"
	"github.com/goliatone/go-auth-legacy/middleware/jwtware"
	"github.com/goliatone/go-auth-legacy/provider/legacy"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

type App struct {
	config   *gconfig.Container[*BridgeConfig]
	logger   *glog.BaseLogger
	db       *bun.DB
	repo     auth.RepositoryManager
	legacy   *legacy.IdentityProvider
	activity auth.ActivitySink
	registry *prometheus.Registry
	srv      router.Server[*fiber.App]
	metrics  *http.Server
}

func (a *App) Config() *BridgeConfig {
	return a.config.Raw()
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Info),
		glog.WithName("legacy-bridge"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := gconfig.New(&BridgeConfig{}).
		WithLogger(lgr.GetLogger("config"))

	ctx := context.Background()
	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	fmt.Println("============")
	fmt.Println(print.MaybeHighlightJSON(cfg.Raw()))
	fmt.Println("============")

	app := &App{
		config:   cfg,
		logger:   lgr,
		registry: prometheus.NewRegistry(),
	}

	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithFederation(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	WithMetricsServer(app)

	logger := app.GetLogger("main")
	logger.Info("legacy bridge started",
		"address", app.Config().App.Address,
		"metrics_address", app.Config().App.MetricsAddress,
		"legacy_base_url", app.legacy.Config().BaseURL,
	)

	sig := WaitExitSignal()
	logger.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config().App.GetShutdownTimeout())
	defer cancel()

	if err := Shutdown(shutdownCtx, app); err != nil {
		os.Exit(1)
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	pcfg := app.Config().Persistence

	db, err := openDB(pcfg)
	if err != nil {
		return err
	}

	if pcfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "unable to reach database")
	}

	if err := auth.EnsureSchema(ctx, db); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "unable to create users schema")
	}

	repo := auth.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		return err
	}

	app.db = db
	app.repo = repo
	return nil
}

func openDB(cfg PersistenceConfig) (*bun.DB, error) {
	if cfg.IsPostgres() {
		sqldb, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func WithFederation(ctx context.Context, app *App) error {
	activityLogger := app.GetLogger("activity")
	activity := activitymap.Sink(func(record activitymap.Normalized) {
		activityLogger.Info("auth event", record.Fields()...)
	}, activitymap.WithActorFallback("anonymous"))

	idp, err := legacy.New(app.Config().GetLegacy(), app.repo,
		legacy.WithLoggerProvider(app),
		legacy.WithRegisterer(app.registry),
		legacy.WithActivitySink(activity),
	)
	if err != nil {
		return err
	}
	app.legacy = idp
	app.activity = activity

	if idp.Config().WarmOnStart {
		warmCtx, cancel := context.WithTimeout(ctx, idp.Config().Timeout)
		defer cancel()
		n, err := idp.Resolver().Warm(warmCtx)
		if err != nil {
			app.GetLogger("main").Warn("cache warm-up failed", "error", err)
		} else {
			app.GetLogger("main").Info("cache warmed", "profiles", n)
		}
	}

	return nil
}

func WithHTTPServer(_ context.Context, app *App) error {
	acfg := app.Config().Auth

	local := auth.NewUserProvider(app.repo.Users()).
		WithLogger(app.GetLogger("auth:local")).
		WithFederatedOrigins(app.legacy.Config().FederationSource)

	chain := auth.NewChainProvider(app.legacy, local)

	auther := auth.NewAuthenticator(chain, acfg).
		WithLogger(app.GetLogger("auth:authz")).
		WithActivitySink(app.activity)

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: false,
			StrictRouting:     false,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	auth.RegisterFederationRoutes(srv.Router(),
		auth.WithControllerAuthenticator(auther),
		auth.WithControllerLookup(app.legacy),
		auth.WithControllerHealth(app.legacy),
		auth.WithControllerGuard(jwtware.New(jwtware.Config{
			TokenValidator: auther.TokenService(),
		})),
		auth.WithControllerLogger(app.GetLogger("auth:ctrl")),
	)

	app.srv = srv
	return app.srv.Serve(app.Config().App.Address)
}

func WithMetricsServer(app *App) {
	addr := app.Config().App.MetricsAddress
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	}))

	app.metrics = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := app.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.GetLogger("metrics").Error("metrics server", "error", err)
		}
	}()
}

func Shutdown(ctx context.Context, app *App) error {
	logger := app.GetLogger("main")
	var first error

	keep := func(step string, err error) {
		if err == nil {
			return
		}
		logger.Error("shutdown step failed", "step", step, "error", err)
		if first == nil {
			first = err
		}
	}

	keep("http", app.srv.Shutdown(ctx))
	if app.metrics != nil {
		keep("metrics", app.metrics.Shutdown(ctx))
	}
	keep("legacy", app.legacy.Close())
	keep("database", app.db.Close())

	return first
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
