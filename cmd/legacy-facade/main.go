// Command legacy-facade serves the in-memory legacy auth facade with the
// seeded accounts, for local development against the bridge.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/goliatone/go-auth-legacy/provider/legacy/legacytest"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
)

func main() {
	addr := flag.String("addr", ":4000", "listen address")
	verbose := flag.Bool("v", false, "log every request")
	flag.Parse()

	level := glog.Info
	if *verbose {
		level = glog.Debug
	}

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(level),
		glog.WithName("legacy-facade"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
	logger := lgr.GetLogger("facade")

	facade := legacytest.New(legacytest.WithLogger(logger))

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		UnescapePath:          false,
	})
	app.Use(adaptor.HTTPHandler(facade))

	go func() {
		logger.Info("legacy facade listening", "address", *addr, "users", len(legacytest.SeedUsers()))
		if err := app.Listen(*addr); err != nil {
			logger.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	if err := app.Shutdown(); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
