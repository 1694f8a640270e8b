// Package app boots the realm process: configuration, logging, storage,
// the realm directory, the message catalog, the gateway, and the world
// loop itself, in that order, and tears them down in reverse.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	world "github.com/WOW112/jingdianwow2"
	"github.com/WOW112/jingdianwow2/internal/catalog"
	"github.com/WOW112/jingdianwow2/internal/config"
	"github.com/WOW112/jingdianwow2/internal/console"
	"github.com/WOW112/jingdianwow2/internal/directory"
	"github.com/WOW112/jingdianwow2/internal/gateway"
	"github.com/WOW112/jingdianwow2/internal/store"
	"github.com/WOW112/jingdianwow2/internal/telemetry"
	"github.com/WOW112/jingdianwow2/logging"
	loggingSinks "github.com/WOW112/jingdianwow2/logging/sinks"
)

const (
	teardownTimeout = 5 * time.Second

	// logTailLimit bounds the in-memory event buffer behind /admin/logs.
	logTailLimit = 256
)

// Run boots the realm and blocks until the world decides to stop. The
// returned code is the process exit status; supervisors restart the
// process when it is world.ExitRestart.
func Run(ctx context.Context, logger telemetry.Logger) (world.ExitCode, error) {
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	settings, err := config.Load()
	if err != nil {
		return world.ExitError, err
	}

	metrics := telemetry.NewCounters()

	router, logTail, closeSinks, err := buildLogging(settings, metrics)
	if err != nil {
		return world.ExitError, fmt.Errorf("construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Printf("[app] failed to close logging router: %v", cerr)
		}
		closeSinks()
	}()

	st, err := store.Open(settings.DatabasePath)
	if err != nil {
		return world.ExitError, fmt.Errorf("open store %s: %w", settings.DatabasePath, err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Printf("[app] failed to close store: %v", cerr)
		}
	}()

	dir, closeDirectory := buildDirectory(ctx, settings, logger)
	defer closeDirectory()

	cat, err := buildCatalog(ctx, settings, logger)
	if err != nil {
		return world.ExitError, fmt.Errorf("load message catalog: %w", err)
	}

	w, err := world.New(ctx, settings.World(), world.Deps{
		Logger:    logger,
		Metrics:   metrics,
		Publisher: router,
		Store:     st,
		Directory: dir,
		Catalog:   cat,
		Console:   console.New(st),
	})
	if err != nil {
		return world.ExitError, fmt.Errorf("boot world: %w", err)
	}

	srv := &http.Server{
		Addr: settings.ListenAddr,
		Handler: gateway.NewServer(w, gateway.Config{
			JWTSecret:  settings.JWTSecret,
			AdminToken: settings.AdminToken,
			Metrics:    metrics,
			LogTail:    logTail,
		}, logger).Router(),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("[app] gateway listening on %s", settings.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan struct{})
	loopDone := make(chan world.ExitCode, 1)
	go func() {
		loopDone <- w.Run(stop)
	}()

	var code world.ExitCode
	select {
	case code = <-loopDone:
	case <-ctx.Done():
		logger.Printf("[app] stop signal received, draining")
		close(stop)
		code = <-loopDone
	case err := <-serverErr:
		logger.Printf("[app] gateway failed: %v", err)
		close(stop)
		code = <-loopDone
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("[app] gateway shutdown: %v", err)
	}

	logger.Printf("[app] world stopped with code %d", code)
	return code, nil
}

func buildLogging(settings config.Settings, metrics telemetry.Metrics) (*logging.Router, *loggingSinks.MemorySink, func(), error) {
	cfg := settings.Logging()

	var namedSinks []logging.NamedSink
	cleanup := func() {}

	if cfg.HasSink("console") {
		namedSinks = append(namedSinks, logging.NamedSink{
			Name: "console",
			Sink: loggingSinks.NewConsoleSink(os.Stdout, cfg.Console),
		})
	}
	if cfg.HasSink("json") {
		file, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, nil, err
		}
		namedSinks = append(namedSinks, logging.NamedSink{
			Name: "json",
			Sink: loggingSinks.NewJSON(file, cfg.JSON.FlushInterval),
		})
		cleanup = func() { file.Close() }
	}

	// The tail is always attached; /admin/logs reads it back.
	tail := loggingSinks.NewMemoryTail(logTailLimit)
	namedSinks = append(namedSinks, logging.NamedSink{Name: "tail", Sink: tail})

	router, err := logging.NewRouter(logging.SystemClock{}, cfg, namedSinks, metrics)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return router, tail, cleanup, nil
}

// buildDirectory prefers redis so launchers can read population across
// realms; a standalone realm falls back to the in-memory directory.
func buildDirectory(ctx context.Context, settings config.Settings, logger telemetry.Logger) (world.Directory, func()) {
	if settings.RedisAddr == "" {
		return directory.NewMemory(), func() {}
	}
	redisDir, err := directory.NewRedis(ctx, settings.RedisAddr, settings.RedisPassword, settings.RedisDB, settings.RealmID)
	if err != nil {
		logger.Printf("[app] redis directory unavailable, using in-memory fallback: %v", err)
		return directory.NewMemory(), func() {}
	}
	return redisDir, func() {
		if cerr := redisDir.Close(); cerr != nil {
			logger.Printf("[app] failed to close redis directory: %v", cerr)
		}
	}
}

func buildCatalog(ctx context.Context, settings config.Settings, logger telemetry.Logger) (*catalog.Catalog, error) {
	if settings.CatalogPath == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(settings.CatalogPath, logger)
	if err != nil {
		return nil, err
	}
	if err := cat.Watch(ctx); err != nil {
		logger.Printf("[app] catalog watch disabled: %v", err)
	}
	return cat, nil
}
