package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smazurov/camview/cmd"
	"github.com/smazurov/camview/internal/api"
	"github.com/smazurov/camview/internal/config"
	"github.com/smazurov/camview/internal/devices"
	"github.com/smazurov/camview/internal/events"
	"github.com/smazurov/camview/internal/lifecycle"
	"github.com/smazurov/camview/internal/logging"
	"github.com/smazurov/camview/internal/systemd"
)

func main() {
	var cli humacli.CLI
	var parsed *cmd.Options

	cli = humacli.New(func(hooks humacli.Hooks, opts *cmd.Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}
		opts.InitLogging()
		parsed = opts

		logger := logging.GetLogger("main")

		eventBus := events.New()
		registry := opts.NewRegistry(eventBus)

		catalog, err := opts.LoadCatalog()
		if err != nil {
			logger.Warn("Failed to load device catalog, starting empty", "file", opts.DevicesFile, "error", err)
			catalog = devices.NewCatalog(opts.DevicesFile)
		}

		// Catalog edits stop removed devices and restart changed ones
		watcher := config.NewWatcher(opts.DevicesFile, devices.LoadFile, logger)
		watcher.OnReload(func(next map[string]devices.Device) {
			diff := catalog.Replace(next)
			if diff.Empty() {
				return
			}
			logger.Info("Device catalog changed",
				"added", len(diff.Added), "removed", len(diff.Removed), "changed", len(diff.Changed))
			registry.ApplyCatalog(context.Background(), diff)
		})

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Registry:          registry,
			Catalog:           catalog,
			EventBus:          eventBus,
			CleanupTimeout:    opts.CleanupTimeout(),
			PrometheusHandler: promhttp.Handler(),
		})

		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))
		watchdogCtx, stopWatchdog := context.WithCancel(context.Background())

		// SIGHUP is not handled by the CLI; stop the server ourselves after cleanup.
		lc := lifecycle.New(registry,
			lifecycle.WithTimeout(opts.CleanupTimeout()),
			lifecycle.WithLogger(logger),
			lifecycle.WithOnSignal(func(os.Signal) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(ctx)
			}),
		)

		hooks.OnStart(func() {
			unbind := lc.Bind()
			defer unbind()

			if startErr := watcher.Start(context.Background()); startErr != nil {
				logger.Warn("Failed to watch device catalog, hot-reload disabled", "error", startErr)
			}

			go notifier.Watchdog(watchdogCtx)
			notifier.Ready()
			notifier.Status(fmt.Sprintf("serving on %s, %d devices", opts.Port, len(catalog.List())))

			if startErr := server.Start(opts.Port); startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				lc.Shutdown("server failed")
				os.Exit(1)
			}

			// Reached after a SIGHUP-triggered shutdown
			lc.Shutdown("server stopped")
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			notifier.Stopping()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if stopErr := server.Shutdown(ctx); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			// Players go after the API stops accepting start requests
			lc.Shutdown("server stopping")

			_ = watcher.Stop()
			stopWatchdog()
		})
	})

	options := func() *cmd.Options { return parsed }
	cli.Root().AddCommand(cmd.CreatePlayCmd(options))
	cli.Root().AddCommand(cmd.CreateSweepCmd(options))
	cli.Root().AddCommand(cmd.CreateDevicesCmd(options))
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	cli.Run()
}
