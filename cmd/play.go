package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/smazurov/camview/internal/devices"
	"github.com/smazurov/camview/internal/events"
	"github.com/smazurov/camview/internal/lifecycle"
	"github.com/smazurov/camview/internal/logging"
	"github.com/smazurov/camview/internal/streams"
	"github.com/spf13/cobra"
)

// CreatePlayCmd creates the play command. opts returns the parsed shared options.
func CreatePlayCmd(opts func() *Options) *cobra.Command {
	var streamURL string
	var label string

	cmd := &cobra.Command{
		Use:   "play <device-id>",
		Short: "Run one camera player in the foreground",
		Long: `Launches the player for a catalog device (or --url) and supervises it until it exits ` +
			`or the process receives SIGINT, SIGTERM or SIGHUP. Every player is cleaned up on exit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			deviceID := args[0]
			o := opts()
			logger := logging.GetLogger("main").With("device_id", deviceID)

			if streamURL == "" {
				catalog, err := o.LoadCatalog()
				if err != nil {
					return err
				}
				dev, err := catalog.Get(deviceID)
				if errors.Is(err, devices.ErrNotFound) {
					return fmt.Errorf("device %s is not in %s and no --url was given", deviceID, catalog.Path())
				}
				if err != nil {
					return err
				}
				streamURL = dev.URL
				if label == "" {
					label = dev.Label
				}
			}

			bus := events.New()
			exited := make(chan events.StreamExitedEvent, 1)
			unsub := bus.Subscribe(func(e events.StreamExitedEvent) {
				if e.DeviceID == deviceID {
					select {
					case exited <- e:
					default:
					}
				}
			})
			defer unsub()

			registry := o.NewRegistry(bus)
			signalled := make(chan os.Signal, 1)
			hooks := lifecycle.New(registry,
				lifecycle.WithTimeout(o.CleanupTimeout()),
				lifecycle.WithLogger(logger),
				lifecycle.WithOnSignal(func(sig os.Signal) { signalled <- sig }),
			)
			unbind := hooks.Bind()
			defer unbind()
			defer hooks.Shutdown("play finished")

			sp, err := registry.Start(c.Context(), deviceID, streamURL, label)
			if err != nil {
				logger.Error("Failed to start player", "kind", streams.KindOf(err), "error", err)
				return err
			}
			logger.Info("Player running, press Ctrl+C to stop", "pid", sp.PID)

			select {
			case sig := <-signalled:
				logger.Info("Player stopped", "signal", sig.String())
				return nil
			case e := <-exited:
				if se := registry.LastFailure(deviceID); se != nil {
					return se
				}
				logger.Info("Player exited", "exit_code", e.ExitCode)
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&streamURL, "url", "", "Stream URL, overrides the catalog")
	cmd.Flags().StringVar(&label, "label", "", "Camera label shown by the player")

	return cmd
}
