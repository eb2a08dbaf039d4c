package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/smazurov/camview/internal/devices"
	"github.com/smazurov/camview/internal/streams"
	"github.com/spf13/cobra"
)

// CreateDevicesCmd creates the devices command and its sub-commands.
func CreateDevicesCmd(opts func() *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List cameras in the device catalog",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			catalog, err := opts().LoadCatalog()
			if err != nil {
				return err
			}

			list := catalog.List()
			if len(list) == 0 {
				fmt.Fprintf(c.OutOrStdout(), "No devices in %s\n", catalog.Path())
				return nil
			}

			w := tabwriter.NewWriter(c.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tLABEL\tURL")
			for _, d := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.ID, d.Label, streams.RedactURL(d.URL))
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(createDevicesAddCmd(opts))
	return cmd
}

func createDevicesAddCmd(opts func() *Options) *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "add <device-id> <url>",
		Short: "Add or replace a camera in the device catalog",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			catalog, err := opts().LoadCatalog()
			if err != nil {
				return err
			}
			if err := catalog.Put(devices.Device{ID: args[0], Label: label, URL: args[1]}); err != nil {
				return err
			}
			if err := catalog.Save(); err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "Saved %s to %s\n", args[0], catalog.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "Camera label (defaults to the device ID)")
	return cmd
}
