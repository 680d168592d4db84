package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/whereabouts/internal/cli"
)

func syncCmd() *cobra.Command {
	var removeAll bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Re-register geofences with the host",
		Long: `Register every geofenced place that has an enabled task and remove the
rest. Use after a reboot or when the host lost its registrations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, store, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			client, err := connectMQTT(cfg)
			if err != nil {
				return err
			}
			defer client.Disconnect()

			manager := newManager(cfg, client, store)
			out := cmd.OutOrStdout()

			if removeAll {
				if err := manager.RemoveAllGeofences(ctx); err != nil {
					return err
				}
				fmt.Fprintln(out, cli.FormatSuccess("Requested removal of all geofences"))
				return nil
			}

			if !manager.HasBackgroundLocationPermission() {
				fmt.Fprintln(out, cli.FormatWarning("Background location is not granted; transitions may not be delivered"))
			}

			progress := cli.NewProgress(cmd.ErrOrStderr(), "Syncing geofences")
			result, err := manager.SyncGeofences(ctx, progress.Update)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Registered %d, removed %d", result.Registered, result.Removed)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&removeAll, "remove-all", false, "remove every registered geofence instead")

	return cmd
}
