package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/whereabouts/internal/cli"
	"github.com/Veraticus/whereabouts/internal/geofence"
	"github.com/Veraticus/whereabouts/internal/location"
	"github.com/Veraticus/whereabouts/internal/model"
	"github.com/Veraticus/whereabouts/internal/service"
)

func checkCmd() *cobra.Command {
	var (
		lat      float64
		lon      float64
		accuracy float64
	)

	cmd := &cobra.Command{
		Use:   "check <task-id>...",
		Short: "Check whether you are inside task geofences",
		Long: `Evaluate task geofences against a position. With --lat and --lon the
given position is used; otherwise the latest fix from the configured fix
store is used.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, store, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var provider service.LocationProvider
			flags := cmd.Flags()
			if flags.Changed("lat") || flags.Changed("lon") {
				if !flags.Changed("lat") || !flags.Changed("lon") {
					return fmt.Errorf("--lat and --lon must be given together")
				}
				provider = location.StaticProvider{Fix: model.Fix{
					Latitude:   lat,
					Longitude:  lon,
					Accuracy:   accuracy,
					RecordedAt: time.Now(),
				}}
			} else {
				fixes, closeFixes := newFixStore(cfg)
				defer func() { _ = closeFixes() }()
				provider = location.NewStoreProvider(fixes, cfg.Location.MaxFixAge)
			}

			checker := geofence.NewCheckServiceWithConfig(store, permissionsFromConfig(cfg), provider,
				geofence.NewStatisticsUpdater(store), geofence.CheckConfig{CacheTTL: cfg.Location.CacheTTL})

			statuses, err := checker.CheckMultipleTaskGeofences(ctx, args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, taskID := range args {
				fmt.Fprintln(out, cli.FormatStatus(statuses[taskID]))
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude of the position to check")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude of the position to check")
	cmd.Flags().Float64Var(&accuracy, "accuracy", 10, "accuracy of the position in meters")

	return cmd
}
