package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/whereabouts/internal/cli"
	"github.com/Veraticus/whereabouts/internal/geofence"
	"github.com/Veraticus/whereabouts/internal/model"
)

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Inspect and maintain geofence statistics",
	}

	cmd.AddCommand(showStatsCmd())
	cmd.AddCommand(resetStatsCmd())
	cmd.AddCommand(repairFrequentCmd())

	return cmd
}

func showStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [geofence-location-id]",
		Short: "Show this month's hit rates, or one place's history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, store, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			if len(args) == 1 {
				gl, err := store.GetGeofenceLocation(ctx, args[0])
				if err != nil {
					return notFound("geofence location", args[0], err)
				}
				history, err := geofence.NewStatisticsUpdater(store).GetStatisticsHistory(ctx, gl.ID)
				if err != nil {
					return err
				}

				fmt.Fprintln(out, cli.FormatTitle(cli.ChartIcon+" Statistics history"))
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					cli.TableHeaderStyle.Render("Month"),
					cli.TableHeaderStyle.Render("Checks"),
					cli.TableHeaderStyle.Render("Hits"),
					cli.TableHeaderStyle.Render("Hit rate"))
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", monthLabel(gl.LastStatisticsResetMonth)+" (current)",
					gl.MonthlyCheckCount, gl.MonthlyHitCount, cli.FormatHitRate(gl.MonthlyCheckCount, gl.MonthlyHitCount))
				for _, h := range history {
					fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", h.Month, h.CheckCount, h.HitCount, cli.FormatHitRate(h.CheckCount, h.HitCount))
				}
				return nil
			}

			geofences, err := store.GetGeofenceLocations(ctx)
			if err != nil {
				return err
			}
			if len(geofences) == 0 {
				fmt.Fprintln(out, cli.InfoStyle.Render("No geofenced places."))
				return nil
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("ID"),
				cli.TableHeaderStyle.Render("Month"),
				cli.TableHeaderStyle.Render("Checks"),
				cli.TableHeaderStyle.Render("Hits"),
				cli.TableHeaderStyle.Render("Hit rate"))
			for _, gl := range geofences {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", gl.ID, monthLabel(gl.LastStatisticsResetMonth),
					gl.MonthlyCheckCount, gl.MonthlyHitCount, cli.FormatHitRate(gl.MonthlyCheckCount, gl.MonthlyHitCount))
			}
			return nil
		},
	}
}

func monthLabel(month string) string {
	if month == "" {
		return "-"
	}
	return month
}

func resetStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Zero every place's monthly counters without archiving",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			_, store, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := geofence.NewStatisticsUpdater(store).ResetMonthlyStatistics(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Reset statistics for %d places", n)))
			return nil
		},
	}
}

func repairFrequentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair-frequent",
		Short: "Recompute frequent-location flags",
		Long: fmt.Sprintf(`Recompute every place's frequent flag. A place is frequent once it has
been used %d times and its last use is within %s.`, model.FrequentUsageThreshold, model.FrequentRecencyWindow),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, store, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			policy, err := recencyPolicyFromConfig(cfg)
			if err != nil {
				return err
			}

			progress := cli.NewProgress(cmd.ErrOrStderr(), "Repairing frequent flags")
			changed, err := geofence.NewUsageUpdater(store, policy).RepairFrequentFlags(ctx, progress.Update)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Updated %d frequent flags", changed)))
			return nil
		},
	}
}
