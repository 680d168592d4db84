package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/whereabouts/internal/cli"
	"github.com/Veraticus/whereabouts/internal/geofence"
	"github.com/Veraticus/whereabouts/internal/model"
)

func geofenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geofence",
		Short: "Configure geofences",
		Long: `Opt saved places into geofencing, bind tasks to them, and manage the
global geofencing configuration.`,
	}

	cmd.AddCommand(geofenceConfigCmd())
	cmd.AddCommand(listGeofencesCmd())
	cmd.AddCommand(enableGeofenceCmd())
	cmd.AddCommand(disableGeofenceCmd())
	cmd.AddCommand(attachTaskCmd())
	cmd.AddCommand(detachTaskCmd())
	cmd.AddCommand(toggleTaskCmd())

	return cmd
}

func geofenceConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the global geofence configuration",
	}
	cmd.AddCommand(showGeofenceConfigCmd())
	cmd.AddCommand(setGeofenceConfigCmd())
	return cmd
}

func showGeofenceConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the global geofence configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			_, store, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			cfg, err := store.GetGeofenceConfig(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox("Geofence configuration", formatGeofenceConfig(cfg)))
			return nil
		},
	}
}

func formatGeofenceConfig(cfg *model.GeofenceConfig) string {
	return fmt.Sprintf("Enabled:             %t\n", cfg.Enabled) +
		fmt.Sprintf("Default radius:      %d m\n", cfg.DefaultRadius) +
		fmt.Sprintf("Accuracy threshold:  %.0f m\n", cfg.AccuracyThreshold) +
		fmt.Sprintf("Auto refresh:        %s\n", cfg.AutoRefreshInterval) +
		fmt.Sprintf("Power mode:          %s\n", cfg.PowerMode) +
		fmt.Sprintf("Notify when outside: %t", cfg.NotifyWhenOutside)
}

func setGeofenceConfigCmd() *cobra.Command {
	var (
		enabled       bool
		defaultRadius int
		accuracy      float64
		refresh       string
		powerMode     string
		notifyOutside bool
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change fields of the global geofence configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			_, store, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			cfg, err := store.GetGeofenceConfig(ctx)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("enabled") {
				cfg.Enabled = enabled
			}
			if flags.Changed("default-radius") {
				cfg.DefaultRadius = defaultRadius
			}
			if flags.Changed("accuracy-threshold") {
				cfg.AccuracyThreshold = accuracy
			}
			if flags.Changed("auto-refresh") {
				d, err := parseDuration(refresh)
				if err != nil {
					return err
				}
				cfg.AutoRefreshInterval = d
			}
			if flags.Changed("power-mode") {
				cfg.PowerMode = model.PowerMode(strings.ToUpper(powerMode))
			}
			if flags.Changed("notify-outside") {
				cfg.NotifyWhenOutside = notifyOutside
			}

			if err := store.SaveGeofenceConfig(ctx, cfg); err != nil {
				return fmt.Errorf("failed to save geofence config: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Geofence configuration saved"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&enabled, "enabled", true, "enable geofencing globally")
	cmd.Flags().IntVar(&defaultRadius, "default-radius", 100, "default radius in meters (50-1000)")
	cmd.Flags().Float64Var(&accuracy, "accuracy-threshold", 100, "worst acceptable fix accuracy in meters")
	cmd.Flags().StringVar(&refresh, "auto-refresh", "15m", "auto refresh interval")
	cmd.Flags().StringVar(&powerMode, "power-mode", string(model.PowerBalanced), "HIGH_ACCURACY, BALANCED or LOW_POWER")
	cmd.Flags().BoolVar(&notifyOutside, "notify-outside", false, "also remind on exit transitions")

	return cmd
}

func listGeofencesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List geofenced places, most used first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			_, store, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			cfg, err := store.GetGeofenceConfig(ctx)
			if err != nil {
				return err
			}
			geofences, err := store.GetGeofenceLocations(ctx)
			if err != nil {
				return fmt.Errorf("failed to get geofence locations: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(geofences) == 0 {
				fmt.Fprintln(out, cli.InfoStyle.Render("No geofenced places. Use 'whereabouts geofence enable' to add one."))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("ID"),
				cli.TableHeaderStyle.Render("Location"),
				cli.TableHeaderStyle.Render("Radius"),
				cli.TableHeaderStyle.Render("Uses"),
				cli.TableHeaderStyle.Render("Frequent"))

			for _, gl := range geofences {
				name := gl.LocationID
				if loc, err := store.GetLocation(ctx, gl.LocationID); err == nil {
					name = loc.Name
				}
				frequent := ""
				if gl.IsFrequent {
					frequent = cli.SuccessIcon
				}
				fmt.Fprintf(w, "%s\t%s\t%d m\t%d\t%s\n", gl.ID, name, gl.EffectiveRadius(*cfg), gl.UsageCount, frequent)
			}
			return nil
		},
	}
}

func enableGeofenceCmd() *cobra.Command {
	var radius int

	cmd := &cobra.Command{
		Use:   "enable <location-id>",
		Short: "Opt a saved place into geofencing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, store, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			gl, err := geofence.NewRegistry(store).EnableLocation(ctx, args[0], optionalRadius(radius))
			if err != nil {
				return notFound("location", args[0], err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Geofence location "+gl.ID))
			return nil
		},
	}

	cmd.Flags().IntVar(&radius, "radius", 0, "custom radius in meters (default: global default)")

	return cmd
}

func disableGeofenceCmd() *cobra.Command {
	var keepRegion bool

	cmd := &cobra.Command{
		Use:   "disable <geofence-location-id>",
		Short: "Opt a place out of geofencing",
		Long: `Stop geofencing a place. Its task geofences and statistics history are
deleted and its region is withdrawn from the host. The place itself stays.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, store, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			remover := newBrokerRegionRemover(cfg, store)
			defer remover.Close()

			out := cmd.OutOrStdout()
			err = geofence.NewRegistry(store).DisableLocation(ctx, args[0], regionRemover(keepRegion, remover))
			if err := regionWarning(out, err); err != nil {
				return notFound("geofence location", args[0], err)
			}

			fmt.Fprintln(out, cli.FormatSuccess("Disabled geofence location "+args[0]))
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepRegion, "keep-region", false, "leave the host region registered")

	return cmd
}

func attachTaskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <task-id> <geofence-location-id>",
		Short: "Bind a task to a geofenced place",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, store, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if _, err := store.GetTask(ctx, args[0]); err != nil {
				return notFound("task", args[0], err)
			}

			tg, err := geofence.NewRegistry(store).CreateTaskGeofence(ctx, args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to attach task: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Task %s reminds within %d m", tg.TaskID, tg.Radius)))
			return nil
		},
	}
}

func detachTaskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detach <task-id>",
		Short: "Remove a task's geofence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, store, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := geofence.NewRegistry(store).DetachTask(ctx, args[0]); err != nil {
				return notFound("task geofence for task", args[0], err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Detached task "+args[0]))
			return nil
		},
	}
}

func toggleTaskCmd() *cobra.Command {
	var off bool

	cmd := &cobra.Command{
		Use:   "toggle <task-id>",
		Short: "Enable or disable a task's geofence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, store, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.SetTaskGeofenceEnabled(ctx, args[0], !off); err != nil {
				return notFound("task geofence for task", args[0], err)
			}

			state := "enabled"
			if off {
				state = "disabled"
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Geofence for task %s %s", args[0], state)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&off, "off", false, "disable instead of enable")

	return cmd
}
