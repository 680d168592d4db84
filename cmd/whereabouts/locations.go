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

func locationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locations",
		Short: "Manage saved places",
		Long:  `List, add, and delete the saved places that geofences are built from.`,
	}

	cmd.AddCommand(listLocationsCmd())
	cmd.AddCommand(addLocationCmd())
	cmd.AddCommand(deleteLocationCmd())

	return cmd
}

func listLocationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all saved places",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			_, store, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			locations, err := store.GetLocations(ctx)
			if err != nil {
				return fmt.Errorf("failed to get locations: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(locations) == 0 {
				fmt.Fprintln(out, cli.InfoStyle.Render("No locations found. Use 'whereabouts locations add' to create one."))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("ID"),
				cli.TableHeaderStyle.Render("Name"),
				cli.TableHeaderStyle.Render("Coordinates"),
				cli.TableHeaderStyle.Render("Address"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 36),
				strings.Repeat("-", 20),
				strings.Repeat("-", 22),
				strings.Repeat("-", 30))

			for _, loc := range locations {
				address := loc.Address
				if address == "" {
					address = cli.SubtleStyle.Render("(none)")
				}
				fmt.Fprintf(w, "%s\t%s\t%.6f, %.6f\t%s\n", loc.ID, loc.Name, loc.Latitude, loc.Longitude, address)
			}

			return nil
		},
	}
}

func addLocationCmd() *cobra.Command {
	var (
		lat     float64
		lon     float64
		address string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a saved place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, store, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			loc := &model.Location{
				Name:      args[0],
				Latitude:  lat,
				Longitude: lon,
				Address:   address,
				Source:    model.SourceManual,
			}
			if err := store.CreateLocation(ctx, loc); err != nil {
				return fmt.Errorf("failed to create location: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created location %q (%s)", loc.Name, loc.ID)))
			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude in degrees")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude in degrees")
	cmd.Flags().StringVar(&address, "address", "", "street address")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")

	return cmd
}

func deleteLocationCmd() *cobra.Command {
	var keepRegion bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved place and its geofence",
		Long: `Delete a saved place. A geofenced place also loses its task geofences
and statistics history, and its region is withdrawn from the host.`,
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
			err = geofence.NewRegistry(store).DeleteLocation(ctx, args[0], regionRemover(keepRegion, remover))
			if err := regionWarning(out, err); err != nil {
				return notFound("location", args[0], err)
			}

			fmt.Fprintln(out, cli.FormatSuccess("Deleted location "+args[0]))
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepRegion, "keep-region", false, "leave the host region registered")

	return cmd
}
