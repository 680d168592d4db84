package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/whereabouts/internal/cli"
	"github.com/Veraticus/whereabouts/internal/geofence"
	"github.com/Veraticus/whereabouts/internal/model"
)

func simulateCmd() *cobra.Command {
	var errorCode int

	cmd := &cobra.Command{
		Use:   "simulate <enter|exit> <geofence-location-id>...",
		Short: "Process a transition as if the host had reported it",
		Long: `Run a transition event through the same handler the server uses.
Reminders are written to the log instead of being published.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, store, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			event := model.TransitionEvent{
				Timestamp: time.Now(),
				RegionIDs: args[1:],
				ErrorCode: errorCode,
			}
			if errorCode == 0 {
				transition, err := model.ParseTransition(args[0])
				if err != nil {
					return err
				}
				event.Transition = transition
			}

			policy, err := recencyPolicyFromConfig(cfg)
			if err != nil {
				return err
			}
			handler := geofence.NewTransitionHandler(store,
				geofence.NewUsageUpdater(store, policy),
				geofence.NewStatisticsUpdater(store),
				geofence.LogNotifier{})

			// Run through a receiver so the event is processed exactly as the
			// server would.
			var result geofence.HandleResult
			receiver := geofence.NewReceiver(&recordingHandler{next: handler, result: &result})
			receiver.Receive(event, nil)
			receiver.Wait()

			out := cmd.OutOrStdout()
			if result.Dropped {
				fmt.Fprintln(out, cli.FormatWarning("Event dropped"))
				return nil
			}
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%d regions, %d tasks updated, %d failed",
				result.Regions, result.TasksUpdated, result.Failed)))
			return nil
		},
	}

	cmd.Flags().IntVar(&errorCode, "error-code", 0, "simulate a host error code instead of a transition")

	return cmd
}

// recordingHandler keeps the result of the last handled event.
type recordingHandler struct {
	next   geofence.EventHandler
	result *geofence.HandleResult
}

func (h *recordingHandler) Handle(ctx context.Context, event model.TransitionEvent) geofence.HandleResult {
	*h.result = h.next.Handle(ctx, event)
	return *h.result
}
