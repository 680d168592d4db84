package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/whereabouts/internal/cli"
	"github.com/Veraticus/whereabouts/internal/common"
	"github.com/Veraticus/whereabouts/internal/model"
)

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage tasks",
		Long:  `List, add, and delete the tasks that geofences remind you about.`,
	}

	cmd.AddCommand(listTasksCmd())
	cmd.AddCommand(addTaskCmd())
	cmd.AddCommand(deleteTaskCmd())

	return cmd
}

func listTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks and their geofence state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			_, store, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			tasks, err := store.GetTasks(ctx)
			if err != nil {
				return fmt.Errorf("failed to get tasks: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, cli.InfoStyle.Render("No tasks found. Use 'whereabouts tasks add' to create one."))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("ID"),
				cli.TableHeaderStyle.Render("Title"),
				cli.TableHeaderStyle.Render("Geofence"),
				cli.TableHeaderStyle.Render("Last check"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 36),
				strings.Repeat("-", 30),
				strings.Repeat("-", 12),
				strings.Repeat("-", 20))

			for _, task := range tasks {
				geofenceState, lastCheck := cli.SubtleStyle.Render("none"), ""
				tg, err := store.GetTaskGeofence(ctx, task.ID)
				switch {
				case err == nil:
					geofenceState = fmt.Sprintf("%d m", tg.Radius)
					if !tg.Enabled {
						geofenceState += " (off)"
					}
					if tg.LastCheckTime != nil {
						lastCheck = cli.FormatCheckResult(tg.LastCheckResult)
					}
				case !errors.Is(err, common.ErrNotFound):
					return fmt.Errorf("failed to get task geofence: %w", err)
				}

				title := task.Title
				if task.Completed {
					title = cli.SubtleStyle.Render(title + " (done)")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", task.ID, title, geofenceState, lastCheck)
			}

			return nil
		},
	}
}

func addTaskCmd() *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, store, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			task := &model.Task{Title: args[0], Notes: notes}
			if err := store.CreateTask(ctx, task); err != nil {
				return fmt.Errorf("failed to create task: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created task %q (%s)", task.Title, task.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")

	return cmd
}

func deleteTaskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task and its geofence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, store, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteTask(ctx, args[0]); err != nil {
				return notFound("task", args[0], err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted task "+args[0]))
			return nil
		},
	}
}
