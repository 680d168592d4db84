package geofence

import (
	"context"
	"log/slog"

	"github.com/Veraticus/whereabouts/internal/model"
)

// LogNotifier writes reminders to the default logger.
type LogNotifier struct{}

// Notify logs reminder.
func (LogNotifier) Notify(_ context.Context, reminder model.Reminder) error {
	slog.Info("Reminder",
		"task", reminder.TaskTitle,
		"location", reminder.LocationName,
		"transition", reminder.Transition)
	return nil
}
