package model

import "time"

// Task is the minimal view of a to-do item needed to own a geofence.
type Task struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	ID        string
	Title     string
	Notes     string
	Completed bool
}
