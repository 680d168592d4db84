package model

import "time"

// MonthKeyLayout formats the YYYY-MM statistics month key.
const MonthKeyLayout = "2006-01"

// MonthKey returns the statistics month key for t in t's location.
func MonthKey(t time.Time) string {
	return t.Format(MonthKeyLayout)
}

// StatisticsHistory is an archived month of geofence statistics.
type StatisticsHistory struct {
	ArchivedAt         time.Time
	GeofenceLocationID string
	Month              string
	ID                 int64
	CheckCount         int
	HitCount           int
	HitRate            float64
}

// HitRate returns hits/checks, or 0 when there were no checks.
func HitRate(checks, hits int) float64 {
	if checks == 0 {
		return 0
	}
	return float64(hits) / float64(checks)
}
