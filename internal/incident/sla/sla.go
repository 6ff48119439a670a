// Package sla computes resolution deadlines and breach state.
package sla

import (
	"math"
	"time"
)

// Deadline computes the resolution deadline from the creation time and
// the SLA window in hours. Fractional hours are honored to the second.
func Deadline(createdAt time.Time, hours float64) time.Time {
	seconds := math.Round(hours * 3600)
	return createdAt.UTC().Add(time.Duration(seconds) * time.Second)
}

// Overdue reports whether an incident has passed its deadline while
// still in an open state. Incidents without a deadline, or already
// resolved, closed, or cancelled, are never overdue.
func Overdue(deadline *time.Time, status string, now time.Time) bool {
	if deadline == nil {
		return false
	}
	switch status {
	case "resolved", "closed", "cancelled":
		return false
	}
	return now.After(*deadline)
}

// AgeHours returns the elapsed hours since creation.
func AgeHours(createdAt, now time.Time) float64 {
	return now.Sub(createdAt).Hours()
}

// ResolutionTimeHours returns the hours from creation to resolution,
// or zero when the incident is not yet resolved.
func ResolutionTimeHours(createdAt time.Time, resolvedAt *time.Time) float64 {
	if resolvedAt == nil {
		return 0
	}
	return resolvedAt.Sub(createdAt).Hours()
}
