package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeadline(t *testing.T) {
	createdAt := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, createdAt.Add(4*time.Hour), Deadline(createdAt, 4))
	assert.Equal(t, createdAt.Add(30*time.Minute), Deadline(createdAt, 0.5))
	assert.Equal(t, createdAt.Add(90*time.Minute), Deadline(createdAt, 1.5))
	assert.Equal(t, createdAt.Add(72*time.Hour), Deadline(createdAt, 72))
}

func TestOverdue(t *testing.T) {
	deadline := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	before := deadline.Add(-time.Minute)
	after := deadline.Add(time.Minute)

	cases := []struct {
		name     string
		deadline *time.Time
		status   string
		now      time.Time
		want     bool
	}{
		{name: "open_past_deadline", deadline: &deadline, status: "new", now: after, want: true},
		{name: "in_progress_past_deadline", deadline: &deadline, status: "in_progress", now: after, want: true},
		{name: "assigned_before_deadline", deadline: &deadline, status: "assigned", now: before, want: false},
		{name: "exactly_at_deadline", deadline: &deadline, status: "new", now: deadline, want: false},
		{name: "resolved_past_deadline", deadline: &deadline, status: "resolved", now: after, want: false},
		{name: "closed_past_deadline", deadline: &deadline, status: "closed", now: after, want: false},
		{name: "cancelled_past_deadline", deadline: &deadline, status: "cancelled", now: after, want: false},
		{name: "no_deadline", deadline: nil, status: "new", now: after, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overdue(tc.deadline, tc.status, tc.now))
		})
	}
}

func TestResolutionTimeHours(t *testing.T) {
	createdAt := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	resolvedAt := createdAt.Add(5*time.Hour + 30*time.Minute)

	assert.Equal(t, 5.5, ResolutionTimeHours(createdAt, &resolvedAt))
	assert.Zero(t, ResolutionTimeHours(createdAt, nil))
}
