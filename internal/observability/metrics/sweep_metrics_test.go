package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifySweepErrorType(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: SweepErrorTypeDeadlineExceeded,
		},
		{
			name: "db_lock_timeout",
			err:  &pgconn.PgError{Code: "55P03"},
			want: SweepErrorTypeDB,
		},
		{
			name: "unique_violation",
			err:  gorm.ErrDuplicatedKey,
			want: SweepErrorTypeDB,
		},
		{
			name: "record_not_found",
			err:  gorm.ErrRecordNotFound,
			want: SweepErrorTypeBusinessRule,
		},
		{
			name: "business_rule",
			err:  errors.New("invalid_transition"),
			want: SweepErrorTypeBusinessRule,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySweepErrorType(tc.err); got != tc.want {
				t.Fatalf("expected type %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIsSweepErrorRetryable(t *testing.T) {
	if !IsSweepErrorRetryable(context.DeadlineExceeded) {
		t.Fatalf("expected deadline errors to be retryable")
	}
	if !IsSweepErrorRetryable(&pgconn.PgError{Code: "40001"}) {
		t.Fatalf("expected serialization failures to be retryable")
	}
	if IsSweepErrorRetryable(errors.New("invalid_transition")) {
		t.Fatalf("expected business rule errors not to be retryable")
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSweepMetrics(registry, Config{
		ServiceName: "incidentd",
		Environment: "test",
	})

	metrics.AddBatchProcessed("sla_sweep", 3)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("sla_sweep"))
	if got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
}

func TestAddBreachesFlagged(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSweepMetrics(registry, Config{
		ServiceName: "incidentd",
		Environment: "test",
	})

	metrics.AddBreachesFlagged(5)
	metrics.AddBreachesFlagged(0)
	metrics.AddBreachesFlagged(-1)

	got := testutil.ToFloat64(metrics.flaggedTotal)
	if got != 5 {
		t.Fatalf("expected flagged count 5, got %v", got)
	}
}
