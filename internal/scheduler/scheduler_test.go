package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/retailops/incidentd/internal/audit/domain"
	"github.com/retailops/incidentd/internal/clock"
	incidentdomain "github.com/retailops/incidentd/internal/incident/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type incidentStub struct {
	mu      sync.Mutex
	batches []int64
	calls   int
	err     error
}

func (s *incidentStub) MarkBreached(ctx context.Context, now time.Time, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	if s.calls >= len(s.batches) {
		return 0, nil
	}
	count := s.batches[s.calls]
	s.calls++
	return count, nil
}

func (s *incidentStub) Create(context.Context, incidentdomain.CreateIncidentRequest) (*incidentdomain.Incident, error) {
	return nil, nil
}

func (s *incidentStub) Get(context.Context, snowflake.ID) (*incidentdomain.Incident, error) {
	return nil, nil
}

func (s *incidentStub) GetByNumber(context.Context, string) (*incidentdomain.Incident, error) {
	return nil, nil
}

func (s *incidentStub) List(context.Context, incidentdomain.ListIncidentsRequest) ([]incidentdomain.Incident, error) {
	return nil, nil
}

func (s *incidentStub) Summary(context.Context, *snowflake.ID) (*incidentdomain.IncidentSummary, error) {
	return nil, nil
}

func (s *incidentStub) Transition(context.Context, snowflake.ID, incidentdomain.TransitionRequest) (*incidentdomain.Incident, error) {
	return nil, nil
}

func (s *incidentStub) Assign(context.Context, snowflake.ID, incidentdomain.AssignRequest) (*incidentdomain.Incident, error) {
	return nil, nil
}

func (s *incidentStub) AddComment(context.Context, incidentdomain.AddCommentRequest) (*incidentdomain.IncidentComment, error) {
	return nil, nil
}

func (s *incidentStub) History(context.Context, snowflake.ID) ([]incidentdomain.IncidentHistory, error) {
	return nil, nil
}

func (s *incidentStub) ListComments(context.Context, snowflake.ID) ([]incidentdomain.IncidentComment, error) {
	return nil, nil
}

type auditStub struct {
	mu      sync.Mutex
	actions []string
	meta    []map[string]any
}

func (a *auditStub) AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
	a.meta = append(a.meta, metadata)
	return nil
}

func (a *auditStub) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

func newTestScheduler(t *testing.T, svc incidentdomain.Service, audit auditdomain.Service) (*Scheduler, *clock.FakeClock) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC))

	sched, err := New(Params{
		DB:          &gorm.DB{},
		Log:         zap.NewNop(),
		IncidentSvc: svc,
		AuditSvc:    audit,
		GenID:       node,
		Clock:       fakeClock,
		Config: Config{
			RunInterval: time.Minute,
			BatchSize:   2,
			JobTimeout:  5 * time.Second,
		},
	})
	require.NoError(t, err)
	return sched, fakeClock
}

func TestRunOnceDrainsBacklogInBatches(t *testing.T) {
	svc := &incidentStub{batches: []int64{2, 2, 1}}
	audit := &auditStub{}
	sched, _ := newTestScheduler(t, svc, audit)

	require.NoError(t, sched.RunOnce(context.Background()))
	assert.Equal(t, 3, svc.calls)

	require.Len(t, audit.actions, 1)
	assert.Equal(t, "incident.sla_sweep.completed", audit.actions[0])
	assert.Equal(t, int64(5), audit.meta[0]["flagged_count"])
}

func TestRunOnceNoBacklogEmitsNoAudit(t *testing.T) {
	svc := &incidentStub{}
	audit := &auditStub{}
	sched, _ := newTestScheduler(t, svc, audit)

	require.NoError(t, sched.RunOnce(context.Background()))
	assert.Empty(t, audit.actions)
}

func TestRunOncePropagatesSweepErrors(t *testing.T) {
	svc := &incidentStub{err: errors.New("db down")}
	sched, _ := newTestScheduler(t, svc, &auditStub{})

	err := sched.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sla_sweep")
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
