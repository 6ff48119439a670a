// Package scheduler runs the periodic SLA breach sweep.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/retailops/incidentd/internal/actorcontext"
	auditdomain "github.com/retailops/incidentd/internal/audit/domain"
	"github.com/retailops/incidentd/internal/clock"
	incidentdomain "github.com/retailops/incidentd/internal/incident/domain"
	obsmetrics "github.com/retailops/incidentd/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependencies")

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	IncidentSvc incidentdomain.Service
	AuditSvc    auditdomain.Service `optional:"true"`
	GenID       *snowflake.Node
	Clock       clock.Clock
	Config      Config `optional:"true"`
}

type Scheduler struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         Config
	genID       *snowflake.Node
	clock       clock.Clock
	incidentSvc incidentdomain.Service
	auditSvc    auditdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.IncidentSvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:          p.DB,
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         p.Config.withDefaults(),
		genID:       p.GenID,
		clock:       p.Clock,
		incidentSvc: p.IncidentSvc,
		auditSvc:    p.AuditSvc,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = actorcontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "scheduler")
	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	sweepMetrics := obsmetrics.Sweep()
	sweepMetrics.IncJobRun(name)

	err := fn(ctx)
	sweepMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// Deadline is a soft timeout: the next tick picks up the remainder.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		sweepMetrics.IncJobTimeout(name)
	}
	sweepMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	return s.runJob(parent, "sla_sweep", s.cfg.BatchSize, s.cfg.JobTimeout, s.SLASweepJob)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	sweepMetrics := obsmetrics.Sweep()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			sweepMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SLASweepJob flags overdue open incidents in batches until the
// backlog is drained or the job context expires.
func (s *Scheduler) SLASweepJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "sla_sweep", s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	now := s.clock.Now()
	var total int64

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		count, err := s.incidentSvc.MarkBreached(ctx, now, s.cfg.BatchSize)
		if err != nil {
			s.logSchedulerError(ctx, run, "sweep.mark_breached.failed", "sla_sweep", err)
			return err
		}
		if count == 0 {
			break
		}
		total += count
		run.AddProcessed(int(count))
		obsmetrics.Sweep().AddBatchProcessed("sla_sweep", int(count))
	}

	if total > 0 {
		obsmetrics.Sweep().AddBreachesFlagged(total)
		s.emitAuditEvent(ctx, auditEvent{
			Action:     "incident.sla_sweep.completed",
			TargetType: "incident",
			Metadata: map[string]any{
				"flagged_count": total,
				"swept_at":      now.UTC().Format(time.RFC3339),
			},
		})
	}
	return nil
}

type auditEvent struct {
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

func (s *Scheduler) emitAuditEvent(ctx context.Context, event auditEvent) {
	if s.auditSvc == nil {
		return
	}
	var targetID *string
	if event.TargetID != "" {
		targetID = &event.TargetID
	}
	_ = s.auditSvc.AuditLog(ctx, "", nil, event.Action, event.TargetType, targetID, event.Metadata)
}
