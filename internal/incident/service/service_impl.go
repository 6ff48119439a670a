package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/retailops/incidentd/internal/audit/domain"
	"github.com/retailops/incidentd/internal/clock"
	incidentdomain "github.com/retailops/incidentd/internal/incident/domain"
	"github.com/retailops/incidentd/internal/incident/number"
	"github.com/retailops/incidentd/internal/incident/sla"
	obsmetrics "github.com/retailops/incidentd/internal/observability/metrics"
	refdomain "github.com/retailops/incidentd/internal/reference/domain"
	"github.com/retailops/incidentd/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxAllocationAttempts bounds incident number retries when two creates
// race on the same store-year prefix. The unique constraint is the
// arbiter; the scan is only a starting point.
const maxAllocationAttempts = 3

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    incidentdomain.Repository
	RefRepo refdomain.Repository
	Audit   auditdomain.Service `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    incidentdomain.Repository
	refRepo refdomain.Repository
	audit   auditdomain.Service
	metrics *obsmetrics.Metrics
}

func NewService(p Params) incidentdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("incident.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		refRepo: p.RefRepo,
		audit:   p.Audit,
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req incidentdomain.CreateIncidentRequest) (*incidentdomain.Incident, error) {
	if verrs := validateCreate(req); len(verrs) > 0 {
		return nil, verrs
	}

	refs, err := s.resolveReferences(ctx, req)
	if err != nil {
		return nil, err
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = "api"
	}

	var created *incidentdomain.Incident
	for attempt := 1; attempt <= maxAllocationAttempts; attempt++ {
		now := s.clock.Now().UTC()
		incident := &incidentdomain.Incident{
			ID:               s.genID.Generate(),
			Title:            strings.TrimSpace(req.Title),
			Description:      strings.TrimSpace(req.Description),
			CategoryID:       req.CategoryID,
			SubcategoryID:    req.SubcategoryID,
			Priority:         req.Priority,
			Severity:         req.Severity,
			StoreID:          req.StoreID,
			DepartmentID:     req.DepartmentID,
			LocationDetails:  req.LocationDetails,
			Status:           incidentdomain.StatusNew,
			ReporterID:       req.ReporterID,
			CustomerAffected: req.CustomerAffected,
			Source:           source,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if refs.store != nil {
				seq, seqErr := s.repo.MaxSequence(ctx, tx, number.Prefix(refs.store.Code, now.Year()))
				if seqErr != nil {
					return seqErr
				}
				incident.IncidentNumber = number.Format(refs.store.Code, now.Year(), seq+1)
			} else {
				incident.IncidentNumber = number.Fallback(now)
			}

			if insertErr := s.repo.InsertIncident(ctx, tx, incident); insertErr != nil {
				return insertErr
			}

			if refs.subcategory != nil {
				deadline := sla.Deadline(now, refs.subcategory.SLAHours)
				if dlErr := s.repo.SetSLADeadline(ctx, tx, incident.ID, deadline); dlErr != nil {
					return dlErr
				}
				incident.SLADeadline = &deadline
			}

			newValue := string(incidentdomain.StatusNew)
			return s.repo.InsertHistory(ctx, tx, &incidentdomain.IncidentHistory{
				ID:         s.genID.Generate(),
				IncidentID: incident.ID,
				ChangedBy:  req.ReporterID,
				FieldName:  "status",
				OldValue:   nil,
				NewValue:   &newValue,
				CreatedAt:  now,
			})
		})
		if err == nil {
			created = incident
			break
		}
		if db.IsDuplicateKeyErr(err) {
			s.metrics.RecordNumberConflict(ctx)
			s.log.Warn("incident number collision, retrying",
				zap.String("incident_number", incident.IncidentNumber),
				zap.Int("attempt", attempt),
			)
			continue
		}
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("%w: incident number allocation exhausted after %d attempts", incidentdomain.ErrConflict, maxAllocationAttempts)
	}

	s.metrics.RecordIncidentCreated(ctx, string(created.Priority), string(created.Severity))
	if created.StoreID == nil {
		s.metrics.RecordFallbackNumber(ctx)
	}
	s.log.Info("incident created",
		zap.String("incident_number", created.IncidentNumber),
		zap.String("priority", string(created.Priority)),
		zap.String("severity", string(created.Severity)),
	)
	s.emitAuditEvent(ctx, "incident.created", created.ID, map[string]any{
		"incident_number": created.IncidentNumber,
		"priority":        string(created.Priority),
		"severity":        string(created.Severity),
	})

	return created, nil
}

func (s *Service) emitAuditEvent(ctx context.Context, action string, incidentID snowflake.ID, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	targetID := incidentID.String()
	_ = s.audit.AuditLog(ctx, "", nil, action, "incident", &targetID, metadata)
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*incidentdomain.Incident, error) {
	incident, err := s.repo.Get(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, incidentdomain.ErrIncidentNotFound
		}
		return nil, err
	}
	return incident, nil
}

func (s *Service) GetByNumber(ctx context.Context, incidentNumber string) (*incidentdomain.Incident, error) {
	incident, err := s.repo.GetByNumber(ctx, s.db, incidentNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, incidentdomain.ErrIncidentNotFound
		}
		return nil, err
	}
	return incident, nil
}

func (s *Service) List(ctx context.Context, req incidentdomain.ListIncidentsRequest) ([]incidentdomain.Incident, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	if req.Limit > 250 {
		req.Limit = 250
	}
	return s.repo.List(ctx, s.db, req, s.clock.Now())
}

func (s *Service) Summary(ctx context.Context, storeID *snowflake.ID) (*incidentdomain.IncidentSummary, error) {
	return s.repo.Summary(ctx, s.db, storeID, s.clock.Now())
}

func (s *Service) Transition(ctx context.Context, actorID snowflake.ID, req incidentdomain.TransitionRequest) (*incidentdomain.Incident, error) {
	if !req.To.Valid() {
		return nil, incidentdomain.ValidationErrors{{
			Field:   "to",
			Code:    "invalid",
			Message: fmt.Sprintf("unknown status %q", string(req.To)),
		}}
	}

	var updated *incidentdomain.Incident
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		incident, err := s.repo.GetForUpdate(ctx, tx, req.IncidentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return incidentdomain.ErrIncidentNotFound
			}
			return err
		}

		from := incident.Status
		if !incidentdomain.CanTransition(from, req.To) {
			return fmt.Errorf("%w: %s -> %s", incidentdomain.ErrInvalidTransition, from, req.To)
		}

		now := s.clock.Now().UTC()
		incident.Status = req.To
		incident.UpdatedAt = now

		switch req.To {
		case incidentdomain.StatusResolved:
			incident.ResolvedAt = &now
			incident.ResolverID = &actorID
			if req.ResolutionNotes != nil {
				incident.ResolutionNotes = req.ResolutionNotes
			}
		case incidentdomain.StatusClosed:
			incident.ClosedAt = &now
		}

		if err := s.repo.UpdateLifecycle(ctx, tx, incident); err != nil {
			return err
		}

		oldValue := string(from)
		newValue := string(req.To)
		if err := s.repo.InsertHistory(ctx, tx, &incidentdomain.IncidentHistory{
			ID:           s.genID.Generate(),
			IncidentID:   incident.ID,
			ChangedBy:    actorID,
			FieldName:    "status",
			OldValue:     &oldValue,
			NewValue:     &newValue,
			ChangeReason: req.Reason,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		updated = incident
		s.metrics.RecordStatusTransition(ctx, oldValue, newValue)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("incident transitioned",
		zap.String("incident_number", updated.IncidentNumber),
		zap.String("status", string(updated.Status)),
	)
	s.emitAuditEvent(ctx, "incident.transitioned", updated.ID, map[string]any{
		"incident_number": updated.IncidentNumber,
		"status":          string(updated.Status),
	})
	return updated, nil
}

func (s *Service) Assign(ctx context.Context, actorID snowflake.ID, req incidentdomain.AssignRequest) (*incidentdomain.Incident, error) {
	assignee, err := s.refRepo.GetUser(ctx, req.AssigneeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, incidentdomain.ErrUserNotFound
		}
		return nil, err
	}

	var updated *incidentdomain.Incident
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		incident, err := s.repo.GetForUpdate(ctx, tx, req.IncidentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return incidentdomain.ErrIncidentNotFound
			}
			return err
		}
		if incident.Status.Terminal() {
			return fmt.Errorf("%w: cannot assign in state %s", incidentdomain.ErrInvalidTransition, incident.Status)
		}

		now := s.clock.Now().UTC()
		from := incident.Status
		previousAssignee := incident.AssignedTo

		incident.AssignedTo = &assignee.ID
		incident.AssignedAt = &now
		incident.UpdatedAt = now
		if incident.Status == incidentdomain.StatusNew {
			incident.Status = incidentdomain.StatusAssigned
		}

		if err := s.repo.UpdateAssignment(ctx, tx, incident); err != nil {
			return err
		}

		var oldAssignee *string
		if previousAssignee != nil {
			value := previousAssignee.String()
			oldAssignee = &value
		}
		newAssignee := assignee.ID.String()
		if err := s.repo.InsertHistory(ctx, tx, &incidentdomain.IncidentHistory{
			ID:           s.genID.Generate(),
			IncidentID:   incident.ID,
			ChangedBy:    actorID,
			FieldName:    "assigned_to",
			OldValue:     oldAssignee,
			NewValue:     &newAssignee,
			ChangeReason: req.Reason,
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		if incident.Status != from {
			oldStatus := string(from)
			newStatus := string(incident.Status)
			if err := s.repo.InsertHistory(ctx, tx, &incidentdomain.IncidentHistory{
				ID:         s.genID.Generate(),
				IncidentID: incident.ID,
				ChangedBy:  actorID,
				FieldName:  "status",
				OldValue:   &oldStatus,
				NewValue:   &newStatus,
				CreatedAt:  now,
			}); err != nil {
				return err
			}
			s.metrics.RecordStatusTransition(ctx, oldStatus, newStatus)
		}

		updated = incident
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("incident assigned",
		zap.String("incident_number", updated.IncidentNumber),
		zap.String("assigned_to", assignee.ID.String()),
	)
	s.emitAuditEvent(ctx, "incident.assigned", updated.ID, map[string]any{
		"incident_number": updated.IncidentNumber,
		"assigned_to":     assignee.ID.String(),
	})
	return updated, nil
}

func (s *Service) AddComment(ctx context.Context, req incidentdomain.AddCommentRequest) (*incidentdomain.IncidentComment, error) {
	if strings.TrimSpace(req.CommentText) == "" {
		return nil, incidentdomain.ValidationErrors{{
			Field:   "comment_text",
			Code:    "required",
			Message: "comment text must not be empty",
		}}
	}
	if _, err := s.refRepo.GetUser(ctx, req.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, incidentdomain.ErrUserNotFound
		}
		return nil, err
	}
	if _, err := s.Get(ctx, req.IncidentID); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	comment := &incidentdomain.IncidentComment{
		ID:          s.genID.Generate(),
		IncidentID:  req.IncidentID,
		UserID:      req.UserID,
		CommentText: strings.TrimSpace(req.CommentText),
		IsInternal:  req.IsInternal,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertComment(ctx, s.db, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *Service) History(ctx context.Context, incidentID snowflake.ID) ([]incidentdomain.IncidentHistory, error) {
	if _, err := s.Get(ctx, incidentID); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, s.db, incidentID)
}

func (s *Service) ListComments(ctx context.Context, incidentID snowflake.ID) ([]incidentdomain.IncidentComment, error) {
	if _, err := s.Get(ctx, incidentID); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, s.db, incidentID)
}

func (s *Service) MarkBreached(ctx context.Context, now time.Time, limit int) (int64, error) {
	count, err := s.repo.MarkBreached(ctx, s.db, now, limit)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.metrics.RecordBreachesFlagged(ctx, count)
		s.log.Info("incidents flagged as SLA breached", zap.Int64("count", count))
	}
	return count, nil
}

type resolvedReferences struct {
	store       *refdomain.Store
	subcategory *refdomain.IncidentSubcategory
}

func (s *Service) resolveReferences(ctx context.Context, req incidentdomain.CreateIncidentRequest) (resolvedReferences, error) {
	var refs resolvedReferences

	if _, err := s.refRepo.GetCategory(ctx, req.CategoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return refs, incidentdomain.ErrCategoryNotFound
		}
		return refs, err
	}

	if req.SubcategoryID != nil {
		subcategory, err := s.refRepo.GetSubcategory(ctx, *req.SubcategoryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return refs, incidentdomain.ErrSubcategoryNotFound
			}
			return refs, err
		}
		if subcategory.CategoryID != req.CategoryID {
			return refs, incidentdomain.ValidationErrors{{
				Field:   "subcategory_id",
				Code:    "mismatch",
				Message: "subcategory does not belong to the given category",
			}}
		}
		refs.subcategory = subcategory
	}

	if req.StoreID != nil {
		store, err := s.refRepo.GetStore(ctx, *req.StoreID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return refs, incidentdomain.ErrStoreNotFound
			}
			return refs, err
		}
		refs.store = store
	}

	if req.DepartmentID != nil {
		if _, err := s.refRepo.GetDepartment(ctx, *req.DepartmentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return refs, incidentdomain.ErrDepartmentNotFound
			}
			return refs, err
		}
	}

	if _, err := s.refRepo.GetUser(ctx, req.ReporterID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return refs, incidentdomain.ErrUserNotFound
		}
		return refs, err
	}

	return refs, nil
}

func validateCreate(req incidentdomain.CreateIncidentRequest) incidentdomain.ValidationErrors {
	var verrs incidentdomain.ValidationErrors

	title := strings.TrimSpace(req.Title)
	if len(title) < 5 || len(title) > 200 {
		verrs = append(verrs, incidentdomain.ValidationError{
			Field:   "title",
			Code:    "length",
			Message: "title must be between 5 and 200 characters",
		})
	}
	if len(strings.TrimSpace(req.Description)) < 10 {
		verrs = append(verrs, incidentdomain.ValidationError{
			Field:   "description",
			Code:    "length",
			Message: "description must be at least 10 characters",
		})
	}
	if !req.Priority.Valid() {
		verrs = append(verrs, incidentdomain.ValidationError{
			Field:   "priority",
			Code:    "invalid",
			Message: "priority must be one of low, medium, high, critical",
		})
	}
	if !req.Severity.Valid() {
		verrs = append(verrs, incidentdomain.ValidationError{
			Field:   "severity",
			Code:    "invalid",
			Message: "severity must be one of minor, major, critical",
		})
	}
	if req.CategoryID == 0 {
		verrs = append(verrs, incidentdomain.ValidationError{
			Field:   "category_id",
			Code:    "required",
			Message: "category is required",
		})
	}
	if req.ReporterID == 0 {
		verrs = append(verrs, incidentdomain.ValidationError{
			Field:   "reporter_id",
			Code:    "required",
			Message: "reporter is required",
		})
	}

	return verrs
}
