package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/retailops/incidentd/internal/incident/domain"
	"github.com/retailops/incidentd/internal/incident/number"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// MaxSequence returns the highest sequence already issued for the
// prefix, or zero when none exist or the trailing segment is malformed.
// Length-first ordering keeps numeric order once sequences widen past
// four digits.
func (r *repo) MaxSequence(ctx context.Context, db *gorm.DB, prefix string) (int64, error) {
	var incidentNumber string
	err := db.WithContext(ctx).
		Raw(`SELECT incident_number
		     FROM incidents
		     WHERE incident_number LIKE ?
		     ORDER BY LENGTH(incident_number) DESC, incident_number DESC
		     LIMIT 1`, prefix+"%").
		Scan(&incidentNumber).Error
	if err != nil {
		return 0, err
	}
	if incidentNumber == "" {
		return 0, nil
	}
	seq, ok := number.ParseSequence(incidentNumber)
	if !ok {
		return 0, nil
	}
	return seq, nil
}

func (r *repo) InsertIncident(ctx context.Context, db *gorm.DB, incident *domain.Incident) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO incidents (
			id, incident_number, title, description, category_id, subcategory_id,
			priority, severity, store_id, department_id, location_details, status,
			reporter_id, assigned_to, resolver_id, customer_affected, resolution_notes,
			sla_deadline, sla_breached, source, assigned_at, resolved_at, closed_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		incident.ID,
		incident.IncidentNumber,
		incident.Title,
		incident.Description,
		incident.CategoryID,
		incident.SubcategoryID,
		incident.Priority,
		incident.Severity,
		incident.StoreID,
		incident.DepartmentID,
		incident.LocationDetails,
		incident.Status,
		incident.ReporterID,
		incident.AssignedTo,
		incident.ResolverID,
		incident.CustomerAffected,
		incident.ResolutionNotes,
		incident.SLADeadline,
		incident.SLABreached,
		incident.Source,
		incident.AssignedAt,
		incident.ResolvedAt,
		incident.ClosedAt,
		incident.CreatedAt,
		incident.UpdatedAt,
	).Error
}

func (r *repo) SetSLADeadline(ctx context.Context, db *gorm.DB, id snowflake.ID, deadline time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE incidents SET sla_deadline = ? WHERE id = ?`,
		deadline, id,
	).Error
}

func (r *repo) InsertHistory(ctx context.Context, db *gorm.DB, entry *domain.IncidentHistory) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO incident_history (
			id, incident_id, changed_by, field_name, old_value, new_value,
			change_reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.IncidentID,
		entry.ChangedBy,
		entry.FieldName,
		entry.OldValue,
		entry.NewValue,
		entry.ChangeReason,
		entry.CreatedAt,
	).Error
}

func (r *repo) GetForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Incident, error) {
	var incident domain.Incident
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM incidents WHERE id = ?`+lockSuffix(db), id).
		Take(&incident).Error
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

func (r *repo) UpdateLifecycle(ctx context.Context, db *gorm.DB, incident *domain.Incident) error {
	return db.WithContext(ctx).Exec(
		`UPDATE incidents
		 SET status = ?, resolver_id = ?, resolution_notes = ?,
		     resolved_at = ?, closed_at = ?, updated_at = ?
		 WHERE id = ?`,
		incident.Status,
		incident.ResolverID,
		incident.ResolutionNotes,
		incident.ResolvedAt,
		incident.ClosedAt,
		incident.UpdatedAt,
		incident.ID,
	).Error
}

func (r *repo) UpdateAssignment(ctx context.Context, db *gorm.DB, incident *domain.Incident) error {
	return db.WithContext(ctx).Exec(
		`UPDATE incidents
		 SET status = ?, assigned_to = ?, assigned_at = ?, updated_at = ?
		 WHERE id = ?`,
		incident.Status,
		incident.AssignedTo,
		incident.AssignedAt,
		incident.UpdatedAt,
		incident.ID,
	).Error
}

func (r *repo) Get(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Incident, error) {
	var incident domain.Incident
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM incidents WHERE id = ?`, id).
		Take(&incident).Error
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

func (r *repo) GetByNumber(ctx context.Context, db *gorm.DB, incidentNumber string) (*domain.Incident, error) {
	var incident domain.Incident
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM incidents WHERE incident_number = ?`, strings.TrimSpace(incidentNumber)).
		Take(&incident).Error
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, req domain.ListIncidentsRequest, now time.Time) ([]domain.Incident, error) {
	var incidents []domain.Incident
	stmt := db.WithContext(ctx).Model(&domain.Incident{})

	if req.StoreID != nil {
		stmt = stmt.Where("store_id = ?", *req.StoreID)
	}
	if req.Status != nil {
		stmt = stmt.Where("status = ?", *req.Status)
	}
	if req.Priority != nil {
		stmt = stmt.Where("priority = ?", *req.Priority)
	}
	if req.AssignedTo != nil {
		stmt = stmt.Where("assigned_to = ?", *req.AssignedTo)
	}
	if req.OverdueOnly {
		stmt = stmt.Where("sla_deadline IS NOT NULL AND sla_deadline < ?", now.UTC()).
			Where("status NOT IN ?", []domain.Status{
				domain.StatusResolved,
				domain.StatusClosed,
				domain.StatusCancelled,
			})
	}

	stmt = stmt.Order("created_at desc, id desc")
	if req.Limit > 0 {
		stmt = stmt.Limit(req.Limit)
	}
	if req.Offset > 0 {
		stmt = stmt.Offset(req.Offset)
	}

	if err := stmt.Find(&incidents).Error; err != nil {
		return nil, err
	}
	return incidents, nil
}

func (r *repo) Summary(ctx context.Context, db *gorm.DB, storeID *snowflake.ID, now time.Time) (*domain.IncidentSummary, error) {
	type statusCount struct {
		Status domain.Status `gorm:"column:status"`
		Count  int64         `gorm:"column:count"`
	}

	stmt := db.WithContext(ctx).Model(&domain.Incident{})
	if storeID != nil {
		stmt = stmt.Where("store_id = ?", *storeID)
	}

	var rows []statusCount
	if err := stmt.Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	summary := &domain.IncidentSummary{ByStatus: make(map[domain.Status]int64, len(rows))}
	for _, row := range rows {
		summary.ByStatus[row.Status] = row.Count
		summary.Total += row.Count
	}

	overdueStmt := db.WithContext(ctx).Model(&domain.Incident{}).
		Where("sla_deadline IS NOT NULL AND sla_deadline < ?", now.UTC()).
		Where("status NOT IN ?", []domain.Status{
			domain.StatusResolved,
			domain.StatusClosed,
			domain.StatusCancelled,
		})
	if storeID != nil {
		overdueStmt = overdueStmt.Where("store_id = ?", *storeID)
	}
	if err := overdueStmt.Count(&summary.Overdue).Error; err != nil {
		return nil, err
	}

	return summary, nil
}

func (r *repo) ListHistory(ctx context.Context, db *gorm.DB, incidentID snowflake.ID) ([]domain.IncidentHistory, error) {
	var entries []domain.IncidentHistory
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM incident_history WHERE incident_id = ? ORDER BY created_at, id`, incidentID).
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) InsertComment(ctx context.Context, db *gorm.DB, comment *domain.IncidentComment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO incident_comments (
			id, incident_id, user_id, comment_text, is_internal, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		comment.ID,
		comment.IncidentID,
		comment.UserID,
		comment.CommentText,
		comment.IsInternal,
		comment.CreatedAt,
		comment.UpdatedAt,
	).Error
}

func (r *repo) ListComments(ctx context.Context, db *gorm.DB, incidentID snowflake.ID) ([]domain.IncidentComment, error) {
	var comments []domain.IncidentComment
	err := db.WithContext(ctx).
		Raw(`SELECT * FROM incident_comments WHERE incident_id = ? ORDER BY created_at, id`, incidentID).
		Scan(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// MarkBreached flags open incidents past their deadline in one batch.
// History rows are not written for the derived flag.
func (r *repo) MarkBreached(ctx context.Context, db *gorm.DB, now time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 200
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE incidents
		 SET sla_breached = ?, updated_at = ?
		 WHERE id IN (
			SELECT id FROM incidents
			WHERE sla_deadline IS NOT NULL
			  AND sla_deadline < ?
			  AND sla_breached = ?
			  AND status NOT IN (?, ?, ?)
			LIMIT ?
		 )`,
		true, now.UTC(), now.UTC(), false,
		domain.StatusResolved, domain.StatusClosed, domain.StatusCancelled,
		limit,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// lockSuffix appends FOR UPDATE on engines that support row locks.
// SQLite serializes writers already and rejects the clause.
func lockSuffix(db *gorm.DB) string {
	if db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return ""
	}
	return " FOR UPDATE"
}
