package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists incidents. Callers pass the handle explicitly so
// a service transaction and a plain read share the same code path.
type Repository interface {
	MaxSequence(ctx context.Context, db *gorm.DB, prefix string) (int64, error)
	InsertIncident(ctx context.Context, db *gorm.DB, incident *Incident) error
	SetSLADeadline(ctx context.Context, db *gorm.DB, id snowflake.ID, deadline time.Time) error
	InsertHistory(ctx context.Context, db *gorm.DB, entry *IncidentHistory) error
	GetForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Incident, error)
	UpdateLifecycle(ctx context.Context, db *gorm.DB, incident *Incident) error
	UpdateAssignment(ctx context.Context, db *gorm.DB, incident *Incident) error
	Get(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Incident, error)
	GetByNumber(ctx context.Context, db *gorm.DB, incidentNumber string) (*Incident, error)
	List(ctx context.Context, db *gorm.DB, req ListIncidentsRequest, now time.Time) ([]Incident, error)
	Summary(ctx context.Context, db *gorm.DB, storeID *snowflake.ID, now time.Time) (*IncidentSummary, error)
	ListHistory(ctx context.Context, db *gorm.DB, incidentID snowflake.ID) ([]IncidentHistory, error)
	InsertComment(ctx context.Context, db *gorm.DB, comment *IncidentComment) error
	ListComments(ctx context.Context, db *gorm.DB, incidentID snowflake.ID) ([]IncidentComment, error)
	MarkBreached(ctx context.Context, db *gorm.DB, now time.Time, limit int) (int64, error)
}
