package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrIncidentNotFound    = errors.New("incident_not_found")
	ErrStoreNotFound       = errors.New("store_not_found")
	ErrCategoryNotFound    = errors.New("category_not_found")
	ErrSubcategoryNotFound = errors.New("subcategory_not_found")
	ErrDepartmentNotFound  = errors.New("department_not_found")
	ErrUserNotFound        = errors.New("user_not_found")
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrConflict            = errors.New("conflict")
)

// ValidationError describes a single rejected input field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates every violated field so callers can fix
// all of them in one round trip.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e))
	for _, item := range e {
		parts = append(parts, item.Error())
	}
	return strings.Join(parts, "; ")
}

// AsValidationErrors unwraps err into ValidationErrors when possible.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return verrs, true
	}
	var verr ValidationError
	if errors.As(err, &verr) {
		return ValidationErrors{verr}, true
	}
	return nil, false
}

type CreateIncidentRequest struct {
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	CategoryID       snowflake.ID  `json:"category_id"`
	SubcategoryID    *snowflake.ID `json:"subcategory_id,omitempty"`
	Priority         Priority      `json:"priority"`
	Severity         Severity      `json:"severity"`
	StoreID          *snowflake.ID `json:"store_id,omitempty"`
	DepartmentID     *snowflake.ID `json:"department_id,omitempty"`
	LocationDetails  *string       `json:"location_details,omitempty"`
	ReporterID       snowflake.ID  `json:"reporter_id"`
	CustomerAffected bool          `json:"customer_affected"`
	Source           string        `json:"source,omitempty"`
}

type TransitionRequest struct {
	IncidentID      snowflake.ID `json:"-"`
	To              Status       `json:"to"`
	Reason          *string      `json:"reason,omitempty"`
	ResolutionNotes *string      `json:"resolution_notes,omitempty"`
}

type AssignRequest struct {
	IncidentID snowflake.ID `json:"-"`
	AssigneeID snowflake.ID `json:"assignee_id"`
	Reason     *string      `json:"reason,omitempty"`
}

type AddCommentRequest struct {
	IncidentID  snowflake.ID `json:"-"`
	UserID      snowflake.ID `json:"user_id"`
	CommentText string       `json:"comment_text"`
	IsInternal  bool         `json:"is_internal"`
}

type ListIncidentsRequest struct {
	StoreID     *snowflake.ID
	Status      *Status
	Priority    *Priority
	AssignedTo  *snowflake.ID
	OverdueOnly bool
	Limit       int
	Offset      int
}

// IncidentSummary aggregates open-work counts for a store or the whole
// chain.
type IncidentSummary struct {
	Total    int64            `json:"total"`
	ByStatus map[Status]int64 `json:"by_status"`
	Overdue  int64            `json:"overdue"`
}

type Service interface {
	Create(ctx context.Context, req CreateIncidentRequest) (*Incident, error)
	Get(ctx context.Context, id snowflake.ID) (*Incident, error)
	GetByNumber(ctx context.Context, incidentNumber string) (*Incident, error)
	List(ctx context.Context, req ListIncidentsRequest) ([]Incident, error)
	Summary(ctx context.Context, storeID *snowflake.ID) (*IncidentSummary, error)
	Transition(ctx context.Context, actorID snowflake.ID, req TransitionRequest) (*Incident, error)
	Assign(ctx context.Context, actorID snowflake.ID, req AssignRequest) (*Incident, error)
	AddComment(ctx context.Context, req AddCommentRequest) (*IncidentComment, error)
	History(ctx context.Context, incidentID snowflake.ID) ([]IncidentHistory, error)
	ListComments(ctx context.Context, incidentID snowflake.ID) ([]IncidentComment, error)
	MarkBreached(ctx context.Context, now time.Time, limit int) (int64, error)
}
