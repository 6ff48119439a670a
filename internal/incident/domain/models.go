// Package domain contains persistence models and lifecycle rules for
// store incidents.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/retailops/incidentd/internal/incident/sla"
)

// Status represents incident lifecycle states.
type Status string

const (
	StatusNew        Status = "new"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status]map[Status]struct{}{
	StatusNew: {
		StatusAssigned:   {},
		StatusInProgress: {},
		StatusCancelled:  {},
	},
	StatusAssigned: {
		StatusInProgress: {},
		StatusResolved:   {},
		StatusCancelled:  {},
	},
	StatusInProgress: {
		StatusResolved:  {},
		StatusCancelled: {},
	},
	StatusResolved: {
		StatusClosed:    {},
		StatusCancelled: {},
	},
}

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusAssigned, StatusInProgress, StatusResolved, StatusClosed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// CanTransition reports whether the edge from one status to another is
// part of the lifecycle graph.
func CanTransition(from, to Status) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// Priority represents operational urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// Severity represents impact scale.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityMinor, SeverityMajor, SeverityCritical:
		return true
	default:
		return false
	}
}

// Incident is a reported store incident.
type Incident struct {
	ID               snowflake.ID  `json:"id" gorm:"primaryKey"`
	IncidentNumber   string        `json:"incident_number" gorm:"type:text;not null;uniqueIndex:ux_incidents_number"`
	Title            string        `json:"title" gorm:"type:text;not null"`
	Description      string        `json:"description" gorm:"type:text;not null"`
	CategoryID       snowflake.ID  `json:"category_id" gorm:"not null;index"`
	SubcategoryID    *snowflake.ID `json:"subcategory_id,omitempty" gorm:"index"`
	Priority         Priority      `json:"priority" gorm:"type:text;not null"`
	Severity         Severity      `json:"severity" gorm:"type:text;not null"`
	StoreID          *snowflake.ID `json:"store_id,omitempty" gorm:"index"`
	DepartmentID     *snowflake.ID `json:"department_id,omitempty" gorm:"index"`
	LocationDetails  *string       `json:"location_details,omitempty" gorm:"type:text"`
	Status           Status        `json:"status" gorm:"type:text;not null;default:'new';index"`
	ReporterID       snowflake.ID  `json:"reporter_id" gorm:"not null;index"`
	AssignedTo       *snowflake.ID `json:"assigned_to,omitempty" gorm:"index"`
	ResolverID       *snowflake.ID `json:"resolver_id,omitempty"`
	CustomerAffected bool          `json:"customer_affected" gorm:"not null;default:false"`
	ResolutionNotes  *string       `json:"resolution_notes,omitempty" gorm:"type:text"`
	SLADeadline      *time.Time    `json:"sla_deadline,omitempty" gorm:"column:sla_deadline;index"`
	SLABreached      bool          `json:"sla_breached" gorm:"column:sla_breached;not null;default:false"`
	Source           string        `json:"source" gorm:"type:text;not null;default:'api'"`
	AssignedAt       *time.Time    `json:"assigned_at,omitempty"`
	ResolvedAt       *time.Time    `json:"resolved_at,omitempty"`
	ClosedAt         *time.Time    `json:"closed_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time     `json:"updated_at" gorm:"not null"`
}

func (Incident) TableName() string { return "incidents" }

// IsOverdue reports whether the incident is past its SLA deadline and
// still open. The flag is never persisted here; MarkBreached does that.
func (i *Incident) IsOverdue(now time.Time) bool {
	return sla.Overdue(i.SLADeadline, string(i.Status), now)
}

// IncidentHistory is the append-only change log. Every status change
// writes exactly one row in the same transaction.
type IncidentHistory struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	IncidentID   snowflake.ID `json:"incident_id" gorm:"not null;index"`
	ChangedBy    snowflake.ID `json:"changed_by" gorm:"not null"`
	FieldName    string       `json:"field_name" gorm:"type:text;not null"`
	OldValue     *string      `json:"old_value,omitempty" gorm:"type:text"`
	NewValue     *string      `json:"new_value,omitempty" gorm:"type:text"`
	ChangeReason *string      `json:"change_reason,omitempty" gorm:"type:text"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null"`
}

func (IncidentHistory) TableName() string { return "incident_history" }

type IncidentComment struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	IncidentID  snowflake.ID `json:"incident_id" gorm:"not null;index"`
	UserID      snowflake.ID `json:"user_id" gorm:"not null"`
	CommentText string       `json:"comment_text" gorm:"type:text;not null"`
	IsInternal  bool         `json:"is_internal" gorm:"not null;default:false"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`
}

func (IncidentComment) TableName() string { return "incident_comments" }
