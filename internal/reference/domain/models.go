// Package domain contains persistence models for retail reference data.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Country struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Code      string       `json:"code" gorm:"type:char(2);not null;uniqueIndex:ux_countries_code"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	CreatedAt time.Time    `json:"created_at,omitempty" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Country) TableName() string { return "countries" }

type City struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	CountryID snowflake.ID `json:"country_id" gorm:"not null;index"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Region    *string      `json:"region,omitempty" gorm:"type:text"`
	CreatedAt time.Time    `json:"created_at,omitempty" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (City) TableName() string { return "cities" }

// Store is a physical retail location. Code is the short uppercase
// identifier used as the incident number prefix.
type Store struct {
	ID        snowflake.ID  `json:"id" gorm:"primaryKey"`
	Code      string        `json:"code" gorm:"type:text;not null;uniqueIndex:ux_stores_code"`
	Name      string        `json:"name" gorm:"type:text;not null"`
	Address   *string       `json:"address,omitempty" gorm:"type:text"`
	CityID    *snowflake.ID `json:"city_id,omitempty" gorm:"index"`
	StoreType string        `json:"store_type" gorm:"type:text;not null;default:'supermarket'"`
	IsActive  bool          `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time     `json:"created_at,omitempty" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Store) TableName() string { return "stores" }

type Department struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	Code        string       `json:"code" gorm:"type:text;not null"`
	Name        string       `json:"name" gorm:"type:text;not null"`
	FloorNumber *int         `json:"floor_number,omitempty" gorm:"type:smallint"`
	CreatedAt   time.Time    `json:"created_at,omitempty" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Department) TableName() string { return "departments" }

// StoreDepartment links a department to the stores where it operates.
type StoreDepartment struct {
	StoreID      snowflake.ID `json:"store_id" gorm:"primaryKey"`
	DepartmentID snowflake.ID `json:"department_id" gorm:"primaryKey"`
}

func (StoreDepartment) TableName() string { return "store_departments" }

type User struct {
	ID        snowflake.ID  `json:"id" gorm:"primaryKey"`
	Username  string        `json:"username" gorm:"type:text;not null;uniqueIndex:ux_users_username"`
	Email     string        `json:"email" gorm:"type:text;not null;uniqueIndex:ux_users_email"`
	FirstName string        `json:"first_name" gorm:"type:text;not null"`
	LastName  string        `json:"last_name" gorm:"type:text;not null"`
	StoreID   *snowflake.ID `json:"store_id,omitempty" gorm:"index"`
	Role      string        `json:"role" gorm:"type:text;not null;default:'staff'"`
	IsActive  bool          `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time     `json:"created_at,omitempty" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (User) TableName() string { return "users" }

type IncidentCategory struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Code      string       `json:"code" gorm:"type:text;not null;uniqueIndex:ux_incident_categories_code"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Color     *string      `json:"color,omitempty" gorm:"type:text"`
	IsActive  bool         `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time    `json:"created_at,omitempty" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (IncidentCategory) TableName() string { return "incident_categories" }

// IncidentSubcategory carries the SLA resolution window in hours.
// Fractional values are valid; 0.5 means thirty minutes.
type IncidentSubcategory struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	CategoryID snowflake.ID `json:"category_id" gorm:"not null;index"`
	Code       string       `json:"code" gorm:"type:text;not null"`
	Name       string       `json:"name" gorm:"type:text;not null"`
	SLAHours   float64      `json:"sla_hours" gorm:"column:sla_hours;not null"`
	IsActive   bool         `json:"is_active" gorm:"not null;default:true"`
	CreatedAt  time.Time    `json:"created_at,omitempty" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (IncidentSubcategory) TableName() string { return "incident_subcategories" }
