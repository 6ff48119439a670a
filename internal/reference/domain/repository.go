package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	GetStore(ctx context.Context, id snowflake.ID) (*Store, error)
	GetStoreByCode(ctx context.Context, code string) (*Store, error)
	ListStores(ctx context.Context) ([]Store, error)
	GetDepartment(ctx context.Context, id snowflake.ID) (*Department, error)
	ListDepartmentsByStore(ctx context.Context, storeID snowflake.ID) ([]Department, error)
	GetUser(ctx context.Context, id snowflake.ID) (*User, error)
	GetCategory(ctx context.Context, id snowflake.ID) (*IncidentCategory, error)
	ListCategories(ctx context.Context) ([]IncidentCategory, error)
	GetSubcategory(ctx context.Context, id snowflake.ID) (*IncidentSubcategory, error)
	ListSubcategoriesByCategory(ctx context.Context, categoryID snowflake.ID) ([]IncidentSubcategory, error)
}
