package reference

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/retailops/incidentd/internal/reference/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) GetStore(ctx context.Context, id snowflake.ID) (*domain.Store, error) {
	var store domain.Store
	err := r.db.WithContext(ctx).
		Raw(`SELECT id, code, name, address, city_id, store_type, is_active, created_at FROM stores WHERE id = ?`, id).
		Take(&store).Error
	if err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *repository) GetStoreByCode(ctx context.Context, code string) (*domain.Store, error) {
	var store domain.Store
	err := r.db.WithContext(ctx).
		Raw(`SELECT id, code, name, address, city_id, store_type, is_active, created_at FROM stores WHERE code = ?`, code).
		Take(&store).Error
	if err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *repository) ListStores(ctx context.Context) ([]domain.Store, error) {
	var stores []domain.Store
	err := r.db.WithContext(ctx).
		Raw(`SELECT id, code, name, address, city_id, store_type, is_active, created_at FROM stores WHERE is_active = true ORDER BY code`).
		Scan(&stores).Error
	if err != nil {
		return nil, err
	}
	return stores, nil
}

func (r *repository) GetDepartment(ctx context.Context, id snowflake.ID) (*domain.Department, error) {
	var department domain.Department
	err := r.db.WithContext(ctx).
		Raw(`SELECT id, code, name, floor_number, created_at FROM departments WHERE id = ?`, id).
		Take(&department).Error
	if err != nil {
		return nil, err
	}
	return &department, nil
}

func (r *repository) ListDepartmentsByStore(ctx context.Context, storeID snowflake.ID) ([]domain.Department, error) {
	var departments []domain.Department
	err := r.db.WithContext(ctx).
		Raw(`
			SELECT d.id, d.code, d.name, d.floor_number, d.created_at
			FROM departments d
			JOIN store_departments sd ON sd.department_id = d.id
			WHERE sd.store_id = ?
			ORDER BY d.name`, storeID).
		Scan(&departments).Error
	if err != nil {
		return nil, err
	}
	return departments, nil
}

func (r *repository) GetUser(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).
		Raw(`SELECT id, username, email, first_name, last_name, store_id, role, is_active, created_at FROM users WHERE id = ?`, id).
		Take(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) GetCategory(ctx context.Context, id snowflake.ID) (*domain.IncidentCategory, error) {
	var category domain.IncidentCategory
	err := r.db.WithContext(ctx).
		Raw(`SELECT id, code, name, color, is_active, created_at FROM incident_categories WHERE id = ?`, id).
		Take(&category).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *repository) ListCategories(ctx context.Context) ([]domain.IncidentCategory, error) {
	var categories []domain.IncidentCategory
	err := r.db.WithContext(ctx).
		Raw(`SELECT id, code, name, color, is_active, created_at FROM incident_categories WHERE is_active = true ORDER BY name`).
		Scan(&categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *repository) GetSubcategory(ctx context.Context, id snowflake.ID) (*domain.IncidentSubcategory, error) {
	var subcategory domain.IncidentSubcategory
	err := r.db.WithContext(ctx).
		Raw(`SELECT id, category_id, code, name, sla_hours, is_active, created_at FROM incident_subcategories WHERE id = ?`, id).
		Take(&subcategory).Error
	if err != nil {
		return nil, err
	}
	return &subcategory, nil
}

func (r *repository) ListSubcategoriesByCategory(ctx context.Context, categoryID snowflake.ID) ([]domain.IncidentSubcategory, error) {
	var subcategories []domain.IncidentSubcategory
	err := r.db.WithContext(ctx).
		Raw(`
			SELECT id, category_id, code, name, sla_hours, is_active, created_at
			FROM incident_subcategories
			WHERE category_id = ? AND is_active = true
			ORDER BY name`, categoryID).
		Scan(&subcategories).Error
	if err != nil {
		return nil, err
	}
	return subcategories, nil
}

// IsNotFound reports whether a lookup failed because the row is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
