// Package seed bootstraps reference data so a fresh install can file
// incidents without any manual setup.
package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	referencedomain "github.com/retailops/incidentd/internal/reference/domain"
	"gorm.io/gorm"
)

type storeSeed struct {
	Code     string
	Name     string
	City     string
	Type     string
	Address  string
	Managers []userSeed
}

type userSeed struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Role      string
}

type subcategorySeed struct {
	Code     string
	Name     string
	SLAHours float64
}

type categorySeed struct {
	Code          string
	Name          string
	Color         string
	Subcategories []subcategorySeed
}

var defaultStores = []storeSeed{
	{
		Code: "HEL001", Name: "Helsinki Keskusta", City: "Helsinki", Type: "hypermarket",
		Address: "Mannerheimintie 1, 00100 Helsinki",
		Managers: []userSeed{
			{Username: "a.virtanen", Email: "anna.virtanen@retailops.example", FirstName: "Anna", LastName: "Virtanen", Role: "store_manager"},
		},
	},
	{
		Code: "TRE001", Name: "Tampere Ratina", City: "Tampere", Type: "supermarket",
		Address: "Vuolteenkatu 1, 33100 Tampere",
		Managers: []userSeed{
			{Username: "m.korhonen", Email: "mikko.korhonen@retailops.example", FirstName: "Mikko", LastName: "Korhonen", Role: "store_manager"},
		},
	},
	{
		Code: "TKU001", Name: "Turku Hansa", City: "Turku", Type: "supermarket",
		Address: "Eerikinkatu 15, 20100 Turku",
	},
}

var defaultDepartments = []struct {
	Code string
	Name string
}{
	{Code: "GROC", Name: "Groceries"},
	{Code: "DAIRY", Name: "Dairy and Frozen"},
	{Code: "PRODUCE", Name: "Fruit and Vegetables"},
	{Code: "CHECKOUT", Name: "Checkout"},
	{Code: "WAREHOUSE", Name: "Warehouse"},
}

var defaultCategories = []categorySeed{
	{
		Code: "EQP", Name: "Equipment", Color: "#e67e22",
		Subcategories: []subcategorySeed{
			{Code: "FRZ", Name: "Freezer or cooler failure", SLAHours: 4},
			{Code: "POS", Name: "Checkout terminal down", SLAHours: 2},
			{Code: "HVAC", Name: "Heating or ventilation fault", SLAHours: 24},
		},
	},
	{
		Code: "SAF", Name: "Safety", Color: "#c0392b",
		Subcategories: []subcategorySeed{
			{Code: "SPL", Name: "Spill or slip hazard", SLAHours: 0.5},
			{Code: "INJ", Name: "Customer or staff injury", SLAHours: 1},
			{Code: "FIRE", Name: "Fire safety equipment fault", SLAHours: 2},
		},
	},
	{
		Code: "SEC", Name: "Security", Color: "#8e44ad",
		Subcategories: []subcategorySeed{
			{Code: "THEFT", Name: "Theft or shoplifting", SLAHours: 8},
			{Code: "ALRM", Name: "Alarm system fault", SLAHours: 4},
		},
	},
	{
		Code: "FAC", Name: "Facilities", Color: "#2980b9",
		Subcategories: []subcategorySeed{
			{Code: "PLMB", Name: "Plumbing or water leak", SLAHours: 8},
			{Code: "CLEAN", Name: "Cleaning required", SLAHours: 24},
		},
	},
}

// EnsureReferenceData seeds countries, stores, departments, incident
// categories and default users. It is idempotent; rows are looked up
// by their natural keys and only inserted when missing.
func EnsureReferenceData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		country, err := ensureCountryTx(ctx, tx, node, "FI", "Finland")
		if err != nil {
			return err
		}

		departments := make([]referencedomain.Department, 0, len(defaultDepartments))
		for _, dept := range defaultDepartments {
			ensured, err := ensureDepartmentTx(ctx, tx, node, dept.Code, dept.Name)
			if err != nil {
				return err
			}
			departments = append(departments, ensured)
		}

		for _, store := range defaultStores {
			city, err := ensureCityTx(ctx, tx, node, country.ID, store.City)
			if err != nil {
				return err
			}
			ensured, err := ensureStoreTx(ctx, tx, node, store, city.ID)
			if err != nil {
				return err
			}
			for _, dept := range departments {
				if err := ensureStoreDepartmentTx(ctx, tx, ensured.ID, dept.ID); err != nil {
					return err
				}
			}
			for _, manager := range store.Managers {
				if _, err := ensureUserTx(ctx, tx, node, manager, &ensured.ID); err != nil {
					return err
				}
			}
		}

		for _, category := range defaultCategories {
			ensured, err := ensureCategoryTx(ctx, tx, node, category)
			if err != nil {
				return err
			}
			for _, sub := range category.Subcategories {
				if err := ensureSubcategoryTx(ctx, tx, node, ensured.ID, sub); err != nil {
					return err
				}
			}
		}

		_, err = ensureUserTx(ctx, tx, node, userSeed{
			Username:  "ops.admin",
			Email:     "ops.admin@retailops.example",
			FirstName: "Ops",
			LastName:  "Admin",
			Role:      "admin",
		}, nil)
		return err
	})
}

func ensureCountryTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, code, name string) (referencedomain.Country, error) {
	var country referencedomain.Country
	err := tx.WithContext(ctx).Where("code = ?", code).First(&country).Error
	if err == nil {
		return country, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return country, err
	}
	country = referencedomain.Country{
		ID:        node.Generate(),
		Code:      strings.ToUpper(code),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(&country).Error; err != nil {
		return country, err
	}
	return country, nil
}

func ensureCityTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, countryID snowflake.ID, name string) (referencedomain.City, error) {
	var city referencedomain.City
	err := tx.WithContext(ctx).Where("country_id = ? AND name = ?", countryID, name).First(&city).Error
	if err == nil {
		return city, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return city, err
	}
	city = referencedomain.City{
		ID:        node.Generate(),
		CountryID: countryID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(&city).Error; err != nil {
		return city, err
	}
	return city, nil
}

func ensureStoreTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, seed storeSeed, cityID snowflake.ID) (referencedomain.Store, error) {
	var store referencedomain.Store
	err := tx.WithContext(ctx).Where("code = ?", seed.Code).First(&store).Error
	if err == nil {
		return store, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return store, err
	}
	address := seed.Address
	store = referencedomain.Store{
		ID:        node.Generate(),
		Code:      strings.ToUpper(seed.Code),
		Name:      seed.Name,
		Address:   &address,
		CityID:    &cityID,
		StoreType: seed.Type,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(&store).Error; err != nil {
		return store, err
	}
	return store, nil
}

func ensureDepartmentTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, code, name string) (referencedomain.Department, error) {
	var dept referencedomain.Department
	err := tx.WithContext(ctx).Where("code = ?", code).First(&dept).Error
	if err == nil {
		return dept, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dept, err
	}
	dept = referencedomain.Department{
		ID:        node.Generate(),
		Code:      code,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(&dept).Error; err != nil {
		return dept, err
	}
	return dept, nil
}

func ensureStoreDepartmentTx(ctx context.Context, tx *gorm.DB, storeID, departmentID snowflake.ID) error {
	var link referencedomain.StoreDepartment
	err := tx.WithContext(ctx).
		Where("store_id = ? AND department_id = ?", storeID, departmentID).
		First(&link).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	link = referencedomain.StoreDepartment{StoreID: storeID, DepartmentID: departmentID}
	return tx.WithContext(ctx).Create(&link).Error
}

func ensureUserTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, seed userSeed, storeID *snowflake.ID) (referencedomain.User, error) {
	var user referencedomain.User
	err := tx.WithContext(ctx).Where("username = ?", seed.Username).First(&user).Error
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return user, err
	}
	user = referencedomain.User{
		ID:        node.Generate(),
		Username:  seed.Username,
		Email:     strings.ToLower(seed.Email),
		FirstName: seed.FirstName,
		LastName:  seed.LastName,
		StoreID:   storeID,
		Role:      seed.Role,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		return user, err
	}
	return user, nil
}

func ensureCategoryTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, seed categorySeed) (referencedomain.IncidentCategory, error) {
	var category referencedomain.IncidentCategory
	err := tx.WithContext(ctx).Where("code = ?", seed.Code).First(&category).Error
	if err == nil {
		return category, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return category, err
	}
	color := seed.Color
	category = referencedomain.IncidentCategory{
		ID:        node.Generate(),
		Code:      seed.Code,
		Name:      seed.Name,
		Color:     &color,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(&category).Error; err != nil {
		return category, err
	}
	return category, nil
}

func ensureSubcategoryTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, categoryID snowflake.ID, seed subcategorySeed) error {
	var sub referencedomain.IncidentSubcategory
	err := tx.WithContext(ctx).
		Where("category_id = ? AND code = ?", categoryID, seed.Code).
		First(&sub).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	sub = referencedomain.IncidentSubcategory{
		ID:         node.Generate(),
		CategoryID: categoryID,
		Code:       seed.Code,
		Name:       seed.Name,
		SLAHours:   seed.SLAHours,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
	return tx.WithContext(ctx).Create(&sub).Error
}
