package db

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm_translated", gorm.ErrDuplicatedKey, true},
		{"wrapped_gorm", fmt.Errorf("insert incident: %w", gorm.ErrDuplicatedKey), true},
		{"postgres", errors.New(`ERROR: duplicate key value violates unique constraint "ux_incidents_number" (SQLSTATE 23505)`), true},
		{"mysql", errors.New("Error 1062 (23000): Duplicate entry 'HEL001-2025-0001' for key 'incidents.incident_number'"), true},
		{"sqlite", errors.New("UNIQUE constraint failed: incidents.incident_number"), true},
		{"not_found", gorm.ErrRecordNotFound, false},
		{"other", errors.New("connection refused"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsDuplicateKeyErr(tc.err); got != tc.want {
				t.Fatalf("IsDuplicateKeyErr(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
