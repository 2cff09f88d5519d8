package directory

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table. The directory is read-mostly from this
// core's perspective; demographic CRUD lives with external callers.
type Patient struct {
	ID           uuid.UUID `db:"id" json:"id"`
	RecordNumber *string   `db:"record_number" json:"record_number,omitempty"`
	LegacyRef    *string   `db:"legacy_ref" json:"legacy_ref,omitempty"`
	FullName     string    `db:"full_name" json:"full_name"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Specialist maps to the specialists table.
type Specialist struct {
	ID           uuid.UUID `db:"id" json:"id"`
	RecordNumber *string   `db:"record_number" json:"record_number,omitempty"`
	LegacyRef    *string   `db:"legacy_ref" json:"legacy_ref,omitempty"`
	FullName     string    `db:"full_name" json:"full_name"`
	Specialty    *string   `db:"specialty" json:"specialty,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
