package ports

import (
	"context"
	"time"

	"github.com/pharmastock/stock-system/internal/core/domain"
)

// MedicationRepository owns the canonical collection of medications. Every
// method returns copies; absence is reported through the boolean results,
// errors are reserved for storage failures.
type MedicationRepository interface {
	// Add assigns the next identifier, stamps timestamps and stores m.
	// Identifiers start at 1 and are never reused.
	Add(ctx context.Context, m *domain.Medication) (*domain.Medication, error)
	FindByID(ctx context.Context, id int64) (*domain.Medication, bool, error)
	// FindAll returns every medication in insertion order.
	FindAll(ctx context.Context) ([]*domain.Medication, error)
	FindExpired(ctx context.Context, asOf time.Time) ([]*domain.Medication, error)
	FindByName(ctx context.Context, substr string) ([]*domain.Medication, error)
	FindByManufacturer(ctx context.Context, substr string) ([]*domain.Medication, error)
	Update(ctx context.Context, m *domain.Medication) (bool, error)
	// UpdateFields writes only the non-nil fields of patch, already validated,
	// and re-stamps UpdatedAt. Other columns keep their stored values.
	UpdateFields(ctx context.Context, id int64, patch MedicationPatch) (bool, error)
	Remove(ctx context.Context, id int64) (bool, error)
	Exists(ctx context.Context, id int64) (bool, error)
	// AdjustQuantity applies delta in a single conditional write and reports
	// false when id is unknown or the result would be negative.
	AdjustQuantity(ctx context.Context, id int64, delta int) (bool, error)
}
