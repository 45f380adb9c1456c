package ports

import (
	"context"

	"github.com/pharmastock/stock-system/internal/core/domain"
)

// RegisterMedicationInput carries the fields of a new medication. Empty
// strings count as missing; a nil Quantity defaults to zero.
type RegisterMedicationInput struct {
	Name         string
	Batch        string
	Expiry       string
	Manufacturer string
	Quantity     *int
}

// MedicationPatch lists the fields to change. A nil field is left untouched,
// a non-nil field is applied and validated, including empty or zero values.
type MedicationPatch struct {
	Name         *string
	Batch        *string
	Expiry       *string
	Manufacturer *string
	Quantity     *int
}

// Direction selects whether AdjustQuantity adds or removes stock.
type Direction string

const (
	Increase Direction = "increase"
	Decrease Direction = "decrease"
)

// InventoryReport aggregates the whole stock.
type InventoryReport struct {
	TotalMedications   int                          `json:"total_medications"`
	ExpiredMedications int                          `json:"expired_medications"`
	TotalQuantity      int                          `json:"total_quantity"`
	ByManufacturer     map[string][]domain.Snapshot `json:"by_manufacturer"`
	// Manufacturers lists the ByManufacturer keys in first-seen order.
	Manufacturers []string `json:"manufacturers"`
}

// InventoryService defines the stock use cases.
type InventoryService interface {
	RegisterMedication(ctx context.Context, in RegisterMedicationInput) (*domain.Medication, error)
	GetMedication(ctx context.Context, id int64) (*domain.Medication, bool, error)
	ListMedications(ctx context.Context, activeOnly bool) ([]*domain.Medication, error)
	ListExpired(ctx context.Context) ([]*domain.Medication, error)
	SearchByName(ctx context.Context, substr string) ([]*domain.Medication, error)
	SearchByManufacturer(ctx context.Context, substr string) ([]*domain.Medication, error)
	UpdateMedication(ctx context.Context, id int64, patch MedicationPatch) (bool, error)
	AdjustQuantity(ctx context.Context, id int64, amount int, dir Direction) (bool, error)
	SetQuantity(ctx context.Context, id int64, quantity int) (bool, error)
	RemoveMedication(ctx context.Context, id int64) (bool, error)
	GenerateReport(ctx context.Context) (*InventoryReport, error)
	// Snapshot renders m against the service clock.
	Snapshot(m *domain.Medication) domain.Snapshot
}

// IdempotencyStore binds client-supplied keys to the medication they created.
// A key is claimed before the insert and bound to the new id afterwards.
type IdempotencyStore interface {
	// Claim reserves key. When the key is already taken claimed is false and
	// id is the bound medication, or 0 while the first request is running.
	Claim(ctx context.Context, key string) (claimed bool, id int64, err error)
	Bind(ctx context.Context, key string, id int64) error
	// Release frees a claimed key whose registration failed.
	Release(ctx context.Context, key string) error
}
