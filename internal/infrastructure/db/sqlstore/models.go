package sqlstore

import (
	"time"

	"github.com/pharmastock/stock-system/internal/core/domain"
)

type userRow struct {
	Username string `gorm:"column:username;primaryKey;size:100"`
	Password string `gorm:"column:password;size:255;not null"`
	Role     string `gorm:"column:role;size:20;not null"`
}

func (userRow) TableName() string { return "users" }

type medicationRow struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name         string `gorm:"column:name;size:100;not null"`
	Batch        string `gorm:"column:batch;size:100;not null"`
	Expiry       string `gorm:"column:expiry;size:10;not null"`
	Manufacturer string `gorm:"column:manufacturer;size:255;not null"`
	Quantity     int    `gorm:"column:quantity;not null;check:chk_medications_quantity,quantity >= 0"`
	CreatedOn    string `gorm:"column:created_at;size:19"`
	LastUpdated  string `gorm:"column:updated_at;size:19"`
}

func (medicationRow) TableName() string { return "medications" }

func toMedicationRow(m *domain.Medication) medicationRow {
	return medicationRow{
		ID:           m.ID(),
		Name:         m.Name(),
		Batch:        m.Batch(),
		Expiry:       m.Expiry(),
		Manufacturer: m.Manufacturer(),
		Quantity:     m.Quantity(),
		CreatedOn:    formatTimestamp(m.CreatedAt()),
		LastUpdated:  formatTimestamp(m.UpdatedAt()),
	}
}

func (r medicationRow) toDomain() *domain.Medication {
	return domain.RestoreMedication(domain.MedicationRecord{
		ID:           r.ID,
		Name:         r.Name,
		Batch:        r.Batch,
		Expiry:       r.Expiry,
		Manufacturer: r.Manufacturer,
		Quantity:     r.Quantity,
		CreatedAt:    parseTimestamp(r.CreatedOn),
		UpdatedAt:    parseTimestamp(r.LastUpdated),
	})
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(domain.TimestampLayout)
}

// parseTimestamp tolerates empty or foreign values and returns the zero time.
func parseTimestamp(s string) time.Time {
	t, err := time.ParseInLocation(domain.TimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
