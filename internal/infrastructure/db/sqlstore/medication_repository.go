package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pharmastock/stock-system/internal/core/domain"
	"github.com/pharmastock/stock-system/internal/core/ports"
)

type MedicationRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewMedicationRepository(db *gorm.DB) *MedicationRepository {
	return &MedicationRepository{db: db, now: time.Now}
}

// stamp returns the current time at the precision the timestamp columns keep.
func (r *MedicationRepository) stamp() time.Time {
	return r.now().Local().Truncate(time.Second)
}

func (r *MedicationRepository) Add(ctx context.Context, m *domain.Medication) (*domain.Medication, error) {
	stored := m.Clone()
	stored.Touch(r.stamp())

	row := toMedicationRow(stored)
	row.ID = 0
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("insert medication: %w", err)
	}
	if err := stored.AssignID(row.ID); err != nil {
		return nil, err
	}
	return stored, nil
}

func (r *MedicationRepository) FindByID(ctx context.Context, id int64) (*domain.Medication, bool, error) {
	var row medicationRow
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find medication %d: %w", id, err)
	}
	return row.toDomain(), true, nil
}

func (r *MedicationRepository) FindAll(ctx context.Context) ([]*domain.Medication, error) {
	return r.load(ctx, func(*domain.Medication) bool { return true })
}

func (r *MedicationRepository) FindExpired(ctx context.Context, asOf time.Time) ([]*domain.Medication, error) {
	return r.load(ctx, func(m *domain.Medication) bool { return m.IsExpiredAt(asOf) })
}

// FindByName matches in Go rather than with LIKE so case folding behaves the
// same on every dialect, accented names included.
func (r *MedicationRepository) FindByName(ctx context.Context, substr string) ([]*domain.Medication, error) {
	return r.load(ctx, func(m *domain.Medication) bool { return domain.ContainsFold(m.Name(), substr) })
}

func (r *MedicationRepository) FindByManufacturer(ctx context.Context, substr string) ([]*domain.Medication, error) {
	return r.load(ctx, func(m *domain.Medication) bool { return domain.ContainsFold(m.Manufacturer(), substr) })
}

func (r *MedicationRepository) Update(ctx context.Context, m *domain.Medication) (bool, error) {
	res := r.db.WithContext(ctx).Model(&medicationRow{}).Where("id = ?", m.ID()).Updates(map[string]interface{}{
		"name":         m.Name(),
		"batch":        m.Batch(),
		"expiry":       m.Expiry(),
		"manufacturer": m.Manufacturer(),
		"quantity":     m.Quantity(),
		"updated_at":   formatTimestamp(r.stamp()),
	})
	if res.Error != nil {
		return false, fmt.Errorf("update medication %d: %w", m.ID(), res.Error)
	}
	if res.RowsAffected == 0 {
		// MySQL reports zero affected rows when nothing changed
		return r.Exists(ctx, m.ID())
	}
	return true, nil
}

func (r *MedicationRepository) UpdateFields(ctx context.Context, id int64, patch ports.MedicationPatch) (bool, error) {
	cols := map[string]interface{}{"updated_at": formatTimestamp(r.stamp())}
	if patch.Name != nil {
		cols["name"] = *patch.Name
	}
	if patch.Batch != nil {
		cols["batch"] = *patch.Batch
	}
	if patch.Expiry != nil {
		cols["expiry"] = *patch.Expiry
	}
	if patch.Manufacturer != nil {
		cols["manufacturer"] = *patch.Manufacturer
	}
	if patch.Quantity != nil {
		cols["quantity"] = *patch.Quantity
	}

	res := r.db.WithContext(ctx).Model(&medicationRow{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return false, fmt.Errorf("update medication %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return r.Exists(ctx, id)
	}
	return true, nil
}

func (r *MedicationRepository) Remove(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&medicationRow{})
	if res.Error != nil {
		return false, fmt.Errorf("delete medication %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *MedicationRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&medicationRow{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("count medication %d: %w", id, err)
	}
	return n > 0, nil
}

// AdjustQuantity guards the new value in the WHERE clause so concurrent
// decrements cannot drive the stock below zero.
func (r *MedicationRepository) AdjustQuantity(ctx context.Context, id int64, delta int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&medicationRow{}).
		Where("id = ? AND quantity + ? >= 0", id, delta).
		Updates(map[string]interface{}{
			"quantity":   gorm.Expr("quantity + ?", delta),
			"updated_at": formatTimestamp(r.stamp()),
		})
	if res.Error != nil {
		return false, fmt.Errorf("adjust quantity of medication %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 && delta == 0 {
		return r.Exists(ctx, id)
	}
	return res.RowsAffected > 0, nil
}

func (r *MedicationRepository) load(ctx context.Context, keep func(*domain.Medication) bool) ([]*domain.Medication, error) {
	var rows []medicationRow
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}

	out := make([]*domain.Medication, 0, len(rows))
	for _, row := range rows {
		if m := row.toDomain(); keep(m) {
			out = append(out, m)
		}
	}
	return out, nil
}
