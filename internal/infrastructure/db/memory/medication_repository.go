// Package memory provides process-local repositories. State is lost on exit;
// they back tests and the STORAGE_DRIVER=memory mode.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pharmastock/stock-system/internal/core/domain"
	"github.com/pharmastock/stock-system/internal/core/ports"
)

// MedicationRepository keeps medications in an insertion-ordered slice.
type MedicationRepository struct {
	mu     sync.RWMutex
	items  []*domain.Medication
	nextID int64
	now    func() time.Time
}

func NewMedicationRepository() *MedicationRepository {
	return &MedicationRepository{nextID: 1, now: time.Now}
}

func (r *MedicationRepository) Add(_ context.Context, m *domain.Medication) (*domain.Medication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := m.Clone()
	if err := stored.AssignID(r.nextID); err != nil {
		return nil, err
	}
	r.nextID++
	stored.Touch(r.now())
	r.items = append(r.items, stored)
	return stored.Clone(), nil
}

func (r *MedicationRepository) FindByID(_ context.Context, id int64) (*domain.Medication, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(id); i >= 0 {
		return r.items[i].Clone(), true, nil
	}
	return nil, false, nil
}

func (r *MedicationRepository) FindAll(_ context.Context) ([]*domain.Medication, error) {
	return r.filter(func(*domain.Medication) bool { return true }), nil
}

func (r *MedicationRepository) FindExpired(_ context.Context, asOf time.Time) ([]*domain.Medication, error) {
	return r.filter(func(m *domain.Medication) bool { return m.IsExpiredAt(asOf) }), nil
}

func (r *MedicationRepository) FindByName(_ context.Context, substr string) ([]*domain.Medication, error) {
	return r.filter(func(m *domain.Medication) bool { return domain.ContainsFold(m.Name(), substr) }), nil
}

func (r *MedicationRepository) FindByManufacturer(_ context.Context, substr string) ([]*domain.Medication, error) {
	return r.filter(func(m *domain.Medication) bool { return domain.ContainsFold(m.Manufacturer(), substr) }), nil
}

func (r *MedicationRepository) Update(_ context.Context, m *domain.Medication) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(m.ID())
	if i < 0 {
		return false, nil
	}
	stored := m.Clone()
	stored.Touch(r.now())
	r.items[i] = stored
	return true, nil
}

func (r *MedicationRepository) UpdateFields(_ context.Context, id int64, patch ports.MedicationPatch) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false, nil
	}
	stored := r.items[i].Clone()
	if err := applyPatch(stored, patch); err != nil {
		return false, err
	}
	stored.Touch(r.now())
	r.items[i] = stored
	return true, nil
}

func (r *MedicationRepository) Remove(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false, nil
	}
	r.items = append(r.items[:i], r.items[i+1:]...)
	return true, nil
}

func (r *MedicationRepository) Exists(_ context.Context, id int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexOf(id) >= 0, nil
}

func (r *MedicationRepository) AdjustQuantity(_ context.Context, id int64, delta int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false, nil
	}
	stored := r.items[i].Clone()
	if err := stored.SetQuantity(stored.Quantity() + delta); err != nil {
		return false, nil
	}
	stored.Touch(r.now())
	r.items[i] = stored
	return true, nil
}

func (r *MedicationRepository) indexOf(id int64) int {
	for i, m := range r.items {
		if m.ID() == id {
			return i
		}
	}
	return -1
}

func (r *MedicationRepository) filter(keep func(*domain.Medication) bool) []*domain.Medication {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Medication, 0, len(r.items))
	for _, m := range r.items {
		if keep(m) {
			out = append(out, m.Clone())
		}
	}
	return out
}

func applyPatch(m *domain.Medication, p ports.MedicationPatch) error {
	if p.Name != nil {
		if err := m.SetName(*p.Name); err != nil {
			return err
		}
	}
	if p.Batch != nil {
		if err := m.SetBatch(*p.Batch); err != nil {
			return err
		}
	}
	if p.Expiry != nil {
		if err := m.SetExpiry(*p.Expiry); err != nil {
			return err
		}
	}
	if p.Manufacturer != nil {
		if err := m.SetManufacturer(*p.Manufacturer); err != nil {
			return err
		}
	}
	if p.Quantity != nil {
		if err := m.SetQuantity(*p.Quantity); err != nil {
			return err
		}
	}
	return nil
}
