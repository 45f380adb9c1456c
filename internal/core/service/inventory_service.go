package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pharmastock/stock-system/internal/core/domain"
	"github.com/pharmastock/stock-system/internal/core/ports"
)

type InventoryService struct {
	repo   ports.MedicationRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewInventoryService(repo ports.MedicationRepository, logger zerolog.Logger) *InventoryService {
	return &InventoryService{repo: repo, logger: logger, now: time.Now}
}

// RegisterMedication validates the input, builds the entity and stores it.
func (s *InventoryService) RegisterMedication(ctx context.Context, in ports.RegisterMedicationInput) (*domain.Medication, error) {
	required := []struct{ field, value string }{
		{"name", in.Name},
		{"batch", in.Batch},
		{"expiry", in.Expiry},
		{"manufacturer", in.Manufacturer},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, &domain.ValidationError{Field: r.field, Reason: "required field missing"}
		}
	}

	quantity := 0
	if in.Quantity != nil {
		quantity = *in.Quantity
	}

	m, err := domain.NewMedication(domain.MedicationFields{
		Name:         in.Name,
		Batch:        in.Batch,
		Expiry:       in.Expiry,
		Manufacturer: in.Manufacturer,
		Quantity:     quantity,
	}, s.now())
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.Add(ctx, m)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to register medication")
		return nil, err
	}

	s.event(ctx, s.logger.Info()).
		Int64("medication_id", stored.ID()).
		Str("name", stored.Name()).
		Str("batch", stored.Batch()).
		Msg("medication registered")
	return stored, nil
}

func (s *InventoryService) GetMedication(ctx context.Context, id int64) (*domain.Medication, bool, error) {
	return s.repo.FindByID(ctx, id)
}

// ListMedications returns all medications, or only the unexpired ones when
// activeOnly is set.
func (s *InventoryService) ListMedications(ctx context.Context, activeOnly bool) ([]*domain.Medication, error) {
	all, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if !activeOnly {
		return all, nil
	}

	now := s.now()
	active := make([]*domain.Medication, 0, len(all))
	for _, m := range all {
		if !m.IsExpiredAt(now) {
			active = append(active, m)
		}
	}
	return active, nil
}

func (s *InventoryService) ListExpired(ctx context.Context) ([]*domain.Medication, error) {
	return s.repo.FindExpired(ctx, s.now())
}

func (s *InventoryService) SearchByName(ctx context.Context, substr string) ([]*domain.Medication, error) {
	return s.repo.FindByName(ctx, substr)
}

func (s *InventoryService) SearchByManufacturer(ctx context.Context, substr string) ([]*domain.Medication, error) {
	return s.repo.FindByManufacturer(ctx, substr)
}

// UpdateMedication applies the non-nil fields of patch. Every field is
// validated on a copy first, so a rejected patch leaves the stored record
// untouched. Only the patched columns are written, which keeps a concurrent
// AdjustQuantity intact when the quantity is not part of the patch.
func (s *InventoryService) UpdateMedication(ctx context.Context, id int64, patch ports.MedicationPatch) (bool, error) {
	current, found, err := s.repo.FindByID(ctx, id)
	if err != nil || !found {
		return false, err
	}

	m := current.Clone()
	var changes ports.MedicationPatch
	if patch.Name != nil {
		if err := m.SetName(*patch.Name); err != nil {
			return false, err
		}
		changes.Name = ptr(m.Name())
	}
	if patch.Batch != nil {
		if err := m.SetBatch(*patch.Batch); err != nil {
			return false, err
		}
		changes.Batch = ptr(m.Batch())
	}
	if patch.Expiry != nil {
		if err := m.SetExpiry(*patch.Expiry); err != nil {
			return false, err
		}
		changes.Expiry = ptr(m.Expiry())
	}
	if patch.Manufacturer != nil {
		if err := m.SetManufacturer(*patch.Manufacturer); err != nil {
			return false, err
		}
		changes.Manufacturer = ptr(m.Manufacturer())
	}
	if patch.Quantity != nil {
		if err := m.SetQuantity(*patch.Quantity); err != nil {
			return false, err
		}
		changes.Quantity = ptr(m.Quantity())
	}

	ok, err := s.repo.UpdateFields(ctx, id, changes)
	if err != nil {
		return false, fmt.Errorf("update medication %d: %w", id, err)
	}
	if ok {
		s.event(ctx, s.logger.Info()).Int64("medication_id", id).Msg("medication updated")
	}
	return ok, nil
}

// AdjustQuantity adds or removes amount units. A decrease larger than the
// current stock fails without changing anything.
func (s *InventoryService) AdjustQuantity(ctx context.Context, id int64, amount int, dir ports.Direction) (bool, error) {
	if amount < 0 {
		return false, &domain.ValidationError{Field: "amount", Reason: "must not be negative"}
	}

	var delta int
	switch dir {
	case ports.Increase:
		delta = amount
	case ports.Decrease:
		delta = -amount
	default:
		return false, &domain.ValidationError{Field: "direction", Reason: "must be increase or decrease"}
	}

	ok, err := s.repo.AdjustQuantity(ctx, id, delta)
	if err != nil {
		return false, fmt.Errorf("adjust quantity of medication %d: %w", id, err)
	}

	level := zerolog.InfoLevel
	if !ok {
		level = zerolog.WarnLevel
	}
	s.event(ctx, s.logger.WithLevel(level)).
		Int64("medication_id", id).
		Str("direction", string(dir)).
		Int("amount", amount).
		Bool("applied", ok).
		Msg("stock adjustment")
	return ok, nil
}

// SetQuantity overwrites the stock count of a medication.
func (s *InventoryService) SetQuantity(ctx context.Context, id int64, quantity int) (bool, error) {
	if err := domain.ValidateQuantity(quantity); err != nil {
		return false, err
	}
	return s.UpdateMedication(ctx, id, ports.MedicationPatch{Quantity: &quantity})
}

func (s *InventoryService) RemoveMedication(ctx context.Context, id int64) (bool, error) {
	ok, err := s.repo.Remove(ctx, id)
	if err != nil {
		return false, fmt.Errorf("remove medication %d: %w", id, err)
	}
	if ok {
		s.event(ctx, s.logger.Info()).Int64("medication_id", id).Msg("medication removed")
	}
	return ok, nil
}

// GenerateReport summarises the stock and groups snapshots by manufacturer,
// keeping insertion order inside every group. Every figure comes from one
// read of the collection.
func (s *InventoryService) GenerateReport(ctx context.Context) (*ports.InventoryReport, error) {
	now := s.now()
	all, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &ports.InventoryReport{
		TotalMedications: len(all),
		ByManufacturer:   make(map[string][]domain.Snapshot),
		Manufacturers:    []string{},
	}
	for _, m := range all {
		snap := m.Snapshot(now)
		if snap.Expired {
			report.ExpiredMedications++
		}
		report.TotalQuantity += m.Quantity()
		key := m.Manufacturer()
		if _, seen := report.ByManufacturer[key]; !seen {
			report.Manufacturers = append(report.Manufacturers, key)
		}
		report.ByManufacturer[key] = append(report.ByManufacturer[key], snap)
	}
	return report, nil
}

func (s *InventoryService) Snapshot(m *domain.Medication) domain.Snapshot {
	return m.Snapshot(s.now())
}

// event tags a log event with the acting principal, when the request has one.
func (s *InventoryService) event(ctx context.Context, e *zerolog.Event) *zerolog.Event {
	if p, ok := domain.PrincipalFrom(ctx); ok {
		e = e.Str("actor", p.Username)
	}
	return e
}

func ptr[T any](v T) *T { return &v }
