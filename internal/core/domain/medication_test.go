package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var refNow = time.Date(2026, time.October, 19, 10, 30, 0, 0, time.UTC)

func validFields() MedicationFields {
	return MedicationFields{
		Name:         "Dipirona Monoidratada 500mg",
		Batch:        "A1020",
		Expiry:       "10/12/2026",
		Manufacturer: "Medley",
		Quantity:     200,
	}
}

func TestNewMedication_Valid(t *testing.T) {
	m, err := NewMedication(validFields(), refNow)
	if err != nil {
		t.Fatalf("NewMedication returned error: %v", err)
	}
	if m.ID() != 0 {
		t.Fatalf("expected unassigned id, got %d", m.ID())
	}
	if m.Expiry() != "10/12/2026" || m.Quantity() != 200 {
		t.Fatalf("unexpected fields: %+v", m.Record())
	}
}

func TestNewMedication_TrimsText(t *testing.T) {
	f := validFields()
	f.Name = "  Paracetamol 750mg  "
	f.Manufacturer = " EMS "

	m, err := NewMedication(f, refNow)
	if err != nil {
		t.Fatalf("NewMedication returned error: %v", err)
	}
	if m.Name() != "Paracetamol 750mg" || m.Manufacturer() != "EMS" {
		t.Fatalf("text not trimmed: %q %q", m.Name(), m.Manufacturer())
	}
}

func TestNewMedication_Rejects(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*MedicationFields)
		field string
	}{
		{"empty name", func(f *MedicationFields) { f.Name = "   " }, "name"},
		{"long name", func(f *MedicationFields) { f.Name = strings.Repeat("a", 101) }, "name"},
		{"empty batch", func(f *MedicationFields) { f.Batch = "" }, "batch"},
		{"empty manufacturer", func(f *MedicationFields) { f.Manufacturer = "" }, "manufacturer"},
		{"iso date", func(f *MedicationFields) { f.Expiry = "2026-12-10" }, "expiry"},
		{"impossible date", func(f *MedicationFields) { f.Expiry = "31/02/2027" }, "expiry"},
		{"past date", func(f *MedicationFields) { f.Expiry = "15/01/2024" }, "expiry"},
		{"today", func(f *MedicationFields) { f.Expiry = "19/10/2026" }, "expiry"},
		{"negative quantity", func(f *MedicationFields) { f.Quantity = -1 }, "quantity"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := validFields()
			tc.edit(&f)

			_, err := NewMedication(f, refNow)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("expected error on %s, got %v", tc.field, err)
			}
		})
	}
}

func TestNewMedication_NameAtLimit(t *testing.T) {
	f := validFields()
	f.Name = strings.Repeat("é", MaxNameLength)
	if _, err := NewMedication(f, refNow); err != nil {
		t.Fatalf("100 characters should be accepted: %v", err)
	}
}

func TestImportMedication_AllowsPastExpiry(t *testing.T) {
	f := validFields()
	f.Expiry = "15/01/2024"

	m, err := ImportMedication(f)
	if err != nil {
		t.Fatalf("ImportMedication returned error: %v", err)
	}
	if !m.IsExpiredAt(refNow) {
		t.Fatalf("expected 15/01/2024 to be expired")
	}
}

func TestIsExpiredAt_Boundary(t *testing.T) {
	m := RestoreMedication(MedicationRecord{Expiry: "20/10/2026"})

	if m.IsExpiredAt(time.Date(2026, time.October, 19, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("must not be expired the day before")
	}
	if !m.IsExpiredAt(time.Date(2026, time.October, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("must be expired from midnight of the expiry day")
	}
}

func TestIsExpiredAt_MalformedDate(t *testing.T) {
	m := RestoreMedication(MedicationRecord{Expiry: "not a date"})
	if m.IsExpiredAt(refNow) {
		t.Fatalf("malformed dates are reported as not expired")
	}
	if got := m.ExpiryStatusAt(refNow); got != ExpiryUnknown {
		t.Fatalf("expected unknown status, got %s", got)
	}
}

func TestExpiryStatusAt(t *testing.T) {
	cases := map[string]ExpiryStatus{
		"15/01/2024": ExpiryExpired,
		"19/10/2026": ExpiryExpired,
		"20/10/2026": ExpiryExpiringSoon,
		"17/11/2026": ExpiryExpiringSoon,
		"18/11/2026": ExpiryOK,
		"10/12/2026": ExpiryOK,
	}
	for expiry, want := range cases {
		m := RestoreMedication(MedicationRecord{Expiry: expiry})
		if got := m.ExpiryStatusAt(refNow); got != want {
			t.Fatalf("%s: expected %s, got %s", expiry, want, got)
		}
	}
}

func TestDaysToExpiry(t *testing.T) {
	m := RestoreMedication(MedicationRecord{Expiry: "10/12/2026"})
	days, ok := m.DaysToExpiry(refNow)
	if !ok || days != 52 {
		t.Fatalf("expected 52 days, got %d (ok=%v)", days, ok)
	}

	past := RestoreMedication(MedicationRecord{Expiry: "18/10/2026"})
	if days, _ := past.DaysToExpiry(refNow); days != -1 {
		t.Fatalf("expected -1, got %d", days)
	}
}

func TestSetters_KeepValueOnError(t *testing.T) {
	m, err := NewMedication(validFields(), refNow)
	if err != nil {
		t.Fatalf("NewMedication returned error: %v", err)
	}

	if err := m.SetQuantity(-5); err == nil {
		t.Fatalf("expected error for negative quantity")
	}
	if err := m.SetName(""); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if err := m.SetExpiry("2027/01/01"); err == nil {
		t.Fatalf("expected error for bad date")
	}
	if m.Quantity() != 200 || m.Name() != "Dipirona Monoidratada 500mg" || m.Expiry() != "10/12/2026" {
		t.Fatalf("failed setters must not change state: %+v", m.Record())
	}

	// past dates are accepted on edit
	if err := m.SetExpiry("01/01/2020"); err != nil {
		t.Fatalf("SetExpiry returned error: %v", err)
	}
}

func TestAssignID(t *testing.T) {
	m, _ := NewMedication(validFields(), refNow)

	if err := m.AssignID(0); err == nil {
		t.Fatalf("expected error for zero id")
	}
	if err := m.AssignID(7); err != nil {
		t.Fatalf("AssignID returned error: %v", err)
	}
	if err := m.AssignID(7); err != nil {
		t.Fatalf("re-assigning the same id must succeed: %v", err)
	}
	if err := m.AssignID(8); err == nil {
		t.Fatalf("expected error when changing an assigned id")
	}
}

func TestSnapshot(t *testing.T) {
	m := RestoreMedication(MedicationRecord{
		ID: 4, Name: "Ibuprofeno 600mg", Batch: "D7080", Expiry: "15/01/2024", Manufacturer: "Teuto", Quantity: 12,
	})

	s := m.Snapshot(refNow)
	if s.ID != 4 || s.Name != "Ibuprofeno 600mg" || s.Quantity != 12 {
		t.Fatalf("unexpected snapshot: %+v", s)
	}
	if !s.Expired || s.ExpiryStatus != ExpiryExpired {
		t.Fatalf("expected expired snapshot: %+v", s)
	}

	// the snapshot is a value copy
	_ = m.SetQuantity(99)
	if s.Quantity != 12 {
		t.Fatalf("snapshot changed with the entity")
	}
}

func TestContainsFold(t *testing.T) {
	if !ContainsFold("Dipirona Monoidratada", "dipirona") {
		t.Fatalf("expected case-insensitive match")
	}
	if !ContainsFold("Losartana Potássica", "POTÁSSICA") {
		t.Fatalf("expected accented match")
	}
	if !ContainsFold("anything", "") {
		t.Fatalf("empty substring matches everything")
	}
	if ContainsFold("Paracetamol", "dipirona") {
		t.Fatalf("unexpected match")
	}
}
