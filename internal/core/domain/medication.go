package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// ExpiryLayout is the DD/MM/YYYY form expiry dates are stored and exchanged in.
	ExpiryLayout = "02/01/2006"
	// TimestampLayout is the form update timestamps are persisted in.
	TimestampLayout = "2006-01-02 15:04:05"

	MaxNameLength    = 100
	ExpiringSoonDays = 30
)

// ExpiryStatus classifies a medication relative to a reference date.
type ExpiryStatus string

const (
	ExpiryOK           ExpiryStatus = "ok"
	ExpiryExpiringSoon ExpiryStatus = "expiring_soon"
	ExpiryExpired      ExpiryStatus = "expired"
	ExpiryUnknown      ExpiryStatus = "unknown"
)

// MedicationFields carries the caller-supplied attributes of a medication.
type MedicationFields struct {
	Name         string
	Batch        string
	Expiry       string
	Manufacturer string
	Quantity     int
}

// MedicationRecord is the raw persisted state of a medication.
type MedicationRecord struct {
	ID           int64
	Name         string
	Batch        string
	Expiry       string
	Manufacturer string
	Quantity     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Medication is a stocked medication lot. Fields are only reachable through
// validating setters, so a Medication built by NewMedication or
// ImportMedication always holds valid values.
type Medication struct {
	id           int64
	name         string
	batch        string
	expiry       string
	manufacturer string
	quantity     int
	createdAt    time.Time
	updatedAt    time.Time
}

// NewMedication validates every field and requires the expiry date to be
// strictly after now. The returned medication has ID 0 until a repository
// stores it.
func NewMedication(f MedicationFields, now time.Time) (*Medication, error) {
	m, err := ImportMedication(f)
	if err != nil {
		return nil, err
	}
	if err := requireFuture(m.expiry, now); err != nil {
		return nil, err
	}
	return m, nil
}

// ImportMedication validates every field except the futurity of the expiry
// date. It backs import and seed paths that load stock which may already be
// expired.
func ImportMedication(f MedicationFields) (*Medication, error) {
	m := &Medication{}
	if err := m.SetName(f.Name); err != nil {
		return nil, err
	}
	if err := m.SetBatch(f.Batch); err != nil {
		return nil, err
	}
	if err := m.SetExpiry(f.Expiry); err != nil {
		return nil, err
	}
	if err := m.SetManufacturer(f.Manufacturer); err != nil {
		return nil, err
	}
	if err := m.SetQuantity(f.Quantity); err != nil {
		return nil, err
	}
	return m, nil
}

// RestoreMedication rebuilds a medication from storage without validation;
// rows written by older tools are not guaranteed to satisfy the current rules.
func RestoreMedication(r MedicationRecord) *Medication {
	return &Medication{
		id:           r.ID,
		name:         r.Name,
		batch:        r.Batch,
		expiry:       r.Expiry,
		manufacturer: r.Manufacturer,
		quantity:     r.Quantity,
		createdAt:    r.CreatedAt,
		updatedAt:    r.UpdatedAt,
	}
}

func (m *Medication) ID() int64            { return m.id }
func (m *Medication) Name() string         { return m.name }
func (m *Medication) Batch() string        { return m.batch }
func (m *Medication) Expiry() string       { return m.expiry }
func (m *Medication) Manufacturer() string { return m.manufacturer }
func (m *Medication) Quantity() int        { return m.quantity }
func (m *Medication) CreatedAt() time.Time { return m.createdAt }
func (m *Medication) UpdatedAt() time.Time { return m.updatedAt }

func (m *Medication) SetName(s string) error {
	v, err := ValidateName(s)
	if err != nil {
		return err
	}
	m.name = v
	return nil
}

func (m *Medication) SetBatch(s string) error {
	v, err := ValidateBatch(s)
	if err != nil {
		return err
	}
	m.batch = v
	return nil
}

func (m *Medication) SetManufacturer(s string) error {
	v, err := ValidateManufacturer(s)
	if err != nil {
		return err
	}
	m.manufacturer = v
	return nil
}

// SetExpiry checks the date format only. Editing stock that has already
// expired is allowed; futurity is enforced by NewMedication alone.
func (m *Medication) SetExpiry(s string) error {
	v, err := ValidateExpiry(s)
	if err != nil {
		return err
	}
	m.expiry = v
	return nil
}

func (m *Medication) SetQuantity(n int) error {
	if err := ValidateQuantity(n); err != nil {
		return err
	}
	m.quantity = n
	return nil
}

// AssignID sets the repository identifier. It is accepted once, and only
// for a positive value.
func (m *Medication) AssignID(id int64) error {
	if id <= 0 {
		return invalid("id", "must be a positive integer")
	}
	if m.id != 0 && m.id != id {
		return invalid("id", "is immutable once assigned")
	}
	m.id = id
	return nil
}

// Touch stamps the update time, and the creation time when it is unset.
func (m *Medication) Touch(t time.Time) {
	if m.createdAt.IsZero() {
		m.createdAt = t
	}
	m.updatedAt = t
}

// IsExpiredAt reports whether the expiry day has begun at now. Dates that do
// not parse are reported as not expired.
func (m *Medication) IsExpiredAt(now time.Time) bool {
	d, err := time.ParseInLocation(ExpiryLayout, m.expiry, now.Location())
	if err != nil {
		return false
	}
	return !d.After(now)
}

func (m *Medication) IsExpired() bool {
	return m.IsExpiredAt(time.Now())
}

// DaysToExpiry returns whole calendar days from now's date to the expiry
// date; negative once expired. ok is false for malformed dates.
func (m *Medication) DaysToExpiry(now time.Time) (days int, ok bool) {
	d, err := time.ParseInLocation(ExpiryLayout, m.expiry, now.Location())
	if err != nil {
		return 0, false
	}
	expiry := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(expiry.Sub(today).Hours() / 24), true
}

func (m *Medication) ExpiryStatusAt(now time.Time) ExpiryStatus {
	days, ok := m.DaysToExpiry(now)
	switch {
	case !ok:
		return ExpiryUnknown
	case m.IsExpiredAt(now):
		return ExpiryExpired
	case days < ExpiringSoonDays:
		return ExpiryExpiringSoon
	default:
		return ExpiryOK
	}
}

func (m *Medication) Record() MedicationRecord {
	return MedicationRecord{
		ID:           m.id,
		Name:         m.name,
		Batch:        m.batch,
		Expiry:       m.expiry,
		Manufacturer: m.manufacturer,
		Quantity:     m.quantity,
		CreatedAt:    m.createdAt,
		UpdatedAt:    m.updatedAt,
	}
}

func (m *Medication) Clone() *Medication {
	c := *m
	return &c
}

// Snapshot is a read-only copy of a medication at a point in time.
type Snapshot struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Batch        string       `json:"batch"`
	Expiry       string       `json:"expiry"`
	Manufacturer string       `json:"manufacturer"`
	Quantity     int          `json:"quantity"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Expired      bool         `json:"expired"`
	ExpiryStatus ExpiryStatus `json:"expiry_status"`
}

func (m *Medication) Snapshot(now time.Time) Snapshot {
	return Snapshot{
		ID:           m.id,
		Name:         m.name,
		Batch:        m.batch,
		Expiry:       m.expiry,
		Manufacturer: m.manufacturer,
		Quantity:     m.quantity,
		CreatedAt:    m.createdAt,
		UpdatedAt:    m.updatedAt,
		Expired:      m.IsExpiredAt(now),
		ExpiryStatus: m.ExpiryStatusAt(now),
	}
}

// --- field validation ---

func ValidateName(s string) (string, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return "", invalid("name", "must not be empty")
	}
	if utf8.RuneCountInString(v) > MaxNameLength {
		return "", invalid("name", "must be at most 100 characters")
	}
	return v, nil
}

func ValidateBatch(s string) (string, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return "", invalid("batch", "must not be empty")
	}
	return v, nil
}

func ValidateManufacturer(s string) (string, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return "", invalid("manufacturer", "must not be empty")
	}
	return v, nil
}

// ValidateExpiry checks that s is a DD/MM/YYYY calendar date. The value is
// returned verbatim so stored dates stay byte-for-byte compatible.
func ValidateExpiry(s string) (string, error) {
	if _, err := time.Parse(ExpiryLayout, s); err != nil {
		return "", invalid("expiry", "invalid date format, use DD/MM/YYYY")
	}
	return s, nil
}

func ValidateQuantity(n int) error {
	if n < 0 {
		return invalid("quantity", "must not be negative")
	}
	return nil
}

func requireFuture(expiry string, now time.Time) error {
	d, err := time.ParseInLocation(ExpiryLayout, expiry, now.Location())
	if err != nil {
		return invalid("expiry", "invalid date format, use DD/MM/YYYY")
	}
	if !d.After(now) {
		return invalid("expiry", "must be a future date")
	}
	return nil
}

// ContainsFold reports whether substr occurs in s ignoring case. An empty
// substr matches everything.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
