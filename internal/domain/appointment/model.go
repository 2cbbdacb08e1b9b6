package appointment

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinicore/clinic-server/internal/domain/inventory"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusRealized  Status = "realized"
	StatusCancelled Status = "cancelled"
	StatusMissed    Status = "missed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusRealized, StatusCancelled, StatusMissed:
		return true
	}
	return false
}

// Active reports whether the appointment still occupies its slot.
// Cancelled and missed appointments release the slot.
func (s Status) Active() bool {
	return s != StatusCancelled && s != StatusMissed
}

// NonCompleting reports whether the status carries non-completion metadata.
func (s Status) NonCompleting() bool {
	return s == StatusCancelled || s == StatusMissed
}

// ProcedureLine is one performed procedure with an optional price.
type ProcedureLine struct {
	Description string              `json:"description"`
	Value       decimal.NullDecimal `json:"value,omitempty"`
}

// MaterialLine is one consumed material: quantity units of a stock product.
type MaterialLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// NonCompletion records why an appointment was cancelled or missed.
type NonCompletion struct {
	Kind     Status     `json:"kind"`
	Reason   *string    `json:"reason,omitempty"`
	Note     *string    `json:"note,omitempty"`
	MarkedBy *uuid.UUID `json:"marked_by,omitempty"`
	MarkedAt time.Time  `json:"marked_at"`
}

// Appointment is a consulta: a scheduled patient encounter. PractitionerID
// keeps the dentist_id wire name of the original API.
type Appointment struct {
	ID             uuid.UUID           `db:"id" json:"id"`
	PatientID      uuid.UUID           `db:"patient_id" json:"patient_id"`
	PractitionerID *uuid.UUID          `db:"practitioner_id" json:"dentist_id,omitempty"`
	ScheduledAt    time.Time           `db:"scheduled_at" json:"scheduled_at"`
	Kind           string              `db:"kind" json:"kind,omitempty"`
	Description    *string             `db:"description" json:"description,omitempty"`
	Status         Status              `db:"status" json:"status"`
	Paid           bool                `db:"paid" json:"paid"`
	Value          decimal.NullDecimal `db:"value" json:"value,omitempty"`
	Procedures     []ProcedureLine     `db:"procedures" json:"procedures,omitempty"`
	Materials      []MaterialLine      `db:"materials" json:"materials,omitempty"`
	NonCompletion  *NonCompletion      `json:"non_completion,omitempty"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at" json:"updated_at"`
}

// Day is the calendar day the appointment falls on, used as the revenue
// ledger key.
func (a *Appointment) Day() time.Time {
	t := a.ScheduledAt
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// InventoryLines converts the material payload into settlement lines.
func (a *Appointment) InventoryLines() []inventory.Line {
	lines := make([]inventory.Line, 0, len(a.Materials))
	for _, m := range a.Materials {
		lines = append(lines, inventory.Line{ProductID: m.ProductID, Quantity: m.Quantity})
	}
	return lines
}

// ParseMoney normalizes free-form currency text into a decimal. It accepts
// plain numbers ("80", "120.50"), Brazilian formatting ("1.234,56") and
// symbol-prefixed text ("R$ 170,50"). Empty input yields null.
func ParseMoney(raw string) (decimal.NullDecimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "null" {
		return decimal.NullDecimal{}, nil
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			b.WriteRune(r)
		}
	}
	s = b.String()
	if s == "" {
		return decimal.NullDecimal{}, fmt.Errorf("no numeric value in %q", raw)
	}

	// A comma marks Brazilian decimal notation: dots are thousands
	// separators, the comma is the decimal point.
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid currency value %q", raw)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

// ValidateLines rejects malformed procedure and material payloads at the
// write boundary. Stored payloads are parsed leniently instead; see
// materialsFromJSON.
func ValidateLines(procedures []ProcedureLine, materials []MaterialLine) error {
	for i, p := range procedures {
		if strings.TrimSpace(p.Description) == "" {
			return fmt.Errorf("procedure %d: description is required", i)
		}
	}
	for i, m := range materials {
		if m.ProductID == uuid.Nil {
			return fmt.Errorf("material %d: product_id is required", i)
		}
		if m.Quantity <= 0 {
			return fmt.Errorf("material %d: quantity must be positive", i)
		}
	}
	return nil
}

// materialsFromJSON parses a stored materials payload. Corrupt payloads
// yield no materials rather than an error: rows are validated at write time,
// so a bad payload is operator-induced and must not strand the record.
func materialsFromJSON(raw []byte) ([]MaterialLine, bool) {
	if len(raw) == 0 {
		return nil, true
	}
	var lines []MaterialLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, false
	}
	return lines, true
}

func proceduresFromJSON(raw []byte) ([]ProcedureLine, bool) {
	if len(raw) == 0 {
		return nil, true
	}
	var lines []ProcedureLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, false
	}
	return lines, true
}
