package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/clinicore/clinic-server/internal/domain/identity"
	"github.com/clinicore/clinic-server/internal/domain/inventory"
	"github.com/clinicore/clinic-server/internal/platform/audit"
	"github.com/clinicore/clinic-server/internal/platform/notification"
)

// LedgerAdjuster refreshes daily revenue totals for the days an appointment
// change touched.
type LedgerAdjuster interface {
	Recompute(ctx context.Context, days ...time.Time) error
}

// InventorySettler applies and reverses material consumption.
type InventorySettler interface {
	ConsumeForAppointment(ctx context.Context, appointmentID uuid.UUID, lines []inventory.Line, actorID uuid.UUID) error
	RestoreForAppointment(ctx context.Context, appointmentID uuid.UUID, lines []inventory.Line, actorID uuid.UUID) error
}

// Directory resolves patient and practitioner records for reference
// validation and notifications.
type Directory interface {
	PatientByID(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
	PractitionerByID(ctx context.Context, id uuid.UUID) (*identity.Practitioner, error)
}

// TxFunc runs fn atomically. The primary write and its ledger/inventory
// effects share one transaction; only notifications and audit stay outside.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	repo      Repository
	ledger    LedgerAdjuster
	stock     InventorySettler
	directory Directory
	tx        TxFunc
	notifier  *notification.Notifier
	audit     *audit.Recorder
	logger    zerolog.Logger
}

func NewService(
	repo Repository,
	ledger LedgerAdjuster,
	stock InventorySettler,
	directory Directory,
	tx TxFunc,
	notifier *notification.Notifier,
	auditor *audit.Recorder,
	logger zerolog.Logger,
) *Service {
	if tx == nil {
		tx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	return &Service{
		repo:      repo,
		ledger:    ledger,
		stock:     stock,
		directory: directory,
		tx:        tx,
		notifier:  notifier,
		audit:     auditor,
		logger:    logger.With().Str("component", "appointment").Logger(),
	}
}

// CreateInput carries a new appointment. Value is free-form currency text.
type CreateInput struct {
	PatientID      uuid.UUID
	PractitionerID *uuid.UUID
	ScheduledAt    time.Time
	Kind           string
	Description    *string
	Value          string
	Procedures     []ProcedureLine
	Materials      []MaterialLine
	ActorID        uuid.UUID
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Appointment, error) {
	if in.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if in.ScheduledAt.IsZero() {
		return nil, fmt.Errorf("%w: scheduled_at is required", ErrValidation)
	}
	if err := ValidateLines(in.Procedures, in.Materials); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	value, err := ParseMoney(in.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if err := s.verifyReferences(ctx, in.PatientID, in.PractitionerID); err != nil {
		return nil, err
	}

	a := &Appointment{
		PatientID:      in.PatientID,
		PractitionerID: in.PractitionerID,
		ScheduledAt:    in.ScheduledAt.Truncate(time.Minute),
		Kind:           in.Kind,
		Description:    in.Description,
		Status:         StatusScheduled,
		Paid:           false,
		Value:          value,
		Procedures:     in.Procedures,
		Materials:      in.Materials,
	}

	// Pre-check gives a clean 409 for the common case; the partial unique
	// index behind Create catches the race two concurrent creates can win.
	occupied, err := s.repo.ExistsActiveAt(ctx, a.ScheduledAt, a.PractitionerID, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("conflict check: %w", err)
	}
	if occupied {
		return nil, ErrScheduleConflict
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	s.recordAudit(in.ActorID, "appointment.create", a.ID, map[string]any{
		"patient_id":   a.PatientID.String(),
		"scheduled_at": a.ScheduledAt,
	})
	s.notify(ctx, a, "appointment-scheduled")
	return a, nil
}

// UpdateInput is a partial edit. Nil fields are left unchanged;
// ClearPractitioner moves the appointment to the unassigned calendar.
type UpdateInput struct {
	ScheduledAt       *time.Time
	Kind              *string
	Description       *string
	Value             *string
	PractitionerID    *uuid.UUID
	ClearPractitioner bool
	ActorID           uuid.UUID
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	oldDay := a.Day()
	oldValue := a.Value

	if in.PractitionerID != nil {
		if err := s.verifyPractitioner(ctx, *in.PractitionerID); err != nil {
			return nil, err
		}
		a.PractitionerID = in.PractitionerID
	} else if in.ClearPractitioner {
		a.PractitionerID = nil
	}
	if in.Kind != nil {
		a.Kind = *in.Kind
	}
	if in.Description != nil {
		a.Description = in.Description
	}
	if in.Value != nil {
		value, err := ParseMoney(*in.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrValidation, err)
		}
		a.Value = value
	}

	rescheduled := false
	if in.ScheduledAt != nil {
		at := in.ScheduledAt.Truncate(time.Minute)
		if !at.Equal(a.ScheduledAt) {
			occupied, err := s.repo.ExistsActiveAt(ctx, at, a.PractitionerID, a.ID)
			if err != nil {
				return nil, fmt.Errorf("conflict check: %w", err)
			}
			if occupied {
				return nil, ErrScheduleConflict
			}
			a.ScheduledAt = at
			rescheduled = true
		}
	}

	newDay := a.Day()
	dayChanged := !newDay.Equal(oldDay)
	valueChanged := !nullDecimalEqual(oldValue, a.Value)

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		// A paid appointment drags its value with it: moving day or
		// changing value re-aggregates every touched day.
		if a.Paid && (dayChanged || valueChanged) {
			return s.ledger.Recompute(ctx, oldDay, newDay)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(in.ActorID, "appointment.update", a.ID, map[string]any{
		"rescheduled": rescheduled,
	})
	if rescheduled {
		s.notify(ctx, a, "appointment-rescheduled")
	}
	return a, nil
}

// StatusInput drives one state machine transition.
type StatusInput struct {
	Status  Status
	Paid    *bool
	Reason  *string
	Note    *string
	ActorID uuid.UUID
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, in StatusInput) error {
	if !in.Status.Valid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, in.Status)
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	oldStatus := a.Status
	oldPaid := a.Paid

	newPaid := false
	if in.Paid != nil {
		newPaid = *in.Paid
	}
	if in.Status.NonCompleting() {
		// Cancelled and missed appointments are never paid.
		newPaid = false
		a.NonCompletion = &NonCompletion{
			Kind:     in.Status,
			Reason:   in.Reason,
			Note:     in.Note,
			MarkedBy: actorRef(in.ActorID),
			MarkedAt: time.Now(),
		}
	} else {
		a.NonCompletion = nil
	}
	a.Status = in.Status
	a.Paid = newPaid

	paidChanged := oldPaid != newPaid
	enteredRealized := in.Status == StatusRealized && oldStatus != StatusRealized
	leftRealized := oldStatus == StatusRealized && in.Status != StatusRealized

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		if paidChanged {
			if err := s.ledger.Recompute(ctx, a.Day()); err != nil {
				return err
			}
		}
		if enteredRealized {
			return s.stock.ConsumeForAppointment(ctx, a.ID, a.InventoryLines(), in.ActorID)
		}
		if leftRealized {
			return s.stock.RestoreForAppointment(ctx, a.ID, a.InventoryLines(), in.ActorID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.recordAudit(in.ActorID, "appointment.status", a.ID, map[string]any{
		"from": string(oldStatus),
		"to":   string(in.Status),
		"paid": newPaid,
	})
	if in.Status == StatusCancelled && oldStatus != StatusCancelled {
		s.notify(ctx, a, "appointment-cancelled")
	}
	return nil
}

// Delete removes an appointment after reversing its financial and inventory
// effects.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actorID uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, a.ID); err != nil {
			return err
		}
		// Re-aggregation after the row is gone yields the corrected total.
		if a.Paid {
			if err := s.ledger.Recompute(ctx, a.Day()); err != nil {
				return err
			}
		}
		if a.Status == StatusRealized {
			return s.stock.RestoreForAppointment(ctx, a.ID, a.InventoryLines(), actorID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.recordAudit(actorID, "appointment.delete", a.ID, map[string]any{
		"status": string(a.Status),
		"paid":   a.Paid,
	})
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: invalid status %q", ErrValidation, f.Status)
	}
	return s.repo.List(ctx, f, limit, offset)
}

// Clinic working hours: two blocks of half-hour slots.
var slotBlocks = []struct {
	startHour, startMin int
	endHour, endMin     int
}{
	{8, 0, 11, 30},
	{14, 0, 17, 0},
}

const slotStep = 30 * time.Minute

// Availability returns the free slots of the fixed daily grid, as HH:MM
// strings. Cancelled and missed appointments do not occupy slots.
func (s *Service) Availability(ctx context.Context, date time.Time) ([]string, error) {
	occupied, err := s.repo.OccupiedSlots(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("read occupied slots: %w", err)
	}
	taken := make(map[string]bool, len(occupied))
	for _, t := range occupied {
		taken[t.Format("15:04")] = true
	}

	var free []string
	for _, b := range slotBlocks {
		start := time.Date(date.Year(), date.Month(), date.Day(), b.startHour, b.startMin, 0, 0, date.Location())
		end := time.Date(date.Year(), date.Month(), date.Day(), b.endHour, b.endMin, 0, 0, date.Location())
		for t := start; !t.After(end); t = t.Add(slotStep) {
			if slot := t.Format("15:04"); !taken[slot] {
				free = append(free, slot)
			}
		}
	}
	return free, nil
}

func (s *Service) recordAudit(actorID uuid.UUID, action string, id uuid.UUID, details map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(audit.Entry{
		ActorID:    actorID,
		Action:     action,
		EntityType: "appointment",
		EntityID:   id.String(),
		Details:    details,
	})
}

// notify resolves names and fires a best-effort patient message. Lookup or
// delivery failures are logged, never surfaced.
func (s *Service) notify(ctx context.Context, a *Appointment, templateID string) {
	if s.notifier == nil || s.directory == nil {
		return
	}
	patient, err := s.directory.PatientByID(ctx, a.PatientID)
	if err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("patient lookup failed, notification skipped")
		return
	}

	data := map[string]string{
		"patient": patient.Name,
		"date":    a.ScheduledAt.Format("02/01/2006"),
		"time":    a.ScheduledAt.Format("15:04"),
	}
	if a.PractitionerID != nil {
		if pr, err := s.directory.PractitionerByID(ctx, *a.PractitionerID); err == nil {
			data["practitioner"] = pr.Name
		}
	}

	msg := notification.Message{TemplateID: templateID, Data: data}
	if patient.Phone != nil {
		msg.Phone = *patient.Phone
	}
	if patient.Email != nil {
		msg.Email = *patient.Email
	}
	s.notifier.Notify(ctx, msg)
}

// verifyReferences confirms the patient, and the practitioner when one is
// assigned, exist before anything is written.
func (s *Service) verifyReferences(ctx context.Context, patientID uuid.UUID, practitionerID *uuid.UUID) error {
	if s.directory == nil {
		return nil
	}
	if _, err := s.directory.PatientByID(ctx, patientID); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return fmt.Errorf("%w: unknown patient_id", ErrValidation)
		}
		return fmt.Errorf("patient lookup: %w", err)
	}
	if practitionerID != nil {
		return s.verifyPractitioner(ctx, *practitionerID)
	}
	return nil
}

func (s *Service) verifyPractitioner(ctx context.Context, id uuid.UUID) error {
	if s.directory == nil {
		return nil
	}
	if _, err := s.directory.PractitionerByID(ctx, id); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return fmt.Errorf("%w: unknown dentist_id", ErrValidation)
		}
		return fmt.Errorf("practitioner lookup: %w", err)
	}
	return nil
}

func actorRef(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func nullDecimalEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	if !a.Valid {
		return true
	}
	return a.Decimal.Equal(b.Decimal)
}
