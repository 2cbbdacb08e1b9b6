package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows List results. Zero values mean "no filter".
type ListFilter struct {
	Date      *time.Time
	Status    Status
	PatientID uuid.UUID
}

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error

	// ExistsActiveAt reports whether an active appointment occupies the
	// exact minute for the given practitioner calendar. A nil practitioner
	// scopes the check to the single unassigned calendar. excludeID skips
	// the appointment being rescheduled.
	ExistsActiveAt(ctx context.Context, at time.Time, practitionerID *uuid.UUID, excludeID uuid.UUID) (bool, error)

	// OccupiedSlots lists the scheduled_at timestamps of active
	// appointments on the given day.
	OccupiedSlots(ctx context.Context, day time.Time) ([]time.Time, error)

	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error)
}
