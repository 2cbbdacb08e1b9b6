package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a patient or practitioner id resolves to
// no record.
var ErrNotFound = errors.New("record not found")

type Repository interface {
	CreatePatient(ctx context.Context, p *Patient) error
	PatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	CreatePractitioner(ctx context.Context, p *Practitioner) error
	PractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)
}
