package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinic-server/internal/platform/db"
)

// slotIndexName is the partial unique index backing the conflict check. A
// 23505 raised by it is a losing race, not a server fault.
const slotIndexName = "appointment_active_slot_idx"

type repoPG struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewRepoPG(pool *pgxpool.Pool, logger zerolog.Logger) Repository {
	return &repoPG{pool: pool, logger: logger.With().Str("component", "appointment_repo").Logger()}
}

const apptCols = `id, patient_id, practitioner_id, scheduled_at, kind, description,
	status, paid, value, procedures, materials,
	non_completion_kind, non_completion_reason, non_completion_note,
	non_completion_marked_by, non_completion_marked_at,
	created_at, updated_at`

func (r *repoPG) scan(row pgx.Row) (*Appointment, error) {
	var (
		a            Appointment
		status       string
		rawProc      []byte
		rawMat       []byte
		ncKind       *string
		ncReason     *string
		ncNote       *string
		ncMarkedBy   *uuid.UUID
		ncMarkedAt   *time.Time
	)
	err := row.Scan(&a.ID, &a.PatientID, &a.PractitionerID, &a.ScheduledAt, &a.Kind, &a.Description,
		&status, &a.Paid, &a.Value, &rawProc, &rawMat,
		&ncKind, &ncReason, &ncNote, &ncMarkedBy, &ncMarkedAt,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)

	var ok bool
	if a.Procedures, ok = proceduresFromJSON(rawProc); !ok {
		r.logger.Warn().Str("appointment_id", a.ID.String()).Msg("corrupt procedures payload, treated as empty")
	}
	if a.Materials, ok = materialsFromJSON(rawMat); !ok {
		r.logger.Warn().Str("appointment_id", a.ID.String()).Msg("corrupt materials payload, treated as empty")
	}

	if ncKind != nil {
		a.NonCompletion = &NonCompletion{
			Kind:     Status(*ncKind),
			Reason:   ncReason,
			Note:     ncNote,
			MarkedBy: ncMarkedBy,
		}
		if ncMarkedAt != nil {
			a.NonCompletion.MarkedAt = *ncMarkedAt
		}
	}
	return &a, nil
}

func linesJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(v)
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	procs, err := linesJSON(a.Procedures)
	if err != nil {
		return fmt.Errorf("encode procedures: %w", err)
	}
	mats, err := linesJSON(a.Materials)
	if err != nil {
		return fmt.Errorf("encode materials: %w", err)
	}

	_, err = db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO appointment (id, patient_id, practitioner_id, scheduled_at, kind,
			description, status, paid, value, procedures, materials)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.PatientID, a.PractitionerID, a.ScheduledAt, a.Kind,
		a.Description, string(a.Status), a.Paid, a.Value, procs, mats)
	return mapSlotConflict(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scan(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	procs, err := linesJSON(a.Procedures)
	if err != nil {
		return fmt.Errorf("encode procedures: %w", err)
	}
	mats, err := linesJSON(a.Materials)
	if err != nil {
		return fmt.Errorf("encode materials: %w", err)
	}

	var ncKind, ncReason, ncNote *string
	var ncMarkedBy *uuid.UUID
	var ncMarkedAt *time.Time
	if nc := a.NonCompletion; nc != nil {
		kind := string(nc.Kind)
		ncKind = &kind
		ncReason = nc.Reason
		ncNote = nc.Note
		ncMarkedBy = nc.MarkedBy
		ncMarkedAt = &nc.MarkedAt
	}

	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE appointment
		SET practitioner_id = $2, scheduled_at = $3, kind = $4, description = $5,
			status = $6, paid = $7, value = $8, procedures = $9, materials = $10,
			non_completion_kind = $11, non_completion_reason = $12,
			non_completion_note = $13, non_completion_marked_by = $14,
			non_completion_marked_at = $15, updated_at = NOW()
		WHERE id = $1`,
		a.ID, a.PractitionerID, a.ScheduledAt, a.Kind, a.Description,
		string(a.Status), a.Paid, a.Value, procs, mats,
		ncKind, ncReason, ncNote, ncMarkedBy, ncMarkedAt)
	if err != nil {
		return mapSlotConflict(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ExistsActiveAt(ctx context.Context, at time.Time, practitionerID *uuid.UUID, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointment
			WHERE scheduled_at = $1
			  AND practitioner_id IS NOT DISTINCT FROM $2
			  AND status NOT IN ('cancelled', 'missed')
			  AND id <> $3
		)`, at, practitionerID, excludeID).Scan(&exists)
	return exists, err
}

func (r *repoPG) OccupiedSlots(ctx context.Context, day time.Time) ([]time.Time, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT scheduled_at FROM appointment
		WHERE scheduled_at::date = $1::date
		  AND status NOT IN ('cancelled', 'missed')
		ORDER BY scheduled_at`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		slots = append(slots, t)
	}
	return slots, rows.Err()
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	conn := db.Conn(ctx, r.pool)

	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.Date != nil {
		where += fmt.Sprintf(` AND scheduled_at::date = $%d::date`, idx)
		args = append(args, *f.Date)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, string(f.Status))
		idx++
	}
	if f.PatientID != uuid.Nil {
		where += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, f.PatientID)
		idx++
	}

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM appointment`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + apptCols + ` FROM appointment` + where +
		fmt.Sprintf(` ORDER BY scheduled_at LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

// mapSlotConflict turns a unique violation on the active-slot index into
// ErrScheduleConflict so a lost insert race surfaces as a 409.
func mapSlotConflict(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == slotIndexName {
		return ErrScheduleConflict
	}
	return err
}
