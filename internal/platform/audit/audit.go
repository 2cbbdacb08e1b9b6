package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// Execer is the slice of the pgx pool the recorder needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Entry describes one recorded action. Details is marshalled to JSONB.
type Entry struct {
	ActorID    uuid.UUID
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]any
}

// Recorder persists audit entries without ever failing the caller. Entries
// go through a buffered channel drained by a single worker; when the buffer
// is full the entry is dropped and counted.
type Recorder struct {
	db      Execer
	logger  zerolog.Logger
	entries chan Entry
	done    chan struct{}
}

func NewRecorder(db Execer, logger zerolog.Logger, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	r := &Recorder{
		db:      db,
		logger:  logger.With().Str("component", "audit").Logger(),
		entries: make(chan Entry, buffer),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues an entry. It never blocks; if the buffer is full the
// entry is dropped with a warning.
func (r *Recorder) Record(e Entry) {
	select {
	case r.entries <- e:
	default:
		r.logger.Warn().
			Str("action", e.Action).
			Str("entity_type", e.EntityType).
			Msg("audit buffer full, entry dropped")
	}
}

// Close stops accepting entries and waits for the worker to drain the buffer.
func (r *Recorder) Close() {
	close(r.entries)
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.entries {
		r.insert(e)
	}
}

func (r *Recorder) insert(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var details []byte
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			r.logger.Warn().Err(err).Str("action", e.Action).Msg("audit details not serializable")
		} else {
			details = b
		}
	}

	var actorID any
	if e.ActorID != uuid.Nil {
		actorID = e.ActorID
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_log (id, actor_id, action, entity_type, entity_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		uuid.New(), actorID, e.Action, e.EntityType, e.EntityID, details,
	)
	if err != nil {
		r.logger.Error().Err(err).
			Str("action", e.Action).
			Str("entity_type", e.EntityType).
			Str("entity_id", e.EntityID).
			Msg("audit insert failed")
	}
}
