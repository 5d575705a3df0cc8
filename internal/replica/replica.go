// Package replica is the client-local persisted copy of entity state:
// an embedded sqlite database holding tickets, their events and
// attachments, the pending mutation queue and the sync watermark. Reads
// are synchronous and never touch the network. The replica survives app
// restarts and is wiped on logout.
package replica

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
)

type Replica struct {
	db *sql.DB
}

// Open opens (or creates) the replica database. Use ":memory:" in tests.
func Open(path string) (*Replica, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, err
	}
	// the client is single-threaded; one connection also keeps ":memory:"
	// databases from silently forking per connection
	db.SetMaxOpenConns(1)
	r := &Replica{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Replica) Close() error { return r.db.Close() }

func (r *Replica) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tickets (
			id TEXT PRIMARY KEY,
			created_by TEXT NOT NULL,
			category TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			address_text TEXT NOT NULL DEFAULT '',
			lat REAL,
			lng REAL,
			status TEXT NOT NULL,
			assigned_to TEXT NOT NULL DEFAULT '',
			current_supervisor TEXT NOT NULL DEFAULT '',
			citizen_rating INTEGER,
			citizen_feedback TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			closed_at INTEGER,
			dirty INTEGER NOT NULL DEFAULT 0,
			seq INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS ticket_events (
			id TEXT PRIMARY KEY,
			ticket_id TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			type TEXT NOT NULL,
			from_status TEXT NOT NULL DEFAULT '',
			to_status TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ticket_attachments (
			id TEXT PRIMARY KEY,
			ticket_id TEXT NOT NULL,
			uploaded_by TEXT NOT NULL,
			kind TEXT NOT NULL,
			url TEXT NOT NULL,
			mime_type TEXT NOT NULL DEFAULT '',
			caption TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS pending_mutations (
			id TEXT PRIMARY KEY,
			seq INTEGER NOT NULL UNIQUE,
			payload BLOB NOT NULL,
			queued_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Wipe clears all replicated state; called on logout.
func (r *Replica) Wipe() error {
	for _, table := range []string{"tickets", "ticket_events", "ticket_attachments", "pending_mutations", "meta"} {
		if _, err := r.db.Exec(`DELETE FROM ` + table); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Tickets
// -----------------------------------------------------------------------------

func nanos(t time.Time) int64 { return t.UTC().UnixNano() }

func nanosPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return nanos(*t)
}

func (r *Replica) upsert(t *models.Ticket, dirty int) error {
	_, err := r.db.Exec(`
		INSERT INTO tickets (id, created_by, category, title, description, address_text,
			lat, lng, status, assigned_to, current_supervisor, citizen_rating,
			citizen_feedback, created_at, updated_at, closed_at, dirty, seq)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,
			COALESCE((SELECT seq FROM tickets WHERE id=?),
				(SELECT COALESCE(MAX(seq),0)+1 FROM tickets)))
		ON CONFLICT (id) DO UPDATE SET
			category=excluded.category, title=excluded.title,
			description=excluded.description, address_text=excluded.address_text,
			lat=excluded.lat, lng=excluded.lng, status=excluded.status,
			assigned_to=excluded.assigned_to, current_supervisor=excluded.current_supervisor,
			citizen_rating=excluded.citizen_rating, citizen_feedback=excluded.citizen_feedback,
			updated_at=excluded.updated_at, closed_at=excluded.closed_at, dirty=excluded.dirty
	`, t.ID, t.CreatedBy, t.Category, t.Title, t.Description, t.AddressText,
		t.Lat, t.Lng, t.Status, t.AssignedTo, t.CurrentSupervisor, t.CitizenRating,
		t.CitizenFeedback, nanos(t.CreatedAt), nanos(t.UpdatedAt), nanosPtr(t.ClosedAt),
		dirty, t.ID)
	return err
}

// UpsertLocal stores an optimistic (not yet acknowledged) ticket state.
func (r *Replica) UpsertLocal(t *models.Ticket) error { return r.upsert(t, 1) }

// Accept force-stores authoritative state, clearing the dirty mark. Used
// both for acknowledged mutations and for conflict rollback.
func (r *Replica) Accept(t *models.Ticket) error { return r.upsert(t, 0) }

// Merge stores authoritative state only when it does not regress the
// local copy: rows with pending optimistic changes and rows already newer
// than the incoming one are left alone. Returns whether the row changed.
func (r *Replica) Merge(t *models.Ticket) (bool, error) {
	var dirty int
	var updated int64
	err := r.db.QueryRow(`SELECT dirty, updated_at FROM tickets WHERE id=?`, t.ID).Scan(&dirty, &updated)
	switch {
	case err == sql.ErrNoRows:
		return true, r.upsert(t, 0)
	case err != nil:
		return false, err
	case dirty == 1, updated > nanos(t.UpdatedAt):
		return false, nil
	}
	return true, r.upsert(t, 0)
}

// Delete discards a local ticket; used when an optimistic create is
// rejected by the authoritative store.
func (r *Replica) Delete(id string) error {
	for _, q := range []string{
		`DELETE FROM ticket_events WHERE ticket_id=?`,
		`DELETE FROM ticket_attachments WHERE ticket_id=?`,
		`DELETE FROM tickets WHERE id=?`,
	} {
		if _, err := r.db.Exec(q, id); err != nil {
			return err
		}
	}
	return nil
}

const ticketCols = `id, created_by, category, title, description, address_text,
	lat, lng, status, assigned_to, current_supervisor, citizen_rating,
	citizen_feedback, created_at, updated_at, closed_at`

func scanTicket(row interface{ Scan(...any) error }) (*models.Ticket, error) {
	var t models.Ticket
	var created, updated int64
	var closed sql.NullInt64
	err := row.Scan(&t.ID, &t.CreatedBy, &t.Category, &t.Title, &t.Description,
		&t.AddressText, &t.Lat, &t.Lng, &t.Status, &t.AssignedTo, &t.CurrentSupervisor,
		&t.CitizenRating, &t.CitizenFeedback, &created, &updated, &closed)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = time.Unix(0, created).UTC()
	t.UpdatedAt = time.Unix(0, updated).UTC()
	if closed.Valid {
		v := time.Unix(0, closed.Int64).UTC()
		t.ClosedAt = &v
	}
	return &t, nil
}

func (r *Replica) Get(id string) (*models.Ticket, error) {
	t, err := scanTicket(r.db.QueryRow(`SELECT `+ticketCols+` FROM tickets WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (r *Replica) list(query string, args ...any) ([]models.Ticket, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *Replica) MyTickets(userID string) ([]models.Ticket, error) {
	return r.list(`SELECT `+ticketCols+` FROM tickets WHERE created_by=?
		ORDER BY created_at DESC, seq DESC`, userID)
}

func (r *Replica) AssignedTickets(userID string) ([]models.Ticket, error) {
	return r.list(`SELECT `+ticketCols+` FROM tickets WHERE assigned_to=?
		ORDER BY updated_at DESC, seq DESC`, userID)
}

func (r *Replica) SupervisorQueue(userID string) ([]models.Ticket, error) {
	return r.list(`SELECT `+ticketCols+` FROM tickets
		WHERE current_supervisor=? AND status=?
		ORDER BY updated_at ASC, seq ASC`, userID, models.StatusWaitingSupervisor)
}

// -----------------------------------------------------------------------------
// Events and attachments (immutable rows, replace-on-refresh)
// -----------------------------------------------------------------------------

func (r *Replica) StoreEvents(evs []models.TicketEvent) error {
	for _, ev := range evs {
		_, err := r.db.Exec(`
			INSERT OR REPLACE INTO ticket_events
				(id, ticket_id, actor_id, type, from_status, to_status, message, created_at)
			VALUES (?,?,?,?,?,?,?,?)
		`, ev.ID, ev.TicketID, ev.ActorID, ev.Type, ev.FromStatus, ev.ToStatus,
			ev.Message, nanos(ev.CreatedAt))
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Replica) StoreAttachments(ats []models.TicketAttachment) error {
	for _, at := range ats {
		_, err := r.db.Exec(`
			INSERT OR REPLACE INTO ticket_attachments
				(id, ticket_id, uploaded_by, kind, url, mime_type, caption, created_at)
			VALUES (?,?,?,?,?,?,?,?)
		`, at.ID, at.TicketID, at.UploadedBy, at.Kind, at.URL, at.MimeType,
			at.Caption, nanos(at.CreatedAt))
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Replica) Detail(id string) (*models.TicketDetail, error) {
	t, err := r.Get(id)
	if err != nil || t == nil {
		return nil, err
	}
	d := &models.TicketDetail{Ticket: *t}

	rows, err := r.db.Query(`
		SELECT id, ticket_id, actor_id, type, from_status, to_status, message, created_at
		FROM ticket_events WHERE ticket_id=? ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ev models.TicketEvent
		var created int64
		if err := rows.Scan(&ev.ID, &ev.TicketID, &ev.ActorID, &ev.Type,
			&ev.FromStatus, &ev.ToStatus, &ev.Message, &created); err != nil {
			return nil, err
		}
		ev.CreatedAt = time.Unix(0, created).UTC()
		d.Events = append(d.Events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	arows, err := r.db.Query(`
		SELECT id, ticket_id, uploaded_by, kind, url, mime_type, caption, created_at
		FROM ticket_attachments WHERE ticket_id=? ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer arows.Close()
	for arows.Next() {
		var at models.TicketAttachment
		var created int64
		if err := arows.Scan(&at.ID, &at.TicketID, &at.UploadedBy, &at.Kind,
			&at.URL, &at.MimeType, &at.Caption, &created); err != nil {
			return nil, err
		}
		at.CreatedAt = time.Unix(0, created).UTC()
		d.Attachments = append(d.Attachments, at)
	}
	return d, arows.Err()
}

// -----------------------------------------------------------------------------
// Pending mutation queue and sync metadata
// -----------------------------------------------------------------------------

// QueuedMutation is an opaque queued payload; the sync engine owns the
// encoding so the replica stays schema-agnostic about operations.
type QueuedMutation struct {
	ID      string
	Seq     uint64
	Payload []byte
}

func (r *Replica) Enqueue(id string, seq uint64, payload []byte, queuedAt time.Time) error {
	_, err := r.db.Exec(`
		INSERT INTO pending_mutations (id, seq, payload, queued_at) VALUES (?,?,?,?)
	`, id, seq, payload, nanos(queuedAt))
	return err
}

func (r *Replica) Pending() ([]QueuedMutation, error) {
	rows, err := r.db.Query(`SELECT id, seq, payload FROM pending_mutations ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []QueuedMutation
	for rows.Next() {
		var q QueuedMutation
		if err := rows.Scan(&q.ID, &q.Seq, &q.Payload); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *Replica) Dequeue(id string) error {
	_, err := r.db.Exec(`DELETE FROM pending_mutations WHERE id=?`, id)
	return err
}

// NextSeq hands out the per-client queue position, persisted so ordering
// survives restarts.
func (r *Replica) NextSeq() (uint64, error) {
	var seq uint64
	err := r.db.QueryRow(`
		INSERT INTO meta (key, value) VALUES ('next_seq', '1')
		ON CONFLICT (key) DO UPDATE SET value = CAST(meta.value AS INTEGER) + 1
		RETURNING CAST(value AS INTEGER)
	`).Scan(&seq)
	return seq, err
}

// Watermark is the updated_at horizon of the last pull; zero time when
// the replica has never synced.
func (r *Replica) Watermark() (time.Time, error) {
	var v string
	err := r.db.QueryRow(`SELECT value FROM meta WHERE key='watermark'`).Scan(&v)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, v)
}

func (r *Replica) SetWatermark(t time.Time) error {
	_, err := r.db.Exec(`
		INSERT INTO meta (key, value) VALUES ('watermark', ?)
		ON CONFLICT (key) DO UPDATE SET value=excluded.value
	`, t.UTC().Format(time.RFC3339Nano))
	return err
}
