package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/apperr"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TicketRepo struct{ db *pgxpool.Pool }

func NewTicketRepo(db *pgxpool.Pool) *TicketRepo { return &TicketRepo{db: db} }

const ticketCols = `
	id, created_by, category, title, description, address_text, lat, lng,
	status, COALESCE(assigned_to, ''), COALESCE(current_supervisor, ''),
	citizen_rating, COALESCE(citizen_feedback, ''), created_at, updated_at, closed_at`

func scanTicket(row pgx.Row) (*models.Ticket, error) {
	var t models.Ticket
	err := row.Scan(
		&t.ID, &t.CreatedBy, &t.Category, &t.Title, &t.Description, &t.AddressText,
		&t.Lat, &t.Lng, &t.Status, &t.AssignedTo, &t.CurrentSupervisor,
		&t.CitizenRating, &t.CitizenFeedback, &t.CreatedAt, &t.UpdatedAt, &t.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTickets(rows pgx.Rows) ([]models.Ticket, error) {
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

// -----------------------------------------------------------------------------
// Writes. The ticket row and its event row always land in one transaction.
// -----------------------------------------------------------------------------

func (r *TicketRepo) Create(ctx context.Context, t *models.Ticket, ev *models.TicketEvent) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO tickets (id, created_by, category, title, description, address_text,
			lat, lng, status, assigned_to, current_supervisor, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NULLIF($10,''),NULLIF($11,''),$12,$13)
	`, t.ID, t.CreatedBy, t.Category, t.Title, t.Description, t.AddressText,
		t.Lat, t.Lng, t.Status, t.AssignedTo, t.CurrentSupervisor, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return err
	}
	if ev != nil {
		if err := insertEvent(ctx, tx, ev); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *TicketRepo) Get(ctx context.Context, id string) (*models.Ticket, error) {
	t, err := scanTicket(r.db.QueryRow(ctx, `SELECT `+ticketCols+` FROM tickets WHERE id=$1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// ApplyStatusChange is the conditional write the whole concurrency model
// rests on: the UPDATE only matches while the stored status equals from,
// so of two racing transitions exactly one commits.
func (r *TicketRepo) ApplyStatusChange(ctx context.Context, next *models.Ticket, from models.TicketStatus, ev *models.TicketEvent) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE tickets SET
			status=$1, assigned_to=NULLIF($2,''), current_supervisor=NULLIF($3,''),
			updated_at=$4, closed_at=COALESCE(closed_at, $5)
		WHERE id=$6 AND status=$7
	`, next.Status, next.AssignedTo, next.CurrentSupervisor,
		next.UpdatedAt, next.ClosedAt, next.ID, from)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, next.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return apperr.NotFoundf("ticket %s not found", next.ID)
		}
		return apperr.ErrWriteConflict
	}
	if err := insertEvent(ctx, tx, ev); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *TicketRepo) SetRating(ctx context.Context, id string, rating int, feedback string, ev *models.TicketEvent) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE tickets SET citizen_rating=$1, citizen_feedback=$2, updated_at=$3
		WHERE id=$4 AND status=$5
	`, rating, feedback, ev.CreatedAt, id, models.StatusResolved)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return apperr.NotFoundf("ticket %s not found", id)
		}
		return apperr.ErrWriteConflict
	}
	if err := insertEvent(ctx, tx, ev); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *TicketRepo) AppendEvent(ctx context.Context, ev *models.TicketEvent) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `UPDATE tickets SET updated_at=$1 WHERE id=$2`, ev.CreatedAt, ev.TicketID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFoundf("ticket %s not found", ev.TicketID)
	}
	if err := insertEvent(ctx, tx, ev); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *TicketRepo) AppendAttachment(ctx context.Context, at *models.TicketAttachment) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `UPDATE tickets SET updated_at=$1 WHERE id=$2`, at.CreatedAt, at.TicketID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFoundf("ticket %s not found", at.TicketID)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO ticket_attachments (id, ticket_id, uploaded_by, kind, url, mime_type, caption, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, at.ID, at.TicketID, at.UploadedBy, at.Kind, at.URL, at.MimeType, at.Caption, at.CreatedAt)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertEvent(ctx context.Context, tx pgx.Tx, ev *models.TicketEvent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ticket_events (id, ticket_id, actor_id, type, from_status, to_status, message, created_at)
		VALUES ($1,$2,$3,$4,NULLIF($5,''),NULLIF($6,''),$7,$8)
	`, ev.ID, ev.TicketID, ev.ActorID, ev.Type, string(ev.FromStatus), string(ev.ToStatus), ev.Message, ev.CreatedAt)
	return err
}

// -----------------------------------------------------------------------------
// Named read views. Ordering is part of the contract: live consumers must
// not see reorderings between refreshes.
// -----------------------------------------------------------------------------

func (r *TicketRepo) ListByCreator(ctx context.Context, userID string) ([]models.Ticket, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+ticketCols+` FROM tickets
		WHERE created_by=$1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return scanTickets(rows)
}

func (r *TicketRepo) ListByAssignee(ctx context.Context, userID string) ([]models.Ticket, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+ticketCols+` FROM tickets
		WHERE assigned_to=$1
		ORDER BY updated_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return scanTickets(rows)
}

func (r *TicketRepo) SupervisorQueue(ctx context.Context, userID string) ([]models.Ticket, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+ticketCols+` FROM tickets
		WHERE current_supervisor=$1 AND status=$2
		ORDER BY updated_at ASC, id ASC
	`, userID, models.StatusWaitingSupervisor)
	if err != nil {
		return nil, err
	}
	return scanTickets(rows)
}

func (r *TicketRepo) Detail(ctx context.Context, id string) (*models.TicketDetail, error) {
	t, err := r.Get(ctx, id)
	if err != nil || t == nil {
		return nil, err
	}
	d := &models.TicketDetail{Ticket: *t}

	rows, err := r.db.Query(ctx, `
		SELECT id, ticket_id, actor_id, type, COALESCE(from_status,''), COALESCE(to_status,''),
			COALESCE(message,''), created_at
		FROM ticket_events WHERE ticket_id=$1
		ORDER BY created_at ASC, id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ev models.TicketEvent
		if err := rows.Scan(&ev.ID, &ev.TicketID, &ev.ActorID, &ev.Type,
			&ev.FromStatus, &ev.ToStatus, &ev.Message, &ev.CreatedAt); err != nil {
			return nil, err
		}
		d.Events = append(d.Events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	arows, err := r.db.Query(ctx, `
		SELECT id, ticket_id, uploaded_by, kind, url, COALESCE(mime_type,''), COALESCE(caption,''), created_at
		FROM ticket_attachments WHERE ticket_id=$1
		ORDER BY created_at ASC, id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer arows.Close()
	for arows.Next() {
		var at models.TicketAttachment
		if err := arows.Scan(&at.ID, &at.TicketID, &at.UploadedBy, &at.Kind,
			&at.URL, &at.MimeType, &at.Caption, &at.CreatedAt); err != nil {
			return nil, err
		}
		d.Attachments = append(d.Attachments, at)
	}
	return d, arows.Err()
}

func (r *TicketRepo) List(ctx context.Context, f repository.TicketFilter) ([]models.Ticket, int, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	whereSQL, args := buildTicketWhere(f)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets t `+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortCol := sanitizeSort(f.Sort, "updated_at")
	sortOrd := sanitizeOrder(f.Order, "desc")

	args = append(args, limit, offset)
	sql := fmt.Sprintf(`
		SELECT t.id, t.created_by, t.category, t.title, t.description, t.address_text,
			t.lat, t.lng, t.status, COALESCE(t.assigned_to, ''), COALESCE(t.current_supervisor, ''),
			t.citizen_rating, COALESCE(t.citizen_feedback, ''), t.created_at, t.updated_at, t.closed_at
		FROM tickets t
		%s
		ORDER BY t.%s %s, t.id %s
		LIMIT $%d OFFSET $%d
	`, whereSQL, sortCol, sortOrd, sortOrd, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	out, err := scanTickets(rows)
	return out, total, err
}

func (r *TicketRepo) ChangedSince(ctx context.Context, since time.Time) ([]models.Ticket, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+ticketCols+` FROM tickets
		WHERE updated_at >= $1
		ORDER BY updated_at ASC, id ASC
	`, since)
	if err != nil {
		return nil, err
	}
	return scanTickets(rows)
}

// buildTicketWhere composes WHERE clause and args for the filtered list.
func buildTicketWhere(f repository.TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if s := strings.TrimSpace(f.Q); s != "" {
		p := "%" + s + "%"
		args = append(args, p, p)
		clauses = append(clauses, "(t.title ILIKE $"+itoa(len(args)-1)+" OR t.description ILIKE $"+itoa(len(args))+")")
	}
	if s := strings.TrimSpace(f.Status); s != "" {
		args = append(args, s)
		clauses = append(clauses, "t.status = $"+itoa(len(args)))
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		args = append(args, c)
		clauses = append(clauses, "t.category = $"+itoa(len(args)))
	}
	if a := strings.TrimSpace(f.AssignedTo); a != "" {
		args = append(args, a)
		clauses = append(clauses, "t.assigned_to = $"+itoa(len(args)))
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func sanitizeSort(s, def string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "created_at", "updated_at":
		return strings.ToLower(strings.TrimSpace(s))
	default:
		return def
	}
}

func sanitizeOrder(o, def string) string {
	switch strings.ToLower(strings.TrimSpace(o)) {
	case "asc", "desc":
		return strings.ToLower(strings.TrimSpace(o))
	default:
		return def
	}
}

// small helper to avoid fmt on the hot path.
func itoa(i int) string { return strconv.Itoa(i) }
