// Package memory implements the repository interfaces on process-local
// maps guarded by a mutex. It is the authoritative store used by tests
// and by single-node development setups; the compare-and-set semantics
// match the postgres implementation.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/apperr"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/repository"
)

type ticketRow struct {
	t   *models.Ticket
	seq uint64 // insertion order, tie-break for equal timestamps
}

type TicketRepo struct {
	mu          sync.Mutex
	seq         uint64
	tickets     map[string]*ticketRow
	events      map[string][]models.TicketEvent
	attachments map[string][]models.TicketAttachment
}

func NewTicketRepo() *TicketRepo {
	return &TicketRepo{
		tickets:     map[string]*ticketRow{},
		events:      map[string][]models.TicketEvent{},
		attachments: map[string][]models.TicketAttachment{},
	}
}

func (r *TicketRepo) Create(ctx context.Context, t *models.Ticket, ev *models.TicketEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[t.ID]; ok {
		return apperr.ErrWriteConflict
	}
	r.seq++
	r.tickets[t.ID] = &ticketRow{t: t.Clone(), seq: r.seq}
	if ev != nil {
		r.events[t.ID] = append(r.events[t.ID], *ev)
	}
	return nil
}

func (r *TicketRepo) Get(ctx context.Context, id string) (*models.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.tickets[id]
	if !ok {
		return nil, nil
	}
	return row.t.Clone(), nil
}

func (r *TicketRepo) ApplyStatusChange(ctx context.Context, next *models.Ticket, from models.TicketStatus, ev *models.TicketEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.tickets[next.ID]
	if !ok {
		return apperr.NotFoundf("ticket %s not found", next.ID)
	}
	if row.t.Status != from {
		return apperr.ErrWriteConflict
	}
	row.t = next.Clone()
	r.events[next.ID] = append(r.events[next.ID], *ev)
	return nil
}

func (r *TicketRepo) SetRating(ctx context.Context, id string, rating int, feedback string, ev *models.TicketEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.tickets[id]
	if !ok {
		return apperr.NotFoundf("ticket %s not found", id)
	}
	if row.t.Status != models.StatusResolved {
		return apperr.ErrWriteConflict
	}
	t := row.t.Clone()
	t.CitizenRating = &rating
	t.CitizenFeedback = feedback
	t.UpdatedAt = ev.CreatedAt
	row.t = t
	r.events[id] = append(r.events[id], *ev)
	return nil
}

func (r *TicketRepo) AppendEvent(ctx context.Context, ev *models.TicketEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.tickets[ev.TicketID]
	if !ok {
		return apperr.NotFoundf("ticket %s not found", ev.TicketID)
	}
	row.t.UpdatedAt = ev.CreatedAt
	r.events[ev.TicketID] = append(r.events[ev.TicketID], *ev)
	return nil
}

func (r *TicketRepo) AppendAttachment(ctx context.Context, at *models.TicketAttachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.tickets[at.TicketID]
	if !ok {
		return apperr.NotFoundf("ticket %s not found", at.TicketID)
	}
	row.t.UpdatedAt = at.CreatedAt
	r.attachments[at.TicketID] = append(r.attachments[at.TicketID], *at)
	return nil
}

func (r *TicketRepo) ListByCreator(ctx context.Context, userID string) ([]models.Ticket, error) {
	return r.collect(func(t *models.Ticket) bool { return t.CreatedBy == userID }, byCreatedDesc), nil
}

func (r *TicketRepo) ListByAssignee(ctx context.Context, userID string) ([]models.Ticket, error) {
	return r.collect(func(t *models.Ticket) bool { return t.AssignedTo == userID }, byUpdatedDesc), nil
}

func (r *TicketRepo) SupervisorQueue(ctx context.Context, userID string) ([]models.Ticket, error) {
	return r.collect(func(t *models.Ticket) bool {
		return t.CurrentSupervisor == userID && t.Status == models.StatusWaitingSupervisor
	}, byUpdatedAsc), nil
}

func (r *TicketRepo) Detail(ctx context.Context, id string) (*models.TicketDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.tickets[id]
	if !ok {
		return nil, nil
	}
	d := &models.TicketDetail{Ticket: *row.t.Clone()}
	d.Events = append(d.Events, r.events[id]...)
	d.Attachments = append(d.Attachments, r.attachments[id]...)
	sort.SliceStable(d.Events, func(i, j int) bool {
		return d.Events[i].CreatedAt.Before(d.Events[j].CreatedAt)
	})
	sort.SliceStable(d.Attachments, func(i, j int) bool {
		return d.Attachments[i].CreatedAt.Before(d.Attachments[j].CreatedAt)
	})
	return d, nil
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
	order := byUpdatedDesc
	switch {
	case f.Sort == "created_at" && f.Order == "asc":
		order = byCreatedAsc
	case f.Sort == "created_at":
		order = byCreatedDesc
	case f.Order == "asc":
		order = byUpdatedAsc
	}
	all := r.collect(func(t *models.Ticket) bool {
		if f.Status != "" && string(t.Status) != f.Status {
			return false
		}
		if f.Category != "" && t.Category != f.Category {
			return false
		}
		if f.AssignedTo != "" && t.AssignedTo != f.AssignedTo {
			return false
		}
		if q := strings.TrimSpace(f.Q); q != "" {
			q = strings.ToLower(q)
			if !strings.Contains(strings.ToLower(t.Title), q) &&
				!strings.Contains(strings.ToLower(t.Description), q) {
				return false
			}
		}
		return true
	}, order)
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *TicketRepo) ChangedSince(ctx context.Context, since time.Time) ([]models.Ticket, error) {
	return r.collect(func(t *models.Ticket) bool { return !t.UpdatedAt.Before(since) }, byUpdatedAsc), nil
}

type lessFn func(a, b *ticketRow) bool

func byCreatedDesc(a, b *ticketRow) bool {
	if !a.t.CreatedAt.Equal(b.t.CreatedAt) {
		return a.t.CreatedAt.After(b.t.CreatedAt)
	}
	return a.seq > b.seq
}

func byCreatedAsc(a, b *ticketRow) bool { return byCreatedDesc(b, a) }

func byUpdatedDesc(a, b *ticketRow) bool {
	if !a.t.UpdatedAt.Equal(b.t.UpdatedAt) {
		return a.t.UpdatedAt.After(b.t.UpdatedAt)
	}
	return a.seq > b.seq
}

func byUpdatedAsc(a, b *ticketRow) bool { return byUpdatedDesc(b, a) }

func (r *TicketRepo) collect(keep func(*models.Ticket) bool, less lessFn) []models.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []*ticketRow
	for _, row := range r.tickets {
		if keep(row.t) {
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
	out := make([]models.Ticket, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.t.Clone())
	}
	return out
}
