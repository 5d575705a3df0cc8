package repository

import (
	"context"
	"time"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
)

// TicketRepository is the authoritative store for tickets and their
// append-only events and attachments. Implementations must make the
// ticket-row write and the event-row append one logical unit: no state
// may exist where one happened without the other.
type TicketRepository interface {
	// Create inserts a fresh ticket, with its first event when ev is
	// non-nil.
	Create(ctx context.Context, t *models.Ticket, ev *models.TicketEvent) error
	// Get returns nil, nil when the ticket does not exist.
	Get(ctx context.Context, id string) (*models.Ticket, error)
	// ApplyStatusChange stores next only if the persisted status still
	// equals from, appending ev in the same unit. A failed compare
	// returns apperr.ErrWriteConflict; the caller re-reads and decides.
	ApplyStatusChange(ctx context.Context, next *models.Ticket, from models.TicketStatus, ev *models.TicketEvent) error
	// SetRating writes rating/feedback conditionally on the ticket still
	// being resolved, appending ev in the same unit.
	SetRating(ctx context.Context, id string, rating int, feedback string, ev *models.TicketEvent) error
	AppendEvent(ctx context.Context, ev *models.TicketEvent) error
	AppendAttachment(ctx context.Context, at *models.TicketAttachment) error

	// Named read views, ordering per the query contract.
	ListByCreator(ctx context.Context, userID string) ([]models.Ticket, error)
	ListByAssignee(ctx context.Context, userID string) ([]models.Ticket, error)
	SupervisorQueue(ctx context.Context, userID string) ([]models.Ticket, error)
	Detail(ctx context.Context, id string) (*models.TicketDetail, error)
	List(ctx context.Context, f TicketFilter) ([]models.Ticket, int, error)
	// ChangedSince feeds the sync pull: tickets with updated_at >= since,
	// updated_at ascending.
	ChangedSince(ctx context.Context, since time.Time) ([]models.Ticket, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (*models.User, string /*passwordHash*/, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, string /*passwordHash*/, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error)
	UpsertStaffProfile(ctx context.Context, p *models.StaffProfile) error
	GetStaffProfile(ctx context.Context, userID string) (*models.StaffProfile, error)
}

// MutationLog is the idempotency ledger consulted by the sync applier.
// Record must reject a duplicate mutation ID with apperr.ErrWriteConflict.
type MutationLog interface {
	Get(ctx context.Context, id string) (*models.MutationRecord, error)
	Record(ctx context.Context, rec *models.MutationRecord) error
}
