package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/apperr"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/repository"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/ticket"
)

// TicketService is the mutation layer: every named operation validates its
// input and the actor's capability against authoritative state before
// writing. Side effects are confined to one ticket-row update plus
// append-only event/attachment rows; nothing here ever updates or deletes
// an existing event or attachment.
type TicketService struct {
	tickets repository.TicketRepository
	users   repository.UserRepository
	now     func() time.Time
	newID   func() string
}

func NewTicketService(tickets repository.TicketRepository, users repository.UserRepository) *TicketService {
	return &TicketService{
		tickets: tickets,
		users:   users,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

type CreateTicketInput struct {
	// ID is set by offline-capable clients that generate the ticket ID
	// up front so queued follow-up mutations can reference it. Empty
	// means the server assigns one.
	ID          string   `json:"id,omitempty"`
	Category    string   `json:"category"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description"`
	AddressText string   `json:"addressText,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
}

type AttachmentInput struct {
	URL      string                `json:"url"`
	Kind     models.AttachmentKind `json:"kind"`
	MimeType string                `json:"mimeType,omitempty"`
	Caption  string                `json:"caption,omitempty"`
}

func (s *TicketService) Create(ctx context.Context, actor models.Actor, in CreateTicketInput) (*models.Ticket, error) {
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	if in.Category == "" {
		return nil, apperr.Validationf("category is required")
	}
	if in.Description == "" {
		return nil, apperr.Validationf("description is required")
	}
	id := in.ID
	if id == "" {
		id = s.newID()
	}
	now := s.now()
	t := &models.Ticket{
		ID:          id,
		CreatedBy:   actor.ID,
		Category:    in.Category,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		AddressText: strings.TrimSpace(in.AddressText),
		Lat:         in.Lat,
		Lng:         in.Lng,
		Status:      models.StatusNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tickets.Create(ctx, t, nil); err != nil {
		return nil, err
	}
	return t, nil
}

// Assign claims a new ticket for a staff member: the new→assigned edge,
// with assigned_to set in the same mutation.
func (s *TicketService) Assign(ctx context.Context, actor models.Actor, ticketID, assigneeID string) (*models.Ticket, error) {
	if assigneeID == "" {
		return nil, apperr.Validationf("assignee is required")
	}
	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		return nil, err
	}
	if assignee == nil || !assignee.Role.StaffLevel() {
		return nil, apperr.Validationf("assignee must be a staff member")
	}
	t, err := s.transition(ctx, actor, ticketID, models.StatusAssigned, func(next *models.Ticket) {
		next.AssignedTo = assigneeID
	}, "assigned to "+assignee.Name)
	if err != nil {
		return nil, err
	}
	// a separate assignment row records who took the ticket; the
	// status_change row above records the edge itself
	ev := &models.TicketEvent{
		ID:        s.newID(),
		TicketID:  ticketID,
		ActorID:   actor.ID,
		Type:      models.EventAssignment,
		Message:   assigneeID,
		CreatedAt: t.UpdatedAt,
	}
	if err := s.tickets.AppendEvent(ctx, ev); err != nil {
		return nil, err
	}
	return t, nil
}

// Transition moves a ticket along one lifecycle edge. supervisorID is
// required for the escalation edge and names the single reviewing
// supervisor from that point on.
func (s *TicketService) Transition(ctx context.Context, actor models.Actor, ticketID string, to models.TicketStatus, supervisorID, message string) (*models.Ticket, error) {
	var mutate func(*models.Ticket)
	if to == models.StatusWaitingSupervisor {
		if supervisorID == "" {
			return nil, apperr.Validationf("escalation requires a supervisor")
		}
		sup, err := s.users.GetByID(ctx, supervisorID)
		if err != nil {
			return nil, err
		}
		if sup == nil || (sup.Role != models.RoleSupervisor && sup.Role != models.RoleAdmin) {
			return nil, apperr.Validationf("reviewer must be a supervisor")
		}
		mutate = func(next *models.Ticket) { next.CurrentSupervisor = supervisorID }
	}
	return s.transition(ctx, actor, ticketID, to, mutate, message)
}

func (s *TicketService) transition(ctx context.Context, actor models.Actor, ticketID string, to models.TicketStatus, mutate func(*models.Ticket), message string) (*models.Ticket, error) {
	cur, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, apperr.NotFoundf("ticket %s not found", ticketID)
	}

	next := cur.Clone()
	if mutate != nil {
		mutate(next)
	}
	if err := ticket.Check(cur.Status, to, next, actor); err != nil {
		return nil, err
	}

	now := s.now()
	next.Status = to
	next.UpdatedAt = now
	if to == models.StatusResolved && next.ClosedAt == nil {
		next.ClosedAt = &now
	}
	ev := &models.TicketEvent{
		ID:         s.newID(),
		TicketID:   ticketID,
		ActorID:    actor.ID,
		Type:       models.EventStatusChange,
		FromStatus: cur.Status,
		ToStatus:   to,
		Message:    message,
		CreatedAt:  now,
	}

	if err := s.tickets.ApplyStatusChange(ctx, next, cur.Status, ev); err != nil {
		if err == apperr.ErrWriteConflict {
			// Lost the race: another actor moved the ticket first. Report
			// against the fresh authoritative status.
			fresh, ferr := s.tickets.Get(ctx, ticketID)
			if ferr == nil && fresh != nil {
				return nil, apperr.InvalidTransitionf("cannot move ticket from %s to %s", fresh.Status, to)
			}
			return nil, apperr.InvalidTransitionf("cannot move ticket to %s", to)
		}
		return nil, err
	}
	return next, nil
}

func (s *TicketService) Comment(ctx context.Context, actor models.Actor, ticketID, message string) (*models.TicketEvent, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.Validationf("message is required")
	}
	cur, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, apperr.NotFoundf("ticket %s not found", ticketID)
	}
	ev := &models.TicketEvent{
		ID:        s.newID(),
		TicketID:  ticketID,
		ActorID:   actor.ID,
		Type:      models.EventComment,
		Message:   message,
		CreatedAt: s.now(),
	}
	if err := s.tickets.AppendEvent(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *TicketService) Attach(ctx context.Context, actor models.Actor, ticketID string, in AttachmentInput) (*models.TicketAttachment, error) {
	in.URL = strings.TrimSpace(in.URL)
	if in.URL == "" {
		return nil, apperr.Validationf("url is required")
	}
	if !in.Kind.Valid() {
		return nil, apperr.Validationf("unknown attachment kind %q", in.Kind)
	}
	cur, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, apperr.NotFoundf("ticket %s not found", ticketID)
	}
	at := &models.TicketAttachment{
		ID:         s.newID(),
		TicketID:   ticketID,
		UploadedBy: actor.ID,
		Kind:       in.Kind,
		URL:        in.URL,
		MimeType:   in.MimeType,
		Caption:    strings.TrimSpace(in.Caption),
		CreatedAt:  s.now(),
	}
	if err := s.tickets.AppendAttachment(ctx, at); err != nil {
		return nil, err
	}
	return at, nil
}

// Rate records the creating citizen's rating of a resolved ticket.
func (s *TicketService) Rate(ctx context.Context, actor models.Actor, ticketID string, rating int, feedback string) (*models.Ticket, error) {
	if rating < 1 || rating > 5 {
		return nil, apperr.Validationf("rating must be between 1 and 5")
	}
	cur, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, apperr.NotFoundf("ticket %s not found", ticketID)
	}
	if cur.CreatedBy != actor.ID {
		return nil, apperr.Forbiddenf("only the reporting citizen may rate this ticket")
	}
	if cur.Status != models.StatusResolved {
		return nil, apperr.Forbiddenf("ticket is not resolved yet")
	}
	ev := &models.TicketEvent{
		ID:        s.newID(),
		TicketID:  ticketID,
		ActorID:   actor.ID,
		Type:      models.EventRating,
		Message:   strings.TrimSpace(feedback),
		CreatedAt: s.now(),
	}
	if err := s.tickets.SetRating(ctx, ticketID, rating, strings.TrimSpace(feedback), ev); err != nil {
		if err == apperr.ErrWriteConflict {
			return nil, apperr.Forbiddenf("ticket is not resolved yet")
		}
		return nil, err
	}
	return s.tickets.Get(ctx, ticketID)
}

// -----------------------------------------------------------------------------
// Query layer: named, deterministic read views.
// -----------------------------------------------------------------------------

// Get returns nil, nil when the ticket does not exist; the sync applier
// uses it to attach authoritative state to rejections.
func (s *TicketService) Get(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return s.tickets.Get(ctx, ticketID)
}

func (s *TicketService) MyTickets(ctx context.Context, userID string) ([]models.Ticket, error) {
	return s.tickets.ListByCreator(ctx, userID)
}

func (s *TicketService) AssignedTickets(ctx context.Context, userID string) ([]models.Ticket, error) {
	return s.tickets.ListByAssignee(ctx, userID)
}

func (s *TicketService) SupervisorQueue(ctx context.Context, userID string) ([]models.Ticket, error) {
	return s.tickets.SupervisorQueue(ctx, userID)
}

func (s *TicketService) Detail(ctx context.Context, ticketID string) (*models.TicketDetail, error) {
	d, err := s.tickets.Detail(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, apperr.NotFoundf("ticket %s not found", ticketID)
	}
	return d, nil
}

// List is the back-office view over all tickets; staff-level roles only.
func (s *TicketService) List(ctx context.Context, actor models.Actor, f repository.TicketFilter) ([]models.Ticket, int, error) {
	if !actor.Role.StaffLevel() {
		return nil, 0, apperr.Forbiddenf("role %s cannot list all tickets", actor.Role)
	}
	return s.tickets.List(ctx, f)
}

// ChangedSince feeds the sync pull endpoint.
func (s *TicketService) ChangedSince(ctx context.Context, since time.Time) ([]models.Ticket, error) {
	return s.tickets.ChangedSince(ctx, since)
}
