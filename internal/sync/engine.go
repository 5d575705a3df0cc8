package sync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/apperr"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/replica"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/service"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/session"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/ticket"
)

// Remote is the authoritative store boundary as seen from a client.
// Implementations must tolerate duplicate delivery of the same mutation;
// the mutation ID makes replay safe.
type Remote interface {
	Apply(ctx context.Context, token string, m Mutation) (*Result, error)
	Changes(ctx context.Context, token string, since time.Time) ([]models.Ticket, error)
	Detail(ctx context.Context, token string, ticketID string) (*models.TicketDetail, error)
}

// Engine queues mutations against the local replica, applies them
// optimistically for immediate reads, and reconciles with the
// authoritative store on Push/Pull. Local reads never block on the
// network. All methods are safe for the single client goroutine plus a
// background sync goroutine.
type Engine struct {
	rep      *replica.Replica
	remote   Remote
	clientID string
	log      zerolog.Logger
	now      func() time.Time

	retryBase     time.Duration
	retryAttempts int

	subs *subscribers
}

func NewEngine(rep *replica.Replica, remote Remote, clientID string, log zerolog.Logger) *Engine {
	return &Engine{
		rep:           rep,
		remote:        remote,
		clientID:      clientID,
		log:           log,
		now:           time.Now,
		retryBase:     200 * time.Millisecond,
		retryAttempts: 3,
		subs:          newSubscribers(),
	}
}

func (e *Engine) enqueue(op Op, ticketID string, args any) (Mutation, error) {
	seq, err := e.rep.NextSeq()
	if err != nil {
		return Mutation{}, err
	}
	m, err := newMutation(e.clientID, seq, op, ticketID, args, e.now())
	if err != nil {
		return Mutation{}, err
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return Mutation{}, err
	}
	if err := e.rep.Enqueue(m.ID, m.Seq, payload, m.QueuedAt); err != nil {
		return Mutation{}, err
	}
	return m, nil
}

func (e *Engine) requireSession(sess *session.Session) error {
	if !sess.Valid() {
		return apperr.Forbiddenf("session is not valid")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Optimistic mutations. Each validates against the local replica with the
// same rules the authoritative store applies, queues the mutation, then
// applies the effect locally. The authoritative store re-validates on
// replay against its own state.
// -----------------------------------------------------------------------------

func (e *Engine) CreateTicket(sess *session.Session, in service.CreateTicketInput) (*models.Ticket, error) {
	if err := e.requireSession(sess); err != nil {
		return nil, err
	}
	if in.Category == "" {
		return nil, apperr.Validationf("category is required")
	}
	if in.Description == "" {
		return nil, apperr.Validationf("description is required")
	}
	now := e.now()
	t := &models.Ticket{
		ID:          uuid.NewString(),
		CreatedBy:   sess.User.ID,
		Category:    in.Category,
		Title:       in.Title,
		Description: in.Description,
		AddressText: in.AddressText,
		Lat:         in.Lat,
		Lng:         in.Lng,
		Status:      models.StatusNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := e.enqueue(OpCreateTicket, t.ID, in); err != nil {
		return nil, err
	}
	if err := e.rep.UpsertLocal(t); err != nil {
		return nil, err
	}
	e.subs.notify()
	return t, nil
}

func (e *Engine) AssignTicket(sess *session.Session, ticketID, assigneeID string) (*models.Ticket, error) {
	return e.optimisticTransition(sess, ticketID, models.StatusAssigned,
		func(next *models.Ticket) { next.AssignedTo = assigneeID },
		OpAssignTicket, AssignArgs{AssigneeID: assigneeID})
}

func (e *Engine) TransitionStatus(sess *session.Session, ticketID string, to models.TicketStatus, supervisorID, message string) (*models.Ticket, error) {
	var mutate func(*models.Ticket)
	if to == models.StatusWaitingSupervisor {
		if supervisorID == "" {
			return nil, apperr.Validationf("escalation requires a supervisor")
		}
		mutate = func(next *models.Ticket) { next.CurrentSupervisor = supervisorID }
	}
	return e.optimisticTransition(sess, ticketID, to, mutate,
		OpTransitionStatus, TransitionArgs{To: to, SupervisorID: supervisorID, Message: message})
}

func (e *Engine) optimisticTransition(sess *session.Session, ticketID string, to models.TicketStatus, mutate func(*models.Ticket), op Op, args any) (*models.Ticket, error) {
	if err := e.requireSession(sess); err != nil {
		return nil, err
	}
	cur, err := e.rep.Get(ticketID)
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
	if err := ticket.Check(cur.Status, to, next, sess.Actor()); err != nil {
		return nil, err
	}
	now := e.now()
	next.Status = to
	next.UpdatedAt = now
	if to == models.StatusResolved && next.ClosedAt == nil {
		next.ClosedAt = &now
	}
	if _, err := e.enqueue(op, ticketID, args); err != nil {
		return nil, err
	}
	if err := e.rep.UpsertLocal(next); err != nil {
		return nil, err
	}
	e.subs.notify()
	return next, nil
}

func (e *Engine) AddComment(sess *session.Session, ticketID, message string) error {
	if err := e.requireSession(sess); err != nil {
		return err
	}
	if message == "" {
		return apperr.Validationf("message is required")
	}
	return e.touchAndQueue(sess, ticketID, OpAddComment, CommentArgs{Message: message})
}

func (e *Engine) AddAttachment(sess *session.Session, ticketID string, in service.AttachmentInput) error {
	if err := e.requireSession(sess); err != nil {
		return err
	}
	if in.URL == "" {
		return apperr.Validationf("url is required")
	}
	if !in.Kind.Valid() {
		return apperr.Validationf("unknown attachment kind %q", in.Kind)
	}
	return e.touchAndQueue(sess, ticketID, OpAddAttachment, in)
}

func (e *Engine) touchAndQueue(sess *session.Session, ticketID string, op Op, args any) error {
	cur, err := e.rep.Get(ticketID)
	if err != nil {
		return err
	}
	if cur == nil {
		return apperr.NotFoundf("ticket %s not found", ticketID)
	}
	if _, err := e.enqueue(op, ticketID, args); err != nil {
		return err
	}
	next := cur.Clone()
	next.UpdatedAt = e.now()
	if err := e.rep.UpsertLocal(next); err != nil {
		return err
	}
	e.subs.notify()
	return nil
}

func (e *Engine) RateTicket(sess *session.Session, ticketID string, rating int, feedback string) (*models.Ticket, error) {
	if err := e.requireSession(sess); err != nil {
		return nil, err
	}
	if rating < 1 || rating > 5 {
		return nil, apperr.Validationf("rating must be between 1 and 5")
	}
	cur, err := e.rep.Get(ticketID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, apperr.NotFoundf("ticket %s not found", ticketID)
	}
	if cur.CreatedBy != sess.User.ID {
		return nil, apperr.Forbiddenf("only the reporting citizen may rate this ticket")
	}
	if cur.Status != models.StatusResolved {
		return nil, apperr.Forbiddenf("ticket is not resolved yet")
	}
	if _, err := e.enqueue(OpRateTicket, ticketID, RateArgs{Rating: rating, Feedback: feedback}); err != nil {
		return nil, err
	}
	next := cur.Clone()
	next.CitizenRating = &rating
	next.CitizenFeedback = feedback
	next.UpdatedAt = e.now()
	if err := e.rep.UpsertLocal(next); err != nil {
		return nil, err
	}
	e.subs.notify()
	return next, nil
}

// -----------------------------------------------------------------------------
// Reconciliation
// -----------------------------------------------------------------------------

// Push replays queued mutations in their original order. A rejected
// mutation rolls the local row back to the authoritative state carried
// in the result and is reported as a ReconciliationConflict; it is never
// dropped silently or retried blindly. Transient network failures leave
// the queue intact for the next Push.
func (e *Engine) Push(ctx context.Context, sess *session.Session) ([]*apperr.ReconciliationError, error) {
	if err := e.requireSession(sess); err != nil {
		return nil, err
	}
	pending, err := e.rep.Pending()
	if err != nil {
		return nil, err
	}
	var conflicts []*apperr.ReconciliationError
	for _, q := range pending {
		var m Mutation
		if err := json.Unmarshal(q.Payload, &m); err != nil {
			// unreadable queue entry: drop rather than wedge the queue
			e.log.Error().Err(err).Str("mutation", q.ID).Msg("discarding corrupt queued mutation")
			if derr := e.rep.Dequeue(q.ID); derr != nil {
				return conflicts, derr
			}
			continue
		}
		res, err := e.applyWithRetry(ctx, sess.Token, m)
		if err != nil {
			// retries exhausted; everything from here stays queued
			return conflicts, err
		}
		if err := e.accept(m, res, &conflicts); err != nil {
			return conflicts, err
		}
	}
	e.subs.notify()
	return conflicts, nil
}

func (e *Engine) accept(m Mutation, res *Result, conflicts *[]*apperr.ReconciliationError) error {
	if err := e.rep.Dequeue(m.ID); err != nil {
		return err
	}
	switch res.Status {
	case models.MutationApplied:
		if res.Ticket != nil {
			return e.rep.Accept(res.Ticket)
		}
		return nil
	default:
		// rejected: discard the optimistic patch and accept the
		// authoritative value
		if res.Ticket != nil {
			if err := e.rep.Accept(res.Ticket); err != nil {
				return err
			}
		} else if m.Op == OpCreateTicket {
			if err := e.rep.Delete(m.TicketID); err != nil {
				return err
			}
		}
		*conflicts = append(*conflicts, &apperr.ReconciliationError{
			MutationID: m.ID,
			Cause:      &apperr.Error{Kind: apperr.Kind(res.ErrorKind), Msg: res.Error},
			Ticket:     res.Ticket,
		})
		return nil
	}
}

func (e *Engine) applyWithRetry(ctx context.Context, token string, m Mutation) (*Result, error) {
	delay := e.retryBase
	var lastErr error
	for attempt := 0; attempt < e.retryAttempts; attempt++ {
		res, err := e.remote.Apply(ctx, token, m)
		if err == nil {
			return res, nil
		}
		if apperr.KindOf(err) != apperr.KindNetwork {
			return nil, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}

// Pull refreshes the replica from the authoritative change feed.
// Convergence is monotonic: rows older than the local copy, and rows
// with unacknowledged local changes, are never regressed.
func (e *Engine) Pull(ctx context.Context, sess *session.Session) error {
	if err := e.requireSession(sess); err != nil {
		return err
	}
	since, err := e.rep.Watermark()
	if err != nil {
		return err
	}
	changed, err := e.remote.Changes(ctx, sess.Token, since)
	if err != nil {
		return err
	}
	var merged bool
	watermark := since
	for i := range changed {
		ok, err := e.rep.Merge(&changed[i])
		if err != nil {
			return err
		}
		merged = merged || ok
		if changed[i].UpdatedAt.After(watermark) {
			watermark = changed[i].UpdatedAt
		}
	}
	if watermark.After(since) {
		if err := e.rep.SetWatermark(watermark); err != nil {
			return err
		}
	}
	if merged {
		e.subs.notify()
	}
	return nil
}

// Sync is the normal reconciliation cycle: replay the queue, then pull.
func (e *Engine) Sync(ctx context.Context, sess *session.Session) ([]*apperr.ReconciliationError, error) {
	conflicts, err := e.Push(ctx, sess)
	if err != nil {
		return conflicts, err
	}
	return conflicts, e.Pull(ctx, sess)
}

// RefreshDetail pulls one ticket's full audit trail into the replica.
func (e *Engine) RefreshDetail(ctx context.Context, sess *session.Session, ticketID string) error {
	if err := e.requireSession(sess); err != nil {
		return err
	}
	d, err := e.remote.Detail(ctx, sess.Token, ticketID)
	if err != nil {
		return err
	}
	if _, err := e.rep.Merge(&d.Ticket); err != nil {
		return err
	}
	if err := e.rep.StoreEvents(d.Events); err != nil {
		return err
	}
	if err := e.rep.StoreAttachments(d.Attachments); err != nil {
		return err
	}
	e.subs.notify()
	return nil
}

// -----------------------------------------------------------------------------
// Local reads: synchronous, possibly stale, never blocking.
// -----------------------------------------------------------------------------

func (e *Engine) MyTickets(sess *session.Session) ([]models.Ticket, error) {
	if err := e.requireSession(sess); err != nil {
		return nil, err
	}
	return e.rep.MyTickets(sess.User.ID)
}

func (e *Engine) AssignedTickets(sess *session.Session) ([]models.Ticket, error) {
	if err := e.requireSession(sess); err != nil {
		return nil, err
	}
	return e.rep.AssignedTickets(sess.User.ID)
}

func (e *Engine) SupervisorQueue(sess *session.Session) ([]models.Ticket, error) {
	if err := e.requireSession(sess); err != nil {
		return nil, err
	}
	return e.rep.SupervisorQueue(sess.User.ID)
}

func (e *Engine) TicketDetail(sess *session.Session, ticketID string) (*models.TicketDetail, error) {
	if err := e.requireSession(sess); err != nil {
		return nil, err
	}
	d, err := e.rep.Detail(ticketID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, apperr.NotFoundf("ticket %s not found", ticketID)
	}
	return d, nil
}

// Logout invalidates the session and clears the replica.
func (e *Engine) Logout(sess *session.Session) error {
	sess.Invalidate()
	e.subs.closeAll()
	return e.rep.Wipe()
}
