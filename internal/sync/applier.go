package sync

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/apperr"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/repository"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/service"
)

// Applier replays client mutations against the authoritative store. Each
// mutation ID is applied at most once: a replay returns the recorded
// verdict plus current authoritative state instead of re-running the op.
type Applier struct {
	svc *service.TicketService
	log repository.MutationLog
	zl  zerolog.Logger
}

func NewApplier(svc *service.TicketService, log repository.MutationLog, zl zerolog.Logger) *Applier {
	return &Applier{svc: svc, log: log, zl: zl}
}

// Apply validates m against current authoritative state, not the
// client's possibly-stale view. Infrastructure failures return an error
// without recording anything, so the client retries; domain rejections
// are recorded and returned as a rejected Result carrying the
// authoritative ticket.
func (a *Applier) Apply(ctx context.Context, actor models.Actor, m Mutation) (*Result, error) {
	if rec, err := a.log.Get(ctx, m.ID); err != nil {
		return nil, err
	} else if rec != nil {
		return a.replay(ctx, rec)
	}

	ticketID, err := a.dispatch(ctx, actor, m)
	rec := &models.MutationRecord{
		ID:        m.ID,
		ClientID:  m.ClientID,
		Seq:       m.Seq,
		Op:        string(m.Op),
		TicketID:  ticketID,
		Status:    models.MutationApplied,
		CreatedAt: m.QueuedAt,
	}
	if err != nil {
		kind := apperr.KindOf(err)
		if kind == apperr.KindNetwork {
			// transient: nothing recorded, safe to retry
			return nil, err
		}
		rec.Status = models.MutationRejected
		rec.Error = err.Error()
		if rerr := a.record(ctx, rec); rerr != nil {
			return nil, rerr
		}
		res := &Result{
			MutationID: m.ID,
			Status:     models.MutationRejected,
			Error:      err.Error(),
			ErrorKind:  string(kind),
		}
		if m.TicketID != "" {
			if t, terr := a.svc.Get(ctx, m.TicketID); terr == nil {
				res.Ticket = t
			}
		}
		a.zl.Debug().Str("mutation", m.ID).Str("op", string(m.Op)).Str("kind", string(kind)).Msg("mutation rejected")
		return res, nil
	}

	if rerr := a.record(ctx, rec); rerr != nil {
		return nil, rerr
	}
	res := &Result{MutationID: m.ID, Status: models.MutationApplied}
	if ticketID != "" {
		if t, terr := a.svc.Get(ctx, ticketID); terr == nil {
			res.Ticket = t
		}
	}
	return res, nil
}

// record tolerates losing a duplicate race: the earlier writer's verdict
// stands and is replayed.
func (a *Applier) record(ctx context.Context, rec *models.MutationRecord) error {
	if err := a.log.Record(ctx, rec); err != nil && err != apperr.ErrWriteConflict {
		return err
	}
	return nil
}

func (a *Applier) replay(ctx context.Context, rec *models.MutationRecord) (*Result, error) {
	res := &Result{
		MutationID: rec.ID,
		Status:     rec.Status,
		Duplicate:  true,
		Error:      rec.Error,
	}
	if rec.TicketID != "" {
		if t, err := a.svc.Get(ctx, rec.TicketID); err == nil {
			res.Ticket = t
		}
	}
	return res, nil
}

// dispatch runs one named operation and returns the ticket it touched.
func (a *Applier) dispatch(ctx context.Context, actor models.Actor, m Mutation) (string, error) {
	switch m.Op {
	case OpCreateTicket:
		var in service.CreateTicketInput
		if err := json.Unmarshal(m.Payload, &in); err != nil {
			return "", apperr.Validationf("malformed payload: %v", err)
		}
		in.ID = m.TicketID
		t, err := a.svc.Create(ctx, actor, in)
		if err != nil {
			return "", err
		}
		return t.ID, nil
	case OpAssignTicket:
		var args AssignArgs
		if err := json.Unmarshal(m.Payload, &args); err != nil {
			return "", apperr.Validationf("malformed payload: %v", err)
		}
		_, err := a.svc.Assign(ctx, actor, m.TicketID, args.AssigneeID)
		return m.TicketID, err
	case OpTransitionStatus:
		var args TransitionArgs
		if err := json.Unmarshal(m.Payload, &args); err != nil {
			return "", apperr.Validationf("malformed payload: %v", err)
		}
		_, err := a.svc.Transition(ctx, actor, m.TicketID, args.To, args.SupervisorID, args.Message)
		return m.TicketID, err
	case OpAddComment:
		var args CommentArgs
		if err := json.Unmarshal(m.Payload, &args); err != nil {
			return "", apperr.Validationf("malformed payload: %v", err)
		}
		_, err := a.svc.Comment(ctx, actor, m.TicketID, args.Message)
		return m.TicketID, err
	case OpAddAttachment:
		var in service.AttachmentInput
		if err := json.Unmarshal(m.Payload, &in); err != nil {
			return "", apperr.Validationf("malformed payload: %v", err)
		}
		_, err := a.svc.Attach(ctx, actor, m.TicketID, in)
		return m.TicketID, err
	case OpRateTicket:
		var args RateArgs
		if err := json.Unmarshal(m.Payload, &args); err != nil {
			return "", apperr.Validationf("malformed payload: %v", err)
		}
		_, err := a.svc.Rate(ctx, actor, m.TicketID, args.Rating, args.Feedback)
		return m.TicketID, err
	default:
		return "", apperr.Validationf("unknown operation %q", m.Op)
	}
}
