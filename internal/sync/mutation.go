// Package sync reconciles optimistic client mutations with the
// authoritative store. The server half (Applier) replays mutations
// idempotently; the client half (Engine) queues mutations against a
// local replica and converges on authoritative state.
package sync

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
)

type Op string

const (
	OpCreateTicket     Op = "create_ticket"
	OpAssignTicket     Op = "assign_ticket"
	OpTransitionStatus Op = "transition_status"
	OpAddComment       Op = "add_comment"
	OpAddAttachment    Op = "add_attachment"
	OpRateTicket       Op = "rate_ticket"
)

// Mutation is one queued, idempotently-identified operation. ID is
// client-generated before the optimistic local apply, so a network retry
// that duplicates delivery is detected by the authoritative store.
type Mutation struct {
	ID       string          `json:"id"`
	ClientID string          `json:"clientId"`
	Seq      uint64          `json:"seq"`
	Op       Op              `json:"op"`
	TicketID string          `json:"ticketId,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	QueuedAt time.Time       `json:"queuedAt"`
}

type AssignArgs struct {
	AssigneeID string `json:"assigneeId"`
}

type TransitionArgs struct {
	To           models.TicketStatus `json:"to"`
	SupervisorID string              `json:"supervisorId,omitempty"`
	Message      string              `json:"message,omitempty"`
}

type CommentArgs struct {
	Message string `json:"message"`
}

type RateArgs struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback,omitempty"`
}

func newMutation(clientID string, seq uint64, op Op, ticketID string, args any, at time.Time) (Mutation, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return Mutation{}, err
	}
	return Mutation{
		ID:       uuid.NewString(),
		ClientID: clientID,
		Seq:      seq,
		Op:       op,
		TicketID: ticketID,
		Payload:  payload,
		QueuedAt: at,
	}, nil
}

// Result is the authoritative store's verdict on one mutation. Ticket
// carries the authoritative state after the decision so a rejected
// client can reconcile without a second round trip.
type Result struct {
	MutationID string                `json:"mutationId"`
	Status     models.MutationStatus `json:"status"`
	Duplicate  bool                  `json:"duplicate,omitempty"`
	Error      string                `json:"error,omitempty"`
	ErrorKind  string                `json:"errorKind,omitempty"`
	Ticket     *models.Ticket        `json:"ticket,omitempty"`
}
