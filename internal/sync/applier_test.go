package sync

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/apperr"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/repository/memory"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/service"
)

type applierFixture struct {
	applier *Applier
	svc     *service.TicketService

	citizen models.Actor
	staff   models.Actor
}

func newApplierFixture(t *testing.T) *applierFixture {
	t.Helper()
	tickets := memory.NewTicketRepo()
	users := memory.NewUserRepo()
	svc := service.NewTicketService(tickets, users)

	ctx := context.Background()
	seed := []*models.User{
		{ID: "cit-1", Role: models.RoleCitizen, Name: "Meena", Phone: "9840000001"},
		{ID: "staff-1", Role: models.RoleStaff, Name: "Arun", Email: "arun@corp.example"},
	}
	for _, u := range seed {
		if err := users.Create(ctx, u, "x"); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	return &applierFixture{
		applier: NewApplier(svc, memory.NewMutationLog(), zerolog.Nop()),
		svc:     svc,
		citizen: models.Actor{ID: "cit-1", Role: models.RoleCitizen},
		staff:   models.Actor{ID: "staff-1", Role: models.RoleStaff},
	}
}

func mustMutation(t *testing.T, seq uint64, op Op, ticketID string, args any) Mutation {
	t.Helper()
	m, err := newMutation("client-1", seq, op, ticketID, args, time.Now())
	if err != nil {
		t.Fatalf("build mutation: %v", err)
	}
	return m
}

func TestApplyCreateThenReplayIsIdempotent(t *testing.T) {
	t.Parallel()
	f := newApplierFixture(t)
	ctx := context.Background()

	m := mustMutation(t, 1, OpCreateTicket, "t-100", service.CreateTicketInput{
		Category:    "water",
		Description: "No supply since Monday in our street.",
	})
	res, err := f.applier.Apply(ctx, f.citizen, m)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Status != models.MutationApplied || res.Duplicate {
		t.Fatalf("first apply: status=%s duplicate=%v", res.Status, res.Duplicate)
	}
	if res.Ticket == nil || res.Ticket.ID != "t-100" {
		t.Fatalf("applied result must carry the created ticket, got %+v", res.Ticket)
	}

	// a retried delivery replays the recorded verdict without re-running
	res2, err := f.applier.Apply(ctx, f.citizen, m)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res2.Status != models.MutationApplied || !res2.Duplicate {
		t.Fatalf("replay: status=%s duplicate=%v", res2.Status, res2.Duplicate)
	}

	got, err := f.svc.Get(ctx, "t-100")
	if err != nil || got == nil {
		t.Fatalf("get after replay: %v %v", got, err)
	}
	if got.Status != models.StatusNew {
		t.Fatalf("replay must not re-run the create; status = %s", got.Status)
	}
}

func TestApplyRecordsDomainRejection(t *testing.T) {
	t.Parallel()
	f := newApplierFixture(t)
	ctx := context.Background()

	create := mustMutation(t, 1, OpCreateTicket, "t-200", service.CreateTicketInput{
		Category:    "roads",
		Description: "Broken speed bump.",
	})
	if _, err := f.applier.Apply(ctx, f.citizen, create); err != nil {
		t.Fatalf("create: %v", err)
	}

	// new→resolved is not an edge; the verdict is rejection, not an error
	bad := mustMutation(t, 2, OpTransitionStatus, "t-200", TransitionArgs{To: models.StatusResolved})
	res, err := f.applier.Apply(ctx, f.staff, bad)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Status != models.MutationRejected {
		t.Fatalf("status = %s, want rejected", res.Status)
	}
	if res.ErrorKind != string(apperr.KindInvalidTransition) {
		t.Fatalf("error kind = %q, want %q", res.ErrorKind, apperr.KindInvalidTransition)
	}
	if res.Ticket == nil || res.Ticket.Status != models.StatusNew {
		t.Fatalf("rejection must carry authoritative state, got %+v", res.Ticket)
	}

	// the rejection itself is recorded and replayed verbatim
	res2, err := f.applier.Apply(ctx, f.staff, bad)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res2.Status != models.MutationRejected || !res2.Duplicate {
		t.Fatalf("replayed rejection: status=%s duplicate=%v", res2.Status, res2.Duplicate)
	}
}

func TestApplyMalformedPayload(t *testing.T) {
	t.Parallel()
	f := newApplierFixture(t)

	m := mustMutation(t, 1, OpTransitionStatus, "t-1", nil)
	m.Payload = []byte(`{not json`)
	res, err := f.applier.Apply(context.Background(), f.staff, m)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Status != models.MutationRejected || res.ErrorKind != string(apperr.KindValidation) {
		t.Fatalf("malformed payload: status=%s kind=%s", res.Status, res.ErrorKind)
	}
}

func TestApplyUnknownOp(t *testing.T) {
	t.Parallel()
	f := newApplierFixture(t)

	m := mustMutation(t, 1, Op("merge_tickets"), "t-1", nil)
	res, err := f.applier.Apply(context.Background(), f.staff, m)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Status != models.MutationRejected || res.ErrorKind != string(apperr.KindValidation) {
		t.Fatalf("unknown op: status=%s kind=%s", res.Status, res.ErrorKind)
	}
}
