package sync

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/apperr"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/replica"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/repository/memory"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/service"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/session"
)

// localRemote runs the authoritative applier in-process so engine tests
// exercise the full replay path without HTTP. offline simulates a dead
// link; failAfterApply delivers the verdict but then reports a network
// failure, forcing a duplicate delivery on the retry.
type localRemote struct {
	applier *Applier
	svc     *service.TicketService
	actors  map[string]models.Actor

	offline        bool
	failAfterApply int
}

func (r *localRemote) Apply(ctx context.Context, token string, m Mutation) (*Result, error) {
	if r.offline {
		return nil, apperr.Networkf("connection refused")
	}
	actor, ok := r.actors[token]
	if !ok {
		return nil, apperr.Forbiddenf("unknown token")
	}
	res, err := r.applier.Apply(ctx, actor, m)
	if err == nil && r.failAfterApply > 0 {
		r.failAfterApply--
		return nil, apperr.Networkf("connection reset mid-response")
	}
	return res, err
}

func (r *localRemote) Changes(ctx context.Context, token string, since time.Time) ([]models.Ticket, error) {
	if r.offline {
		return nil, apperr.Networkf("connection refused")
	}
	return r.svc.ChangedSince(ctx, since)
}

func (r *localRemote) Detail(ctx context.Context, token string, ticketID string) (*models.TicketDetail, error) {
	if r.offline {
		return nil, apperr.Networkf("connection refused")
	}
	return r.svc.Detail(ctx, ticketID)
}

type engineFixture struct {
	engine *Engine
	rep    *replica.Replica
	remote *localRemote
	svc    *service.TicketService

	citizenSess *session.Session
	staffSess   *session.Session
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	tickets := memory.NewTicketRepo()
	users := memory.NewUserRepo()
	svc := service.NewTicketService(tickets, users)
	ctx := context.Background()

	citizen := models.User{ID: "cit-1", Role: models.RoleCitizen, Name: "Meena", Phone: "9840000001"}
	staff1 := models.User{ID: "staff-1", Role: models.RoleStaff, Name: "Arun", Email: "arun@corp.example"}
	staff2 := models.User{ID: "staff-2", Role: models.RoleStaff, Name: "Divya", Email: "divya@corp.example"}
	for _, u := range []models.User{citizen, staff1, staff2} {
		u := u
		if err := users.Create(ctx, &u, "x"); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	remote := &localRemote{
		applier: NewApplier(svc, memory.NewMutationLog(), zerolog.Nop()),
		svc:     svc,
		actors: map[string]models.Actor{
			"tok-cit":    {ID: "cit-1", Role: models.RoleCitizen},
			"tok-staff1": {ID: "staff-1", Role: models.RoleStaff},
		},
	}

	rep, err := replica.Open(":memory:")
	if err != nil {
		t.Fatalf("open replica: %v", err)
	}
	t.Cleanup(func() { rep.Close() })

	eng := NewEngine(rep, remote, "client-1", zerolog.Nop())
	eng.retryBase = time.Millisecond

	return &engineFixture{
		engine:      eng,
		rep:         rep,
		remote:      remote,
		svc:         svc,
		citizenSess: session.New("tok-cit", citizen),
		staffSess:   session.New("tok-staff1", staff1),
	}
}

func TestOfflineCreateThenSync(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(t)
	ctx := context.Background()

	f.remote.offline = true
	tk, err := f.engine.CreateTicket(f.citizenSess, service.CreateTicketInput{
		Category:    "garbage",
		Description: "Bin overflowing for three days.",
	})
	if err != nil {
		t.Fatalf("offline create: %v", err)
	}

	// the optimistic row is readable immediately
	mine, err := f.engine.MyTickets(f.citizenSess)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].ID != tk.ID {
		t.Fatalf("local read after offline create: %+v", mine)
	}

	// push fails transiently, the queue survives
	if _, err := f.engine.Push(ctx, f.citizenSess); !apperr.IsKind(err, apperr.KindNetwork) {
		t.Fatalf("offline push = %v, want network error", err)
	}
	pending, err := f.rep.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("queue after failed push has %d entries, want 1", len(pending))
	}

	f.remote.offline = false
	conflicts, err := f.engine.Sync(ctx, f.citizenSess)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("unexpected conflicts: %v", conflicts)
	}

	got, err := f.svc.Get(ctx, tk.ID)
	if err != nil || got == nil {
		t.Fatalf("authoritative ticket after sync: %v %v", got, err)
	}
	pending, _ = f.rep.Pending()
	if len(pending) != 0 {
		t.Fatalf("queue not drained, %d left", len(pending))
	}

	wm, err := f.rep.Watermark()
	if err != nil {
		t.Fatal(err)
	}
	if wm.IsZero() {
		t.Fatal("watermark did not advance after pull")
	}
}

func TestDuplicateDeliveryAppliesOnce(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(t)
	ctx := context.Background()

	tk, err := f.engine.CreateTicket(f.citizenSess, service.CreateTicketInput{
		Category:    "streetlight",
		Description: "Lamp post 14 dark.",
	})
	if err != nil {
		t.Fatal(err)
	}

	// the verdict is lost in transit once; the retry is a duplicate delivery
	f.remote.failAfterApply = 1
	conflicts, err := f.engine.Push(ctx, f.citizenSess)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("unexpected conflicts: %v", conflicts)
	}

	got, err := f.svc.Get(ctx, tk.ID)
	if err != nil || got == nil {
		t.Fatalf("authoritative ticket: %v %v", got, err)
	}
	if got.Status != models.StatusNew {
		t.Fatalf("duplicate delivery changed state; status = %s", got.Status)
	}
	if pending, _ := f.rep.Pending(); len(pending) != 0 {
		t.Fatalf("queue not drained, %d left", len(pending))
	}
}

func TestConflictRollsBackToAuthoritative(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(t)
	ctx := context.Background()

	// a ticket exists server-side and is replicated to the staff client
	srvTicket, err := f.svc.Create(ctx, models.Actor{ID: "cit-1", Role: models.RoleCitizen}, service.CreateTicketInput{
		Category:    "roads",
		Description: "Cracked pavement slab.",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.engine.Pull(ctx, f.staffSess); err != nil {
		t.Fatalf("pull: %v", err)
	}

	// another staff member claims it first, authoritatively
	if _, err := f.svc.Assign(ctx, models.Actor{ID: "staff-2", Role: models.RoleStaff}, srvTicket.ID, "staff-2"); err != nil {
		t.Fatal(err)
	}

	// the stale client still sees status new, so its claim passes locally
	if _, err := f.engine.AssignTicket(f.staffSess, srvTicket.ID, "staff-1"); err != nil {
		t.Fatalf("optimistic assign: %v", err)
	}

	conflicts, err := f.engine.Push(ctx, f.staffSess)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(conflicts))
	}
	if !apperr.IsKind(conflicts[0].Cause, apperr.KindInvalidTransition) {
		t.Fatalf("conflict cause = %v, want invalid_transition", conflicts[0].Cause)
	}
	if conflicts[0].Ticket == nil || conflicts[0].Ticket.AssignedTo != "staff-2" {
		t.Fatalf("conflict must carry authoritative state, got %+v", conflicts[0].Ticket)
	}

	// the optimistic patch is rolled back, not retried
	local, err := f.rep.Get(srvTicket.ID)
	if err != nil {
		t.Fatal(err)
	}
	if local.AssignedTo != "staff-2" || local.Status != models.StatusAssigned {
		t.Fatalf("replica after rollback: assignedTo=%s status=%s", local.AssignedTo, local.Status)
	}
	if pending, _ := f.rep.Pending(); len(pending) != 0 {
		t.Fatalf("rejected mutation left queued, %d entries", len(pending))
	}
}

func TestPullNeverRegressesDirtyRows(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(t)
	ctx := context.Background()

	srvTicket, err := f.svc.Create(ctx, models.Actor{ID: "cit-1", Role: models.RoleCitizen}, service.CreateTicketInput{
		Category:    "water",
		Description: "Leaking main.",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.engine.Pull(ctx, f.staffSess); err != nil {
		t.Fatal(err)
	}

	// queue an unpushed optimistic claim, then pull the stale server row
	if _, err := f.engine.AssignTicket(f.staffSess, srvTicket.ID, "staff-1"); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.Pull(ctx, f.staffSess); err != nil {
		t.Fatal(err)
	}

	local, err := f.rep.Get(srvTicket.ID)
	if err != nil {
		t.Fatal(err)
	}
	if local.Status != models.StatusAssigned || local.AssignedTo != "staff-1" {
		t.Fatalf("pull regressed an unacknowledged local change: %+v", local)
	}
}

func TestSubscriptionSignalsOnMutation(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(t)

	sub := f.engine.Subscribe()
	defer sub.Close()

	if _, err := f.engine.CreateTicket(f.citizenSess, service.CreateTicketInput{
		Category:    "parks",
		Description: "Broken swing set.",
	}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-sub.Changes():
	case <-time.After(time.Second):
		t.Fatal("no change signal after a local mutation")
	}
}

func TestLogoutWipesReplica(t *testing.T) {
	t.Parallel()
	f := newEngineFixture(t)

	tk, err := f.engine.CreateTicket(f.citizenSess, service.CreateTicketInput{
		Category:    "garbage",
		Description: "Debris dumped on the corner plot.",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := f.engine.Logout(f.citizenSess); err != nil {
		t.Fatalf("logout: %v", err)
	}

	local, err := f.rep.Get(tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if local != nil {
		t.Fatal("replica still holds tickets after logout")
	}
	if _, err := f.engine.MyTickets(f.citizenSess); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("engine call after logout = %v, want forbidden", err)
	}
}
