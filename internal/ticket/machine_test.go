package ticket

import (
	"testing"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/apperr"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
)

func TestAllowedEdges(t *testing.T) {
	t.Parallel()

	legal := []struct{ from, to models.TicketStatus }{
		{models.StatusNew, models.StatusAssigned},
		{models.StatusAssigned, models.StatusInProgress},
		{models.StatusInProgress, models.StatusWaitingSupervisor},
		{models.StatusWaitingSupervisor, models.StatusInProgress},
		{models.StatusWaitingSupervisor, models.StatusResolved},
		{models.StatusInProgress, models.StatusResolved},
	}
	legalSet := map[[2]models.TicketStatus]bool{}
	for _, e := range legal {
		legalSet[[2]models.TicketStatus{e.from, e.to}] = true
		if !Allowed(e.from, e.to) {
			t.Errorf("Allowed(%s, %s) = false, want true", e.from, e.to)
		}
	}

	all := []models.TicketStatus{
		models.StatusNew, models.StatusAssigned, models.StatusInProgress,
		models.StatusWaitingSupervisor, models.StatusResolved,
	}
	for _, from := range all {
		for _, to := range all {
			if legalSet[[2]models.TicketStatus{from, to}] {
				continue
			}
			if Allowed(from, to) {
				t.Errorf("Allowed(%s, %s) = true, want false", from, to)
			}
		}
	}
}

func TestResolvedIsTerminal(t *testing.T) {
	t.Parallel()

	for _, to := range []models.TicketStatus{
		models.StatusNew, models.StatusAssigned, models.StatusInProgress,
		models.StatusWaitingSupervisor,
	} {
		if Allowed(models.StatusResolved, to) {
			t.Errorf("resolved must have no outgoing edge, but resolved→%s is allowed", to)
		}
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	staff := models.Actor{ID: "staff-1", Role: models.RoleStaff}
	otherStaff := models.Actor{ID: "staff-2", Role: models.RoleStaff}
	citizen := models.Actor{ID: "cit-1", Role: models.RoleCitizen}
	sup := models.Actor{ID: "sup-1", Role: models.RoleSupervisor}
	otherSup := models.Actor{ID: "sup-2", Role: models.RoleSupervisor}
	admin := models.Actor{ID: "adm-1", Role: models.RoleAdmin}

	tests := []struct {
		name     string
		from, to models.TicketStatus
		next     models.Ticket
		actor    models.Actor
		wantKind apperr.Kind
	}{
		{
			name: "staff claims new ticket",
			from: models.StatusNew, to: models.StatusAssigned,
			next:  models.Ticket{AssignedTo: "staff-1"},
			actor: staff,
		},
		{
			name: "citizen cannot claim",
			from: models.StatusNew, to: models.StatusAssigned,
			next:  models.Ticket{AssignedTo: "staff-1"},
			actor: citizen, wantKind: apperr.KindForbidden,
		},
		{
			name: "claim without assignee",
			from: models.StatusNew, to: models.StatusAssigned,
			next:  models.Ticket{},
			actor: staff, wantKind: apperr.KindValidation,
		},
		{
			name: "assignee starts work",
			from: models.StatusAssigned, to: models.StatusInProgress,
			next:  models.Ticket{AssignedTo: "staff-1"},
			actor: staff,
		},
		{
			name: "non-assignee cannot start work",
			from: models.StatusAssigned, to: models.StatusInProgress,
			next:  models.Ticket{AssignedTo: "staff-1"},
			actor: otherStaff, wantKind: apperr.KindForbidden,
		},
		{
			name: "admin overrides assignee guard",
			from: models.StatusAssigned, to: models.StatusInProgress,
			next:  models.Ticket{AssignedTo: "staff-1"},
			actor: admin,
		},
		{
			name: "assignee escalates with supervisor set",
			from: models.StatusInProgress, to: models.StatusWaitingSupervisor,
			next:  models.Ticket{AssignedTo: "staff-1", CurrentSupervisor: "sup-1"},
			actor: staff,
		},
		{
			name: "escalation without supervisor",
			from: models.StatusInProgress, to: models.StatusWaitingSupervisor,
			next:  models.Ticket{AssignedTo: "staff-1"},
			actor: staff, wantKind: apperr.KindValidation,
		},
		{
			name: "reviewing supervisor sends back",
			from: models.StatusWaitingSupervisor, to: models.StatusInProgress,
			next:  models.Ticket{AssignedTo: "staff-1", CurrentSupervisor: "sup-1"},
			actor: sup,
		},
		{
			name: "reviewing supervisor resolves",
			from: models.StatusWaitingSupervisor, to: models.StatusResolved,
			next:  models.Ticket{AssignedTo: "staff-1", CurrentSupervisor: "sup-1"},
			actor: sup,
		},
		{
			name: "a different supervisor cannot decide",
			from: models.StatusWaitingSupervisor, to: models.StatusResolved,
			next:  models.Ticket{AssignedTo: "staff-1", CurrentSupervisor: "sup-1"},
			actor: otherSup, wantKind: apperr.KindForbidden,
		},
		{
			name: "the assignee cannot decide a review",
			from: models.StatusWaitingSupervisor, to: models.StatusResolved,
			next:  models.Ticket{AssignedTo: "staff-1", CurrentSupervisor: "sup-1"},
			actor: staff, wantKind: apperr.KindForbidden,
		},
		{
			name: "assignee resolves directly",
			from: models.StatusInProgress, to: models.StatusResolved,
			next:  models.Ticket{AssignedTo: "staff-1"},
			actor: staff,
		},
		{
			name: "no skipping from new to in_progress",
			from: models.StatusNew, to: models.StatusInProgress,
			next:  models.Ticket{AssignedTo: "staff-1"},
			actor: staff, wantKind: apperr.KindInvalidTransition,
		},
		{
			name: "no reopening a resolved ticket",
			from: models.StatusResolved, to: models.StatusInProgress,
			next:  models.Ticket{AssignedTo: "staff-1"},
			actor: admin, wantKind: apperr.KindInvalidTransition,
		},
		{
			name: "unknown target status",
			from: models.StatusNew, to: models.TicketStatus("archived"),
			next:  models.Ticket{},
			actor: admin, wantKind: apperr.KindInvalidTransition,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			next := tc.next
			err := Check(tc.from, tc.to, &next, tc.actor)
			if tc.wantKind == "" {
				if err != nil {
					t.Fatalf("Check(%s→%s) = %v, want nil", tc.from, tc.to, err)
				}
				return
			}
			if !apperr.IsKind(err, tc.wantKind) {
				t.Fatalf("Check(%s→%s) = %v, want kind %s", tc.from, tc.to, err, tc.wantKind)
			}
		})
	}
}
