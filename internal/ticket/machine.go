// Package ticket holds the authoritative ticket lifecycle: which status
// edges exist and which actor may take each one. The mutation layer runs
// every status change through Check before writing.
package ticket

import (
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/apperr"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
)

type edge struct {
	from, to models.TicketStatus
}

// A guard inspects the post-mutation ticket (assignee and supervisor
// fields already carry their new values) and the acting identity.
type guard func(next *models.Ticket, actor models.Actor) error

var transitions = map[edge]guard{
	{models.StatusNew, models.StatusAssigned}:                 guardClaim,
	{models.StatusAssigned, models.StatusInProgress}:          guardAssignee,
	{models.StatusInProgress, models.StatusWaitingSupervisor}: guardEscalate,
	{models.StatusWaitingSupervisor, models.StatusInProgress}: guardReview,
	{models.StatusWaitingSupervisor, models.StatusResolved}:   guardReview,
	{models.StatusInProgress, models.StatusResolved}:          guardAssignee,
}

// Allowed reports whether from→to is an edge of the lifecycle at all,
// ignoring actor capability.
func Allowed(from, to models.TicketStatus) bool {
	_, ok := transitions[edge{from, to}]
	return ok
}

// Check validates one transition. next is the ticket as it will be stored
// if the transition is accepted, still carrying the pre-transition status
// in from. Returns InvalidTransition for a missing edge, Forbidden when
// the actor lacks the capability, Validation when a required field is
// missing from the same mutation.
func Check(from, to models.TicketStatus, next *models.Ticket, actor models.Actor) error {
	if !to.Valid() {
		return apperr.InvalidTransitionf("unknown status %q", to)
	}
	g, ok := transitions[edge{from, to}]
	if !ok {
		return apperr.InvalidTransitionf("cannot move ticket from %s to %s", from, to)
	}
	return g(next, actor)
}

func guardClaim(next *models.Ticket, actor models.Actor) error {
	if !actor.Role.StaffLevel() {
		return apperr.Forbiddenf("role %s cannot assign tickets", actor.Role)
	}
	if next.AssignedTo == "" {
		return apperr.Validationf("assignment requires an assignee")
	}
	return nil
}

func guardAssignee(next *models.Ticket, actor models.Actor) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	if actor.ID != next.AssignedTo {
		return apperr.Forbiddenf("only the assigned staff member may work this ticket")
	}
	return nil
}

func guardEscalate(next *models.Ticket, actor models.Actor) error {
	if err := guardAssignee(next, actor); err != nil {
		return err
	}
	if next.CurrentSupervisor == "" {
		return apperr.Validationf("escalation requires a supervisor")
	}
	return nil
}

func guardReview(next *models.Ticket, actor models.Actor) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	if actor.Role != models.RoleSupervisor || actor.ID != next.CurrentSupervisor {
		return apperr.Forbiddenf("only the reviewing supervisor may decide this ticket")
	}
	return nil
}
