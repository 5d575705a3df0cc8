package models

import "time"

type TicketStatus string

const (
	StatusNew               TicketStatus = "new"
	StatusAssigned          TicketStatus = "assigned"
	StatusInProgress        TicketStatus = "in_progress"
	StatusWaitingSupervisor TicketStatus = "waiting_supervisor"
	StatusResolved          TicketStatus = "resolved"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case StatusNew, StatusAssigned, StatusInProgress, StatusWaitingSupervisor, StatusResolved:
		return true
	}
	return false
}

// Terminal reports whether no further status transitions are allowed.
func (s TicketStatus) Terminal() bool { return s == StatusResolved }

type Ticket struct {
	ID                string       `json:"id"`
	CreatedBy         string       `json:"createdBy"`
	Category          string       `json:"category"`
	Title             string       `json:"title,omitempty"`
	Description       string       `json:"description"`
	AddressText       string       `json:"addressText,omitempty"`
	Lat               *float64     `json:"lat,omitempty"`
	Lng               *float64     `json:"lng,omitempty"`
	Status            TicketStatus `json:"status"`
	AssignedTo        string       `json:"assignedTo,omitempty"`
	CurrentSupervisor string       `json:"currentSupervisor,omitempty"`
	CitizenRating     *int         `json:"citizenRating,omitempty"`
	CitizenFeedback   string       `json:"citizenFeedback,omitempty"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
	ClosedAt          *time.Time   `json:"closedAt,omitempty"`
}

// Clone returns a deep copy so stores can hand out tickets without
// sharing pointer fields with callers.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	if t.Lat != nil {
		v := *t.Lat
		c.Lat = &v
	}
	if t.Lng != nil {
		v := *t.Lng
		c.Lng = &v
	}
	if t.CitizenRating != nil {
		v := *t.CitizenRating
		c.CitizenRating = &v
	}
	if t.ClosedAt != nil {
		v := *t.ClosedAt
		c.ClosedAt = &v
	}
	return &c
}

// TicketDetail is the aggregate read view: the ticket plus its full
// audit trail, events and attachments both ascending by creation time.
type TicketDetail struct {
	Ticket      Ticket             `json:"ticket"`
	Events      []TicketEvent      `json:"events"`
	Attachments []TicketAttachment `json:"attachments"`
}
