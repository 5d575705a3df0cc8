package models

import "time"

type EventType string

const (
	EventStatusChange EventType = "status_change"
	EventComment      EventType = "comment"
	EventAssignment   EventType = "assignment"
	EventRating       EventType = "rating"
)

// TicketEvent is one append-only audit row on a ticket. Events are never
// updated or deleted. FromStatus/ToStatus are populated iff the type is
// status_change.
type TicketEvent struct {
	ID         string       `json:"id"`
	TicketID   string       `json:"ticketId"`
	ActorID    string       `json:"actorId"`
	Type       EventType    `json:"type"`
	FromStatus TicketStatus `json:"fromStatus,omitempty"`
	ToStatus   TicketStatus `json:"toStatus,omitempty"`
	Message    string       `json:"message,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
}

type AttachmentKind string

const (
	AttachmentPhoto    AttachmentKind = "photo"
	AttachmentDocument AttachmentKind = "document"
)

func (k AttachmentKind) Valid() bool {
	return k == AttachmentPhoto || k == AttachmentDocument
}

// TicketAttachment is an immutable file reference on a ticket.
type TicketAttachment struct {
	ID         string         `json:"id"`
	TicketID   string         `json:"ticketId"`
	UploadedBy string         `json:"uploadedBy"`
	Kind       AttachmentKind `json:"kind"`
	URL        string         `json:"url"`
	MimeType   string         `json:"mimeType,omitempty"`
	Caption    string         `json:"caption,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}
