package models

import "time"

type MutationStatus string

const (
	MutationApplied  MutationStatus = "applied"
	MutationRejected MutationStatus = "rejected"
)

// MutationRecord is one row of the idempotency ledger kept by the
// authoritative store. A mutation ID that already has a record is never
// applied again; the recorded outcome is replayed to the caller instead.
type MutationRecord struct {
	ID        string         `json:"id"`
	ClientID  string         `json:"clientId"`
	Seq       uint64         `json:"seq"`
	Op        string         `json:"op"`
	TicketID  string         `json:"ticketId,omitempty"`
	Status    MutationStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
