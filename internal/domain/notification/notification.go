// Package notification declares the outbound collaborators of the approval
// workflow: a templated email API and a lifecycle event bus.
package notification

import (
	"context"
	"time"
)

// Message is a templated email to one recipient.
type Message struct {
	TemplateID string
	To         string
	ToName     string
	Params     map[string]string
}

type Mailer interface {
	Send(ctx context.Context, m Message) error
}

type EventType string

const (
	EventWithdrawalRequested EventType = "withdrawal.requested"
	EventApprovalRecorded    EventType = "withdrawal.approval_recorded"
	EventWithdrawalApproved  EventType = "withdrawal.approved"
	EventPartyActivated      EventType = "trusted_party.activated"
)

// Event is published for push delivery and downstream consumers.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	RequestID  string    `json:"request_id,omitempty"`
	OwnerID    string    `json:"owner_id"`
	VaultID    string    `json:"vault_id,omitempty"`
	PartyID    string    `json:"party_id,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
