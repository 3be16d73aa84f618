package trustedparty

import "time"

type InviteInput struct {
	OwnerID     string
	OwnerName   string
	DisplayName string
	Email       string
}

type AcceptInput struct {
	PartyID     string
	InviteToken string
}

// AcceptResult is the only place the access code is ever returned.
type AcceptResult struct {
	PartyID    string `json:"party_id"`
	AccessCode string `json:"access_code"`
}

type PartyDTO struct {
	PartyID     string     `json:"party_id"`
	DisplayName string     `json:"display_name"`
	Email       string     `json:"email"`
	Status      string     `json:"status"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
