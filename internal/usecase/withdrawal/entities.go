package withdrawal

import (
	"time"

	domain "vault-approval-service/internal/domain/withdrawal"

	"github.com/shopspring/decimal"
)

// CreateInput carries parties already resolved by the caller.
type CreateInput struct {
	OwnerID    string
	OwnerEmail string
	VaultID    string
	VaultName  string
	Amount     decimal.Decimal
	Reason     string
	Parties    []domain.Approver
}

// RequestInput names trusted parties by id; they are resolved against the
// owner's active parties.
type RequestInput struct {
	OwnerID    string
	OwnerEmail string
	VaultID    string
	VaultName  string
	Amount     decimal.Decimal
	Reason     string
	PartyIDs   []string
}

type ApproveInput struct {
	RequestID  string
	PartyID    string
	AccessCode string
	// ClientKey identifies the caller for attempt throttling (e.g. client IP).
	ClientKey string
}

type ApproveResult struct {
	AllApproved bool `json:"all_approved"`
}

type SlotDTO struct {
	PartyID          string     `json:"party_id"`
	PartyDisplayName string     `json:"party_display_name"`
	Approved         bool       `json:"approved"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
}

type RequestDTO struct {
	RequestID         string    `json:"request_id"`
	VaultID           string    `json:"vault_id"`
	VaultName         string    `json:"vault_name"`
	Amount            string    `json:"amount"`
	Reason            string    `json:"reason"`
	Status            string    `json:"status"`
	RequiredApprovals int       `json:"required_approvals"`
	ApprovedCount     int       `json:"approved_count"`
	Approvals         []SlotDTO `json:"approvals"`
	CreatedAt         time.Time `json:"created_at"`
}

// ApprovalPageDTO backs the landing page of an emailed approval link.
type ApprovalPageDTO struct {
	Request RequestDTO `json:"request"`
	Slot    SlotDTO    `json:"slot"`
}

func toDTO(r *domain.Request) RequestDTO {
	slots := make([]SlotDTO, 0, len(r.Approvals))
	for _, s := range r.Approvals {
		slots = append(slots, toSlotDTO(s))
	}
	return RequestDTO{
		RequestID:         r.RequestID,
		VaultID:           r.VaultID,
		VaultName:         r.VaultName,
		Amount:            r.Amount.StringFixed(2),
		Reason:            r.Reason,
		Status:            string(r.Status),
		RequiredApprovals: r.RequiredApprovals,
		ApprovedCount:     r.ApprovedCount(),
		Approvals:         slots,
		CreatedAt:         r.CreatedAt,
	}
}

func toSlotDTO(s domain.ApprovalSlot) SlotDTO {
	return SlotDTO{
		PartyID:          s.PartyID,
		PartyDisplayName: s.PartyDisplayName,
		Approved:         s.Approved,
		ApprovedAt:       s.ApprovedAt,
	}
}
