package withdrawal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("request not found")
	ErrNotAuthorized   = errors.New("not authorized for this request")
	ErrAlreadyApproved = errors.New("already approved")
	ErrVersionConflict = errors.New("withdrawal request modified concurrently")
	ErrInvalidRequest  = errors.New("invalid withdrawal request")
	ErrNotPending      = errors.New("request is no longer pending")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Request is one proposed withdrawal awaiting co-approval.
// Table: withdrawal_requests
type Request struct {
	ID                uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	RequestID         string          `gorm:"column:request_id;type:char(32);not null;uniqueIndex:ux_withdrawal_requests_request_id"`
	OwnerID           string          `gorm:"column:owner_id;size:64;not null;index:idx_withdrawal_requests_owner"`
	OwnerEmail        string          `gorm:"column:owner_email;size:255"`
	VaultID           string          `gorm:"column:vault_id;size:64;not null"`
	VaultName         string          `gorm:"column:vault_name;size:255;not null"`
	Amount            decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null"`
	Reason            string          `gorm:"column:reason;type:text;not null"`
	Status            Status          `gorm:"column:status;type:enum('pending','approved','rejected');default:'pending';not null"`
	RequiredApprovals int             `gorm:"column:required_approvals;not null"`
	Approvals         []ApprovalSlot  `gorm:"foreignKey:WithdrawalID;references:ID"`
	// Version guards approval writes (compare-and-swap).
	Version   int64     `gorm:"column:version;not null;default:1"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Request) TableName() string { return "withdrawal_requests" }

// ApprovalSlot is one trusted party's approval state within a request.
// Table: withdrawal_approval_slots
type ApprovalSlot struct {
	ID               uint64     `gorm:"column:id;primaryKey;autoIncrement"`
	WithdrawalID     uint64     `gorm:"column:withdrawal_id;not null;uniqueIndex:ux_slots_withdrawal_party"`
	PartyID          string     `gorm:"column:party_id;type:char(32);not null;uniqueIndex:ux_slots_withdrawal_party"`
	Position         int        `gorm:"column:position;not null"`
	PartyDisplayName string     `gorm:"column:party_display_name;size:255;not null"`
	PartyEmail       string     `gorm:"column:party_email;size:255;not null"`
	Approved         bool       `gorm:"column:approved;not null;default:false"`
	ApprovedAt       *time.Time `gorm:"column:approved_at"`
}

func (ApprovalSlot) TableName() string { return "withdrawal_approval_slots" }

// Approver identifies a trusted party invited to approve a new request.
type Approver struct {
	PartyID     string
	DisplayName string
	Email       string
}

// Draft holds the owner-supplied fields of a new request.
type Draft struct {
	RequestID  string
	OwnerID    string
	OwnerEmail string
	VaultID    string
	VaultName  string
	Amount     decimal.Decimal
	Reason     string
}

// NewRequest builds a pending request with one unapproved slot per approver.
// The slot count becomes RequiredApprovals and never changes afterwards.
func NewRequest(d Draft, approvers []Approver, required int) (*Request, error) {
	if !d.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidRequest)
	}
	if strings.TrimSpace(d.Reason) == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidRequest)
	}
	if d.OwnerID == "" || d.VaultID == "" {
		return nil, fmt.Errorf("%w: owner and vault are required", ErrInvalidRequest)
	}
	if len(approvers) != required {
		return nil, fmt.Errorf("%w: exactly %d trusted parties are required, got %d", ErrInvalidRequest, required, len(approvers))
	}

	slots := make([]ApprovalSlot, 0, len(approvers))
	seen := make(map[string]struct{}, len(approvers))
	for i, a := range approvers {
		if a.PartyID == "" {
			return nil, fmt.Errorf("%w: trusted party %d has no id", ErrInvalidRequest, i)
		}
		if _, dup := seen[a.PartyID]; dup {
			return nil, fmt.Errorf("%w: trusted party %s listed twice", ErrInvalidRequest, a.PartyID)
		}
		seen[a.PartyID] = struct{}{}
		slots = append(slots, ApprovalSlot{
			PartyID:          a.PartyID,
			Position:         i,
			PartyDisplayName: a.DisplayName,
			PartyEmail:       a.Email,
		})
	}

	return &Request{
		RequestID:         d.RequestID,
		OwnerID:           d.OwnerID,
		OwnerEmail:        d.OwnerEmail,
		VaultID:           d.VaultID,
		VaultName:         strings.TrimSpace(d.VaultName),
		Amount:            d.Amount,
		Reason:            strings.TrimSpace(d.Reason),
		Status:            StatusPending,
		RequiredApprovals: required,
		Approvals:         slots,
		Version:           1,
	}, nil
}

// Slot returns the approval slot of partyID, if the party is named on the request.
func (r *Request) Slot(partyID string) (*ApprovalSlot, bool) {
	for i := range r.Approvals {
		if r.Approvals[i].PartyID == partyID {
			return &r.Approvals[i], true
		}
	}
	return nil, false
}

// AllApproved reports whether every slot is approved.
func (r *Request) AllApproved() bool {
	if len(r.Approvals) == 0 {
		return false
	}
	for _, s := range r.Approvals {
		if !s.Approved {
			return false
		}
	}
	return true
}

// ApprovedCount is the number of approved slots.
func (r *Request) ApprovedCount() int {
	n := 0
	for _, s := range r.Approvals {
		if s.Approved {
			n++
		}
	}
	return n
}

// Approve records partyID's approval at `at` and promotes the request to
// approved once every slot is filled. It returns whether the request is now
// fully approved. Requests that left pending accept no further approvals.
func (r *Request) Approve(partyID string, at time.Time) (bool, error) {
	slot, ok := r.Slot(partyID)
	if !ok {
		return false, ErrNotAuthorized
	}
	if slot.Approved {
		return false, ErrAlreadyApproved
	}
	if r.Status != StatusPending {
		return false, ErrNotPending
	}
	when := at.UTC()
	slot.Approved = true
	slot.ApprovedAt = &when

	all := r.AllApproved()
	if all {
		r.Status = StatusApproved
	}
	return all, nil
}
