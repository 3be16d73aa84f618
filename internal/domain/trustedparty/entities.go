package trustedparty

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("trusted party not found")
	ErrInvalidAccessCode = errors.New("invalid access code")
	ErrCodeMismatch      = errors.New("code does not match this party")
	ErrInvalidInvitation = errors.New("invalid or already used invitation")
	ErrAccessCodeTaken   = errors.New("access code already in use")
	ErrNotActive         = errors.New("trusted party has not accepted the invitation")
)

type Status string

const (
	StatusInvited Status = "invited"
	StatusActive  Status = "active"
)

// Party is a person designated by a vault owner to co-approve withdrawals.
// Table: trusted_parties
type Party struct {
	ID          uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	PartyID     string `gorm:"column:party_id;type:char(32);not null;uniqueIndex:ux_trusted_parties_party_id"`
	OwnerID     string `gorm:"column:owner_id;size:64;not null;index:idx_trusted_parties_owner"`
	DisplayName string `gorm:"column:display_name;size:255;not null"`
	Email       string `gorm:"column:email;size:255;not null"`
	Status      Status `gorm:"column:status;type:enum('invited','active');default:'invited';not null"`
	// InviteToken is emailed with the invitation and cleared on acceptance.
	InviteToken string `gorm:"column:invite_token;type:char(32)"`
	// AccessCode is NULL until the invitation is accepted; unique once set.
	AccessCode *string    `gorm:"column:access_code;type:char(12);uniqueIndex:ux_trusted_parties_access_code"`
	AcceptedAt *time.Time `gorm:"column:accepted_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Party) TableName() string { return "trusted_parties" }

func (p *Party) Active() bool { return p.Status == StatusActive && p.AccessCode != nil }

// Activate stores the access code and consumes the invitation.
func (p *Party) Activate(code string, at time.Time) {
	c := code
	when := at.UTC()
	p.AccessCode = &c
	p.Status = StatusActive
	p.InviteToken = ""
	p.AcceptedAt = &when
}
