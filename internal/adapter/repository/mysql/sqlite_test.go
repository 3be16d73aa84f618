package mysql

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// --- SQLite-friendly schema only for tests (no ENUM, amount as text) ---

type withdrawalSQLite struct {
	ID                uint64    `gorm:"primaryKey;column:id;autoIncrement"`
	RequestID         string    `gorm:"size:32;uniqueIndex;column:request_id"`
	OwnerID           string    `gorm:"size:64;column:owner_id"`
	OwnerEmail        string    `gorm:"column:owner_email"`
	VaultID           string    `gorm:"column:vault_id"`
	VaultName         string    `gorm:"column:vault_name"`
	Amount            string    `gorm:"type:text;column:amount"`
	Reason            string    `gorm:"column:reason"`
	Status            string    `gorm:"type:text;column:status"`
	RequiredApprovals int       `gorm:"column:required_approvals"`
	Version           int64     `gorm:"column:version;default:1"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (withdrawalSQLite) TableName() string { return "withdrawal_requests" }

type slotSQLite struct {
	ID               uint64     `gorm:"primaryKey;column:id;autoIncrement"`
	WithdrawalID     uint64     `gorm:"column:withdrawal_id;uniqueIndex:ux_slot"`
	PartyID          string     `gorm:"size:32;column:party_id;uniqueIndex:ux_slot"`
	Position         int        `gorm:"column:position"`
	PartyDisplayName string     `gorm:"column:party_display_name"`
	PartyEmail       string     `gorm:"column:party_email"`
	Approved         bool       `gorm:"column:approved"`
	ApprovedAt       *time.Time `gorm:"column:approved_at"`
}

func (slotSQLite) TableName() string { return "withdrawal_approval_slots" }

type partySQLite struct {
	ID          uint64     `gorm:"primaryKey;column:id;autoIncrement"`
	PartyID     string     `gorm:"size:32;uniqueIndex;column:party_id"`
	OwnerID     string     `gorm:"size:64;column:owner_id"`
	DisplayName string     `gorm:"column:display_name"`
	Email       string     `gorm:"column:email"`
	Status      string     `gorm:"type:text;column:status"`
	InviteToken string     `gorm:"column:invite_token"`
	AccessCode  *string    `gorm:"size:12;uniqueIndex;column:access_code"`
	AcceptedAt  *time.Time `gorm:"column:accepted_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

func (partySQLite) TableName() string { return "trusted_parties" }

// openTestDB creates an in-memory sqlite DB and migrates ONLY the sqlite-safe schema.
// A single connection keeps every session (and tx) on the same in-memory database.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&withdrawalSQLite{}, &slotSQLite{}, &partySQLite{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}
