package mysql

import (
	"context"
	"errors"
	"time"

	"vault-approval-service/internal/domain/withdrawal"

	"gorm.io/gorm"
)

type WithdrawalRepository struct{ db *gorm.DB }

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) Create(ctx context.Context, w *withdrawal.Request) error {
	// gorm inserts the slots in the same implicit transaction
	return r.db.WithContext(ctx).Create(w).Error
}

func orderedSlots(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }

func (r *WithdrawalRepository) GetByRequestID(ctx context.Context, requestID string) (*withdrawal.Request, error) {
	var out withdrawal.Request
	res := r.db.WithContext(ctx).
		Preload("Approvals", orderedSlots).
		Where("request_id = ?", requestID).
		First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, withdrawal.ErrNotFound
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return &out, nil
}

func (r *WithdrawalRepository) ListByOwner(ctx context.Context, ownerID string) ([]withdrawal.Request, error) {
	var out []withdrawal.Request
	res := r.db.WithContext(ctx).
		Preload("Approvals", orderedSlots).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Find(&out)
	return out, res.Error
}

func (r *WithdrawalRepository) SaveApprovals(ctx context.Context, w *withdrawal.Request) error {
	db := r.db.WithContext(ctx)

	res := db.Model(&withdrawal.Request{}).
		Where("id = ? AND version = ?", w.ID, w.Version).
		Updates(map[string]any{
			"status":     w.Status,
			"version":    w.Version + 1,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return withdrawal.ErrVersionConflict
	}

	for _, s := range w.Approvals {
		err := db.Model(&withdrawal.ApprovalSlot{}).
			Where("id = ?", s.ID).
			Updates(map[string]any{
				"approved":    s.Approved,
				"approved_at": s.ApprovedAt,
			}).Error
		if err != nil {
			return err
		}
	}
	w.Version++
	return nil
}
