package mysql

import (
	"context"
	"errors"

	"vault-approval-service/internal/domain/trustedparty"

	"gorm.io/gorm"
)

type TrustedPartyRepository struct{ db *gorm.DB }

func NewTrustedPartyRepository(db *gorm.DB) *TrustedPartyRepository {
	return &TrustedPartyRepository{db: db}
}

func (r *TrustedPartyRepository) Create(ctx context.Context, p *trustedparty.Party) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// Save relies on gorm.Config.TranslateError to surface unique violations.
func (r *TrustedPartyRepository) Save(ctx context.Context, p *trustedparty.Party) error {
	err := r.db.WithContext(ctx).Save(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return trustedparty.ErrAccessCodeTaken
	}
	return err
}

func (r *TrustedPartyRepository) first(ctx context.Context, query string, arg any) (*trustedparty.Party, error) {
	var out trustedparty.Party
	res := r.db.WithContext(ctx).Where(query, arg).First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, trustedparty.ErrNotFound
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return &out, nil
}

func (r *TrustedPartyRepository) GetByPartyID(ctx context.Context, partyID string) (*trustedparty.Party, error) {
	return r.first(ctx, "party_id = ?", partyID)
}

func (r *TrustedPartyRepository) GetByAccessCode(ctx context.Context, code string) (*trustedparty.Party, error) {
	if code == "" {
		return nil, trustedparty.ErrNotFound
	}
	return r.first(ctx, "access_code = ?", code)
}

func (r *TrustedPartyRepository) ListByOwner(ctx context.Context, ownerID string) ([]trustedparty.Party, error) {
	var out []trustedparty.Party
	res := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC, id ASC").
		Find(&out)
	return out, res.Error
}

func (r *TrustedPartyRepository) GetManyForOwner(ctx context.Context, ownerID string, partyIDs []string) ([]trustedparty.Party, error) {
	if len(partyIDs) == 0 {
		return nil, nil
	}
	var rows []trustedparty.Party
	res := r.db.WithContext(ctx).
		Where("owner_id = ? AND party_id IN ?", ownerID, partyIDs).
		Find(&rows)
	if res.Error != nil {
		return nil, res.Error
	}

	byID := make(map[string]trustedparty.Party, len(rows))
	for _, p := range rows {
		byID[p.PartyID] = p
	}
	out := make([]trustedparty.Party, 0, len(rows))
	for _, id := range partyIDs {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
