package trustedpartymock

import (
	"context"

	domain "vault-approval-service/internal/domain/trustedparty"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Reads default to context.Canceled, writes to nil.
type Repo struct {
	CreateFn          func(ctx context.Context, p *domain.Party) error
	SaveFn            func(ctx context.Context, p *domain.Party) error
	GetByPartyIDFn    func(ctx context.Context, partyID string) (*domain.Party, error)
	GetByAccessCodeFn func(ctx context.Context, code string) (*domain.Party, error)
	ListByOwnerFn     func(ctx context.Context, ownerID string) ([]domain.Party, error)
	GetManyForOwnerFn func(ctx context.Context, ownerID string, partyIDs []string) ([]domain.Party, error)
}

func (m *Repo) Create(ctx context.Context, p *domain.Party) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, p)
	}
	return nil
}

func (m *Repo) Save(ctx context.Context, p *domain.Party) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, p)
	}
	return nil
}

func (m *Repo) GetByPartyID(ctx context.Context, partyID string) (*domain.Party, error) {
	if m.GetByPartyIDFn != nil {
		return m.GetByPartyIDFn(ctx, partyID)
	}
	return nil, context.Canceled
}

func (m *Repo) GetByAccessCode(ctx context.Context, code string) (*domain.Party, error) {
	if m.GetByAccessCodeFn != nil {
		return m.GetByAccessCodeFn(ctx, code)
	}
	return nil, context.Canceled
}

func (m *Repo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Party, error) {
	if m.ListByOwnerFn != nil {
		return m.ListByOwnerFn(ctx, ownerID)
	}
	return nil, context.Canceled
}

func (m *Repo) GetManyForOwner(ctx context.Context, ownerID string, partyIDs []string) ([]domain.Party, error) {
	if m.GetManyForOwnerFn != nil {
		return m.GetManyForOwnerFn(ctx, ownerID, partyIDs)
	}
	return nil, context.Canceled
}
