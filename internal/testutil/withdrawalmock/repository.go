package withdrawalmock

import (
	"context"

	domain "vault-approval-service/internal/domain/withdrawal"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Reads default to context.Canceled, writes to nil.
type Repo struct {
	CreateFn         func(ctx context.Context, r *domain.Request) error
	GetByRequestIDFn func(ctx context.Context, requestID string) (*domain.Request, error)
	ListByOwnerFn    func(ctx context.Context, ownerID string) ([]domain.Request, error)
	SaveApprovalsFn  func(ctx context.Context, r *domain.Request) error
}

func (m *Repo) Create(ctx context.Context, r *domain.Request) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, r)
	}
	return nil
}

func (m *Repo) GetByRequestID(ctx context.Context, requestID string) (*domain.Request, error) {
	if m.GetByRequestIDFn != nil {
		return m.GetByRequestIDFn(ctx, requestID)
	}
	return nil, context.Canceled
}

func (m *Repo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Request, error) {
	if m.ListByOwnerFn != nil {
		return m.ListByOwnerFn(ctx, ownerID)
	}
	return nil, context.Canceled
}

func (m *Repo) SaveApprovals(ctx context.Context, r *domain.Request) error {
	if m.SaveApprovalsFn != nil {
		return m.SaveApprovalsFn(ctx, r)
	}
	return nil
}
