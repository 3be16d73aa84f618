package uow

import (
	"context"

	"vault-approval-service/internal/domain/trustedparty"
	"vault-approval-service/internal/domain/withdrawal"
)

// Repos are bound to the same transaction.
type Repos struct {
	Withdrawals withdrawal.Repository
	Parties     trustedparty.Repository
}

type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}
