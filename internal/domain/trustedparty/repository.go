package trustedparty

import "context"

type Repository interface {
	Create(ctx context.Context, p *Party) error

	// Save updates an existing party. Returns ErrAccessCodeTaken when the
	// access code collides with another party.
	Save(ctx context.Context, p *Party) error

	GetByPartyID(ctx context.Context, partyID string) (*Party, error)

	// GetByAccessCode returns ErrNotFound when no party holds the code.
	GetByAccessCode(ctx context.Context, code string) (*Party, error)

	ListByOwner(ctx context.Context, ownerID string) ([]Party, error)

	// GetManyForOwner returns the subset of partyIDs owned by ownerID, in the
	// order given.
	GetManyForOwner(ctx context.Context, ownerID string, partyIDs []string) ([]Party, error)
}
