package withdrawal

import "context"

type Repository interface {
	// Create persists the request together with its approval slots.
	Create(ctx context.Context, r *Request) error

	// GetByRequestID loads a request by public id with slots in creation order.
	// Returns ErrNotFound when absent.
	GetByRequestID(ctx context.Context, requestID string) (*Request, error)

	// ListByOwner returns the owner's requests, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]Request, error)

	// SaveApprovals writes status and slot state if r.Version is still current,
	// then bumps r.Version. Returns ErrVersionConflict otherwise.
	SaveApprovals(ctx context.Context, r *Request) error
}
