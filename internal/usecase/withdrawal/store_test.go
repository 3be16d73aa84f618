package withdrawal

import (
	"context"
	"sync"

	party "vault-approval-service/internal/domain/trustedparty"
	"vault-approval-service/internal/domain/uow"
	domain "vault-approval-service/internal/domain/withdrawal"
	"vault-approval-service/internal/testutil/trustedpartymock"
	"vault-approval-service/internal/testutil/uowmock"
	"vault-approval-service/internal/testutil/withdrawalmock"
)

// memStore backs the function mocks with maps, including version CAS on
// SaveApprovals, so flows can be exercised end to end.
type memStore struct {
	mu       sync.Mutex
	requests map[string]*domain.Request
	parties  map[string]*party.Party
	nextID   uint64
}

func newMemStore() *memStore {
	return &memStore{requests: map[string]*domain.Request{}, parties: map[string]*party.Party{}}
}

func cloneRequest(r *domain.Request) *domain.Request {
	c := *r
	c.Approvals = make([]domain.ApprovalSlot, len(r.Approvals))
	for i, s := range r.Approvals {
		if s.ApprovedAt != nil {
			at := *s.ApprovedAt
			s.ApprovedAt = &at
		}
		c.Approvals[i] = s
	}
	return &c
}

func (s *memStore) addActiveParty(id, name, email, code, owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := code
	s.parties[id] = &party.Party{
		PartyID: id, OwnerID: owner, DisplayName: name, Email: email,
		Status: party.StatusActive, AccessCode: &c,
	}
}

func (s *memStore) request(id string) *domain.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.requests[id]; ok {
		return cloneRequest(r)
	}
	return nil
}

func (s *memStore) setStatus(id string, st domain.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[id].Status = st
}

func (s *memStore) withdrawalRepo() *withdrawalmock.Repo {
	return &withdrawalmock.Repo{
		CreateFn: func(_ context.Context, r *domain.Request) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.nextID++
			r.ID = s.nextID
			for i := range r.Approvals {
				r.Approvals[i].WithdrawalID = r.ID
			}
			s.requests[r.RequestID] = cloneRequest(r)
			return nil
		},
		GetByRequestIDFn: func(_ context.Context, id string) (*domain.Request, error) {
			if r := s.request(id); r != nil {
				return r, nil
			}
			return nil, domain.ErrNotFound
		},
		ListByOwnerFn: func(_ context.Context, owner string) ([]domain.Request, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			var out []domain.Request
			for _, r := range s.requests {
				if r.OwnerID == owner {
					out = append(out, *cloneRequest(r))
				}
			}
			return out, nil
		},
		SaveApprovalsFn: func(_ context.Context, r *domain.Request) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			cur, ok := s.requests[r.RequestID]
			if !ok || cur.Version != r.Version {
				return domain.ErrVersionConflict
			}
			r.Version++
			s.requests[r.RequestID] = cloneRequest(r)
			return nil
		},
	}
}

func (s *memStore) partyRepo() *trustedpartymock.Repo {
	return &trustedpartymock.Repo{
		GetByAccessCodeFn: func(_ context.Context, code string) (*party.Party, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			for _, p := range s.parties {
				if p.AccessCode != nil && *p.AccessCode == code {
					cp := *p
					return &cp, nil
				}
			}
			return nil, party.ErrNotFound
		},
		GetManyForOwnerFn: func(_ context.Context, owner string, ids []string) ([]party.Party, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			var out []party.Party
			for _, id := range ids {
				if p, ok := s.parties[id]; ok && p.OwnerID == owner {
					out = append(out, *p)
				}
			}
			return out, nil
		},
	}
}

func (s *memStore) unitOfWork(w *withdrawalmock.Repo, p *trustedpartymock.Repo) *uowmock.UoW {
	return uowmock.Passthrough(uow.Repos{Withdrawals: w, Parties: p})
}

// memLimiter locks a key out after max failures.
type memLimiter struct {
	mu     sync.Mutex
	max    int
	counts map[string]int
	err    error
}

func newMemLimiter(max int) *memLimiter { return &memLimiter{max: max, counts: map[string]int{}} }

func (l *memLimiter) Blocked(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	return l.counts[key] >= l.max, nil
}

func (l *memLimiter) Fail(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	l.counts[key]++
	return l.counts[key] >= l.max, nil
}

func (l *memLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counts, key)
	return l.err
}
