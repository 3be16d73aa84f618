package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"vault-approval-service/internal/adapter/middleware"
	party "vault-approval-service/internal/domain/trustedparty"
	"vault-approval-service/internal/domain/uow"
	domain "vault-approval-service/internal/domain/withdrawal"
	"vault-approval-service/internal/testutil/notifymock"
	"vault-approval-service/internal/testutil/trustedpartymock"
	"vault-approval-service/internal/testutil/uowmock"
	"vault-approval-service/internal/testutil/withdrawalmock"
	"vault-approval-service/internal/usecase/trustedparty"
	"vault-approval-service/internal/usecase/withdrawal"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const (
	testSecret = "test-secret-0123456789abcdef"
	ownerID    = "owner-1"
)

var (
	alicePID = strings.Repeat("a", 32)
	bobPID   = strings.Repeat("b", 32)
	carolPID = strings.Repeat("c", 32)
	reqID    = strings.Repeat("1", 32)
)

func newEchoWithValidator() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	e.IPExtractor = IPExtractor(nil)
	return e
}

func mustJSON(v any) *bytes.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

// api wires real usecases over map-backed repository mocks behind the
// registered routes.
type api struct {
	e       *echo.Echo
	mailer  *notifymock.Mailer
	limiter *countingLimiter

	mu       sync.Mutex
	requests map[string]*domain.Request
	parties  map[string]*party.Party
	// getErr, when set, fails every request lookup.
	getErr error
}

// countingLimiter locks a key out after max failures.
type countingLimiter struct {
	mu     sync.Mutex
	max    int
	counts map[string]int
}

func (l *countingLimiter) Blocked(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[key] >= l.max, nil
}

func (l *countingLimiter) Fail(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[key]++
	return l.counts[key] >= l.max, nil
}

func (l *countingLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counts, key)
	return nil
}

func (l *countingLimiter) count(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[key]
}

func copyRequest(r *domain.Request) *domain.Request {
	c := *r
	c.Approvals = append([]domain.ApprovalSlot(nil), r.Approvals...)
	return &c
}

func copyParty(p *party.Party) *party.Party { c := *p; return &c }

func newAPI(t *testing.T) *api {
	t.Helper()
	a := &api{
		mailer:   &notifymock.Mailer{},
		limiter:  &countingLimiter{max: 3, counts: map[string]int{}},
		requests: map[string]*domain.Request{},
		parties:  map[string]*party.Party{},
	}

	wr := &withdrawalmock.Repo{
		CreateFn: func(_ context.Context, r *domain.Request) error {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.requests[r.RequestID] = copyRequest(r)
			return nil
		},
		GetByRequestIDFn: func(_ context.Context, id string) (*domain.Request, error) {
			a.mu.Lock()
			defer a.mu.Unlock()
			if a.getErr != nil {
				return nil, a.getErr
			}
			r, ok := a.requests[id]
			if !ok {
				return nil, domain.ErrNotFound
			}
			return copyRequest(r), nil
		},
		ListByOwnerFn: func(_ context.Context, owner string) ([]domain.Request, error) {
			a.mu.Lock()
			defer a.mu.Unlock()
			var out []domain.Request
			for _, r := range a.requests {
				if r.OwnerID == owner {
					out = append(out, *copyRequest(r))
				}
			}
			return out, nil
		},
		SaveApprovalsFn: func(_ context.Context, r *domain.Request) error {
			a.mu.Lock()
			defer a.mu.Unlock()
			r.Version++
			a.requests[r.RequestID] = copyRequest(r)
			return nil
		},
	}

	store := func(_ context.Context, p *party.Party) error {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.parties[p.PartyID] = copyParty(p)
		return nil
	}
	pr := &trustedpartymock.Repo{
		CreateFn: store,
		SaveFn:   store,
		GetByPartyIDFn: func(_ context.Context, id string) (*party.Party, error) {
			a.mu.Lock()
			defer a.mu.Unlock()
			if p, ok := a.parties[id]; ok {
				return copyParty(p), nil
			}
			return nil, party.ErrNotFound
		},
		GetByAccessCodeFn: func(_ context.Context, code string) (*party.Party, error) {
			a.mu.Lock()
			defer a.mu.Unlock()
			for _, p := range a.parties {
				if p.AccessCode != nil && *p.AccessCode == code {
					return copyParty(p), nil
				}
			}
			return nil, party.ErrNotFound
		},
		ListByOwnerFn: func(_ context.Context, owner string) ([]party.Party, error) {
			a.mu.Lock()
			defer a.mu.Unlock()
			var out []party.Party
			for _, p := range a.parties {
				if p.OwnerID == owner {
					out = append(out, *p)
				}
			}
			return out, nil
		},
		GetManyForOwnerFn: func(_ context.Context, owner string, ids []string) ([]party.Party, error) {
			a.mu.Lock()
			defer a.mu.Unlock()
			var out []party.Party
			for _, id := range ids {
				if p, ok := a.parties[id]; ok && p.OwnerID == owner {
					out = append(out, *p)
				}
			}
			return out, nil
		},
	}

	wuc := withdrawal.NewUsecase(withdrawal.Deps{
		Withdrawals: wr,
		Parties:     pr,
		UoW:         uowmock.Passthrough(uow.Repos{Withdrawals: wr, Parties: pr}),
		Mailer:      a.mailer,
		Events:      &notifymock.Publisher{},
		Limiter:     a.limiter,
	}, withdrawal.Policy{RequiredApprovals: 2, PublicBaseURL: "https://vault.example"})
	puc := trustedparty.NewUsecase(pr, a.mailer, &notifymock.Publisher{},
		trustedparty.Policy{PublicBaseURL: "https://vault.example"}, nil)

	a.e = newEchoWithValidator()
	Register(a.e, Routes{
		Health:         NewHandler(),
		Withdrawals:    NewWithdrawalHandler(wuc),
		TrustedParties: NewTrustedPartyHandler(puc, nil),
		OwnerAuth:      middleware.OwnerAuth([]byte(testSecret)),
	})
	return a
}

func (a *api) addParty(id, owner, name, code string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p := &party.Party{
		PartyID: id, OwnerID: owner, DisplayName: name,
		Email: strings.ToLower(name) + "@example.com", Status: party.StatusInvited,
	}
	if code != "" {
		c := code
		p.Status = party.StatusActive
		p.AccessCode = &c
	} else {
		p.InviteToken = strings.Repeat("f", 32)
	}
	a.parties[id] = p
}

func (a *api) seedRequest(t *testing.T, id, owner string, partyIDs ...string) {
	t.Helper()
	approvers := make([]domain.Approver, 0, len(partyIDs))
	for _, pid := range partyIDs {
		approvers = append(approvers, domain.Approver{PartyID: pid, DisplayName: pid[:1], Email: pid[:1] + "@example.com"})
	}
	r, err := domain.NewRequest(domain.Draft{
		RequestID: id, OwnerID: owner, VaultID: "vault-1", VaultName: "Trip Fund",
		Amount: decimal.RequireFromString("500.00"), Reason: "Flights",
	}, approvers, len(partyIDs))
	if err != nil {
		t.Fatalf("seed request: %v", err)
	}
	r.CreatedAt = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	a.mu.Lock()
	a.requests[id] = r
	a.mu.Unlock()
}

// do sends a JSON request; a non-empty owner is sent as a bearer token.
func (a *api) do(t *testing.T, method, path string, body any, owner string) *httptest.ResponseRecorder {
	t.Helper()
	var req = httptest.NewRequest(method, path, nil)
	if body != nil {
		req = httptest.NewRequest(method, path, mustJSON(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if owner != "" {
		tok, err := middleware.IssueOwnerToken([]byte(testSecret), owner, owner+"@example.com", "Owner", time.Hour)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *api) setStatus(id string, st domain.Status) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests[id].Status = st
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad json: %v; raw=%s", err, rec.Body.String())
	}
	return out
}
