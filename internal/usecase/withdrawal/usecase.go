package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"vault-approval-service/internal/domain/notification"
	party "vault-approval-service/internal/domain/trustedparty"
	"vault-approval-service/internal/domain/uow"
	domain "vault-approval-service/internal/domain/withdrawal"
	"vault-approval-service/internal/infrastructure/metrics"
	"vault-approval-service/pkg/id"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrTooManyAttempts = errors.New("too many attempts")
	ErrTechnical       = errors.New("technical error")
)

// AttemptLimiter throttles failed approval attempts.
type AttemptLimiter interface {
	Blocked(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

type Policy struct {
	RequiredApprovals int
	// PublicBaseURL prefixes approval links, without trailing slash.
	PublicBaseURL     string
	ApprovalTemplate  string
	CompletedTemplate string
	// SendTimeout bounds each individual notification.
	SendTimeout time.Duration
	// MaxWriteAttempts bounds re-runs of an approval after a concurrent update.
	MaxWriteAttempts int
}

type Deps struct {
	Withdrawals domain.Repository
	Parties     party.Repository
	UoW         uow.UnitOfWork
	Mailer      notification.Mailer
	Events      notification.Publisher
	// Limiter is optional; nil disables throttling.
	Limiter AttemptLimiter
	Log     *zap.Logger
}

type Usecase struct {
	withdrawals domain.Repository
	parties     party.Repository
	uow         uow.UnitOfWork
	mailer      notification.Mailer
	events      notification.Publisher
	limiter     AttemptLimiter
	policy      Policy
	log         *zap.Logger
	now         func() time.Time
}

func NewUsecase(d Deps, p Policy) *Usecase {
	if p.RequiredApprovals <= 0 {
		p.RequiredApprovals = 2
	}
	if p.MaxWriteAttempts <= 0 {
		p.MaxWriteAttempts = 3
	}
	if p.SendTimeout <= 0 {
		p.SendTimeout = 10 * time.Second
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Usecase{
		withdrawals: d.Withdrawals,
		parties:     d.Parties,
		uow:         d.UoW,
		mailer:      d.Mailer,
		events:      d.Events,
		limiter:     d.Limiter,
		policy:      p,
		log:         log.Named("withdrawal"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RequiredApprovals is the number of trusted parties every new request names.
func (u *Usecase) RequiredApprovals() int { return u.policy.RequiredApprovals }

// Create persists a pending request for the given parties and emails each
// of them an approval link. It returns the new request id.
func (u *Usecase) Create(ctx context.Context, in CreateInput) (string, error) {
	w, err := u.create(ctx, in)
	if err != nil {
		return "", err
	}
	return w.RequestID, nil
}

// RequestWithdrawal resolves the owner's trusted parties and creates the request.
func (u *Usecase) RequestWithdrawal(ctx context.Context, in RequestInput) (*RequestDTO, error) {
	if len(in.PartyIDs) != u.policy.RequiredApprovals {
		return nil, fmt.Errorf("%w: exactly %d trusted parties are required, got %d",
			domain.ErrInvalidRequest, u.policy.RequiredApprovals, len(in.PartyIDs))
	}

	found, err := u.parties.GetManyForOwner(ctx, in.OwnerID, in.PartyIDs)
	if err != nil {
		u.log.Error("resolve trusted parties", zap.String("owner_id", in.OwnerID), zap.Error(err))
		return nil, ErrTechnical
	}
	byID := make(map[string]party.Party, len(found))
	for _, p := range found {
		byID[p.PartyID] = p
	}

	approvers := make([]domain.Approver, 0, len(in.PartyIDs))
	for _, pid := range in.PartyIDs {
		p, ok := byID[pid]
		if !ok {
			return nil, fmt.Errorf("%w: trusted party %s not found", domain.ErrInvalidRequest, pid)
		}
		if !p.Active() {
			return nil, fmt.Errorf("%w: trusted party %s has not accepted the invitation", domain.ErrInvalidRequest, pid)
		}
		approvers = append(approvers, domain.Approver{PartyID: p.PartyID, DisplayName: p.DisplayName, Email: p.Email})
	}

	w, err := u.create(ctx, CreateInput{
		OwnerID:    in.OwnerID,
		OwnerEmail: in.OwnerEmail,
		VaultID:    in.VaultID,
		VaultName:  in.VaultName,
		Amount:     in.Amount,
		Reason:     in.Reason,
		Parties:    approvers,
	})
	if err != nil {
		return nil, err
	}
	dto := toDTO(w)
	return &dto, nil
}

func (u *Usecase) create(ctx context.Context, in CreateInput) (*domain.Request, error) {
	w, err := domain.NewRequest(domain.Draft{
		RequestID:  id.NewID32(),
		OwnerID:    in.OwnerID,
		OwnerEmail: in.OwnerEmail,
		VaultID:    in.VaultID,
		VaultName:  in.VaultName,
		Amount:     in.Amount,
		Reason:     in.Reason,
	}, in.Parties, u.policy.RequiredApprovals)
	if err != nil {
		return nil, err
	}
	w.CreatedAt = u.now()

	if err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		return r.Withdrawals.Create(ctx, w)
	}); err != nil {
		u.log.Error("persist withdrawal request", zap.String("owner_id", in.OwnerID), zap.Error(err))
		return nil, ErrTechnical
	}
	metrics.WithdrawalsCreated.Inc()
	u.log.Info("withdrawal requested",
		zap.String("request_id", w.RequestID),
		zap.String("owner_id", w.OwnerID),
		zap.String("vault_id", w.VaultID),
		zap.String("amount", w.Amount.StringFixed(2)),
	)

	u.notifyApprovers(ctx, w)
	u.publish(ctx, w, notification.EventWithdrawalRequested, "")
	return w, nil
}

// Approve records one trusted party's approval.
func (u *Usecase) Approve(ctx context.Context, in ApproveInput) (*ApproveResult, error) {
	keys := throttleKeys(in)
	if u.blocked(ctx, keys...) {
		metrics.ApprovalAttempts.WithLabelValues("throttled").Inc()
		return nil, ErrTooManyAttempts
	}

	p, err := u.parties.GetByAccessCode(ctx, in.AccessCode)
	switch {
	case errors.Is(err, party.ErrNotFound):
		u.fail(ctx, keys, "invalid_code")
		return nil, party.ErrInvalidAccessCode
	case err != nil:
		return nil, u.technical("lookup access code", in, err)
	}
	if p.PartyID != in.PartyID {
		u.fail(ctx, keys, "mismatch")
		return nil, party.ErrCodeMismatch
	}

	var (
		all  bool
		snap *domain.Request
	)
	for attempt := 1; ; attempt++ {
		err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
			w, err := r.Withdrawals.GetByRequestID(ctx, in.RequestID)
			if err != nil {
				return err
			}
			if all, err = w.Approve(in.PartyID, u.now()); err != nil {
				return err
			}
			if err := r.Withdrawals.SaveApprovals(ctx, w); err != nil {
				return err
			}
			snap = w
			return nil
		})
		if !errors.Is(err, domain.ErrVersionConflict) || attempt >= u.policy.MaxWriteAttempts {
			break
		}
		metrics.ApprovalConflicts.Inc()
		u.log.Debug("approval write conflict; retrying",
			zap.String("request_id", in.RequestID), zap.Int("attempt", attempt))
	}

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		metrics.ApprovalAttempts.WithLabelValues("not_found").Inc()
		return nil, domain.ErrNotFound
	case errors.Is(err, domain.ErrNotAuthorized):
		u.fail(ctx, keys, "not_authorized")
		return nil, domain.ErrNotAuthorized
	case errors.Is(err, domain.ErrAlreadyApproved):
		metrics.ApprovalAttempts.WithLabelValues("already_approved").Inc()
		return nil, domain.ErrAlreadyApproved
	case errors.Is(err, domain.ErrNotPending):
		metrics.ApprovalAttempts.WithLabelValues("not_pending").Inc()
		return nil, domain.ErrNotPending
	default:
		return nil, u.technical("record approval", in, err)
	}

	u.reset(ctx, keys[0])
	u.log.Info("approval recorded",
		zap.String("request_id", snap.RequestID),
		zap.String("party_id", in.PartyID),
		zap.Bool("all_approved", all),
	)
	u.publish(ctx, snap, notification.EventApprovalRecorded, in.PartyID)
	if all {
		metrics.ApprovalAttempts.WithLabelValues("completed").Inc()
		u.publish(ctx, snap, notification.EventWithdrawalApproved, "")
		u.notifyOwner(ctx, snap)
	} else {
		metrics.ApprovalAttempts.WithLabelValues("approved").Inc()
	}
	return &ApproveResult{AllApproved: all}, nil
}

func (u *Usecase) Get(ctx context.Context, requestID string) (*RequestDTO, error) {
	w, err := u.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	dto := toDTO(w)
	return &dto, nil
}

// ListByOwner returns the owner's requests, newest first.
func (u *Usecase) ListByOwner(ctx context.Context, ownerID string) ([]RequestDTO, error) {
	rows, err := u.withdrawals.ListByOwner(ctx, ownerID)
	if err != nil {
		u.log.Error("list withdrawal requests", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, ErrTechnical
	}
	out := make([]RequestDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toDTO(&rows[i]))
	}
	return out, nil
}

// ApprovalPage returns the request summary and the slot of partyID.
func (u *Usecase) ApprovalPage(ctx context.Context, requestID, partyID string) (*ApprovalPageDTO, error) {
	w, err := u.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	slot, ok := w.Slot(partyID)
	if !ok {
		return nil, domain.ErrNotAuthorized
	}
	return &ApprovalPageDTO{Request: toDTO(w), Slot: toSlotDTO(*slot)}, nil
}

func (u *Usecase) load(ctx context.Context, requestID string) (*domain.Request, error) {
	w, err := u.withdrawals.GetByRequestID(ctx, requestID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		u.log.Error("load withdrawal request", zap.String("request_id", requestID), zap.Error(err))
		return nil, ErrTechnical
	}
	return w, nil
}

func (u *Usecase) technical(op string, in ApproveInput, err error) error {
	metrics.ApprovalAttempts.WithLabelValues("error").Inc()
	u.log.Error(op,
		zap.String("request_id", in.RequestID),
		zap.String("party_id", in.PartyID),
		zap.Error(err),
	)
	return ErrTechnical
}

// throttleKeys returns the per-party key first, then the per-client key.
// The client key bounds guessing across rotated party ids.
func throttleKeys(in ApproveInput) []string {
	return []string{in.PartyID + ":" + in.ClientKey, "client:" + in.ClientKey}
}

// blocked fails open: a limiter outage is logged and never blocks approvals.
func (u *Usecase) blocked(ctx context.Context, keys ...string) bool {
	if u.limiter == nil {
		return false
	}
	for _, key := range keys {
		b, err := u.limiter.Blocked(ctx, key)
		if err != nil {
			u.log.Warn("attempt limiter unavailable", zap.Error(err))
			return false
		}
		if b {
			return true
		}
	}
	return false
}

func (u *Usecase) fail(ctx context.Context, keys []string, result string) {
	metrics.ApprovalAttempts.WithLabelValues(result).Inc()
	if u.limiter == nil {
		return
	}
	for _, key := range keys {
		locked, err := u.limiter.Fail(ctx, key)
		if err != nil {
			u.log.Warn("attempt limiter unavailable", zap.Error(err))
			return
		}
		if locked {
			u.log.Warn("approval attempts locked out", zap.String("key", key))
		}
	}
}

// reset clears only the per-party counter; the per-client one expires with its window.
func (u *Usecase) reset(ctx context.Context, key string) {
	if u.limiter == nil {
		return
	}
	if err := u.limiter.Reset(ctx, key); err != nil {
		u.log.Warn("attempt limiter unavailable", zap.Error(err))
	}
}

// ApprovalLink is the URL emailed to partyID for requestID.
func (u *Usecase) ApprovalLink(requestID, partyID string) string {
	return u.policy.PublicBaseURL + "/approve-withdrawal?requestId=" +
		url.QueryEscape(requestID) + "&partyId=" + url.QueryEscape(partyID)
}

// notifyApprovers emails every slot concurrently. Failures are logged and
// counted per recipient and never returned.
func (u *Usecase) notifyApprovers(ctx context.Context, w *domain.Request) {
	var g errgroup.Group
	for _, s := range w.Approvals {
		msg := notification.Message{
			TemplateID: u.policy.ApprovalTemplate,
			To:         s.PartyEmail,
			ToName:     s.PartyDisplayName,
			Params: map[string]string{
				"request_id":    w.RequestID,
				"vault_name":    w.VaultName,
				"amount":        w.Amount.StringFixed(2),
				"reason":        w.Reason,
				"approval_link": u.ApprovalLink(w.RequestID, s.PartyID),
			},
		}
		g.Go(func() error {
			u.send(ctx, msg, w.RequestID)
			return nil
		})
	}
	_ = g.Wait()
}

func (u *Usecase) notifyOwner(ctx context.Context, w *domain.Request) {
	if w.OwnerEmail == "" {
		return
	}
	u.send(ctx, notification.Message{
		TemplateID: u.policy.CompletedTemplate,
		To:         w.OwnerEmail,
		Params: map[string]string{
			"request_id": w.RequestID,
			"vault_name": w.VaultName,
			"amount":     w.Amount.StringFixed(2),
		},
	}, w.RequestID)
}

func (u *Usecase) send(ctx context.Context, msg notification.Message, requestID string) {
	if u.mailer == nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, u.policy.SendTimeout)
	defer cancel()
	if err := u.mailer.Send(sendCtx, msg); err != nil {
		metrics.NotificationFailures.WithLabelValues("email").Inc()
		u.log.Warn("email not sent",
			zap.String("request_id", requestID),
			zap.String("template", msg.TemplateID),
			zap.String("to", msg.To),
			zap.Error(err),
		)
	}
}

func (u *Usecase) publish(ctx context.Context, w *domain.Request, t notification.EventType, partyID string) {
	if u.events == nil {
		return
	}
	err := u.events.Publish(ctx, notification.Event{
		Type:       t,
		RequestID:  w.RequestID,
		OwnerID:    w.OwnerID,
		VaultID:    w.VaultID,
		PartyID:    partyID,
		Amount:     w.Amount.StringFixed(2),
		OccurredAt: u.now(),
	})
	if err != nil {
		metrics.NotificationFailures.WithLabelValues("event").Inc()
		u.log.Warn("event not published",
			zap.String("type", string(t)),
			zap.String("request_id", w.RequestID),
			zap.Error(err),
		)
	}
}
