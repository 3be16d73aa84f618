package trustedparty

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"vault-approval-service/internal/domain/notification"
	domain "vault-approval-service/internal/domain/trustedparty"
	"vault-approval-service/internal/infrastructure/metrics"
	"vault-approval-service/pkg/id"

	"go.uber.org/zap"
)

const maxCodeAttempts = 5

type Policy struct {
	PublicBaseURL  string
	InviteTemplate string
	CodeTemplate   string
	SendTimeout    time.Duration
}

type Usecase struct {
	repo    domain.Repository
	mailer  notification.Mailer
	events  notification.Publisher
	policy  Policy
	log     *zap.Logger
	now     func() time.Time
	newCode func() (string, error)
}

func NewUsecase(repo domain.Repository, mailer notification.Mailer, events notification.Publisher, p Policy, log *zap.Logger) *Usecase {
	if p.SendTimeout <= 0 {
		p.SendTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Usecase{
		repo:    repo,
		mailer:  mailer,
		events:  events,
		policy:  p,
		log:     log.Named("trustedparty"),
		now:     func() time.Time { return time.Now().UTC() },
		newCode: id.NewAccessCode,
	}
}

// Invite registers a trusted party for the owner and emails the invitation.
func (u *Usecase) Invite(ctx context.Context, in InviteInput) (*PartyDTO, error) {
	p := &domain.Party{
		PartyID:     id.NewID32(),
		OwnerID:     in.OwnerID,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Email:       strings.ToLower(strings.TrimSpace(in.Email)),
		Status:      domain.StatusInvited,
		InviteToken: id.NewID32(),
	}
	if err := u.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("trustedparty: create: %w", err)
	}
	u.log.Info("trusted party invited", zap.String("owner_id", p.OwnerID), zap.String("party_id", p.PartyID))

	u.send(ctx, notification.Message{
		TemplateID: u.policy.InviteTemplate,
		To:         p.Email,
		ToName:     p.DisplayName,
		Params: map[string]string{
			"owner_name":  in.OwnerName,
			"invite_link": u.inviteLink(p.PartyID, p.InviteToken),
		},
	}, p.PartyID)

	dto := toDTO(p)
	return &dto, nil
}

// Accept consumes the invitation and issues the party's access code.
func (u *Usecase) Accept(ctx context.Context, in AcceptInput) (*AcceptResult, error) {
	p, err := u.repo.GetByPartyID(ctx, in.PartyID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidInvitation
	}
	if err != nil {
		return nil, fmt.Errorf("trustedparty: load: %w", err)
	}
	if p.Status != domain.StatusInvited || p.InviteToken == "" ||
		subtle.ConstantTimeCompare([]byte(p.InviteToken), []byte(in.InviteToken)) != 1 {
		return nil, domain.ErrInvalidInvitation
	}

	var code string
	for attempt := 1; ; attempt++ {
		code, err = u.newCode()
		if err != nil {
			return nil, fmt.Errorf("trustedparty: generate code: %w", err)
		}
		p.Activate(code, u.now())
		err = u.repo.Save(ctx, p)
		if !errors.Is(err, domain.ErrAccessCodeTaken) || attempt >= maxCodeAttempts {
			break
		}
		u.log.Warn("access code collision; regenerating", zap.String("party_id", p.PartyID))
	}
	if err != nil {
		return nil, fmt.Errorf("trustedparty: activate: %w", err)
	}
	u.log.Info("trusted party activated", zap.String("party_id", p.PartyID))

	u.send(ctx, notification.Message{
		TemplateID: u.policy.CodeTemplate,
		To:         p.Email,
		ToName:     p.DisplayName,
		Params:     map[string]string{"access_code": code},
	}, p.PartyID)
	if u.events != nil {
		if err := u.events.Publish(ctx, notification.Event{
			Type:       notification.EventPartyActivated,
			OwnerID:    p.OwnerID,
			PartyID:    p.PartyID,
			OccurredAt: u.now(),
		}); err != nil {
			metrics.NotificationFailures.WithLabelValues("event").Inc()
			u.log.Warn("event not published", zap.String("party_id", p.PartyID), zap.Error(err))
		}
	}

	return &AcceptResult{PartyID: p.PartyID, AccessCode: code}, nil
}

func (u *Usecase) List(ctx context.Context, ownerID string) ([]PartyDTO, error) {
	rows, err := u.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("trustedparty: list: %w", err)
	}
	out := make([]PartyDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toDTO(&rows[i]))
	}
	return out, nil
}

func (u *Usecase) inviteLink(partyID, token string) string {
	return u.policy.PublicBaseURL + "/accept-invitation?partyId=" +
		url.QueryEscape(partyID) + "&token=" + url.QueryEscape(token)
}

func (u *Usecase) send(ctx context.Context, msg notification.Message, partyID string) {
	if u.mailer == nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, u.policy.SendTimeout)
	defer cancel()
	if err := u.mailer.Send(sendCtx, msg); err != nil {
		metrics.NotificationFailures.WithLabelValues("email").Inc()
		u.log.Warn("email not sent",
			zap.String("party_id", partyID),
			zap.String("template", msg.TemplateID),
			zap.Error(err),
		)
	}
}

func toDTO(p *domain.Party) PartyDTO {
	return PartyDTO{
		PartyID:     p.PartyID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		Status:      string(p.Status),
		AcceptedAt:  p.AcceptedAt,
		CreatedAt:   p.CreatedAt,
	}
}
