package http

import (
	"errors"
	"net/http"

	"vault-approval-service/internal/adapter/middleware"
	domain "vault-approval-service/internal/domain/trustedparty"
	"vault-approval-service/internal/usecase/trustedparty"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type TrustedPartyHandler struct {
	uc  *trustedparty.Usecase
	log *zap.Logger
}

func NewTrustedPartyHandler(uc *trustedparty.Usecase, log *zap.Logger) *TrustedPartyHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &TrustedPartyHandler{uc: uc, log: log}
}

type inviteReq struct {
	DisplayName string `json:"display_name" validate:"required,max=120"`
	Email       string `json:"email"        validate:"required,email"`
}

type acceptReq struct {
	PartyID     string `json:"party_id"     validate:"required,hex32"`
	InviteToken string `json:"invite_token" validate:"required,hex32"`
}

func (h *TrustedPartyHandler) Invite(c echo.Context) error {
	var req inviteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, validationFailed(err))
	}
	dto, err := h.uc.Invite(c.Request().Context(), trustedparty.InviteInput{
		OwnerID:     middleware.OwnerID(c),
		OwnerName:   middleware.OwnerName(c),
		DisplayName: req.DisplayName,
		Email:       req.Email,
	})
	if err != nil {
		return h.technical(c, "invite trusted party", err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *TrustedPartyHandler) List(c echo.Context) error {
	out, err := h.uc.List(c.Request().Context(), middleware.OwnerID(c))
	if err != nil {
		return h.technical(c, "list trusted parties", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": out})
}

// Accept is public: the invite token in the body is the credential.
func (h *TrustedPartyHandler) Accept(c echo.Context) error {
	var req acceptReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, validationFailed(err))
	}
	res, err := h.uc.Accept(c.Request().Context(), trustedparty.AcceptInput{
		PartyID:     req.PartyID,
		InviteToken: req.InviteToken,
	})
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, res)
	case errors.Is(err, domain.ErrInvalidInvitation):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		return h.technical(c, "accept invitation", err)
	}
}

func (h *TrustedPartyHandler) technical(c echo.Context, op string, err error) error {
	h.log.Error(op, zap.String("owner_id", middleware.OwnerID(c)), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "technical error"})
}
