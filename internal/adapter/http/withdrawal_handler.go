package http

import (
	"errors"
	"net/http"

	"vault-approval-service/internal/adapter/middleware"
	party "vault-approval-service/internal/domain/trustedparty"
	domain "vault-approval-service/internal/domain/withdrawal"
	"vault-approval-service/internal/usecase/withdrawal"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type WithdrawalHandler struct{ uc *withdrawal.Usecase }

func NewWithdrawalHandler(uc *withdrawal.Usecase) *WithdrawalHandler {
	return &WithdrawalHandler{uc: uc}
}

type createWithdrawalReq struct {
	VaultID         string          `json:"vault_id"          validate:"required,max=64"`
	VaultName       string          `json:"vault_name"        validate:"required,max=120"`
	Amount          decimal.Decimal `json:"amount"            validate:"required,positive,dec2,maxamount"`
	Reason          string          `json:"reason"            validate:"required,max=500"`
	TrustedPartyIDs []string        `json:"trusted_party_ids" validate:"required,unique,dive,hex32"`
}

type approveReq struct {
	PartyID    string `json:"party_id"    validate:"required,hex32"`
	AccessCode string `json:"access_code" validate:"required,digits12"`
}

type approveOK struct {
	Success     bool `json:"success"`
	AllApproved bool `json:"all_approved"`
}

type approveFail struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (h *WithdrawalHandler) Create(c echo.Context) error {
	var req createWithdrawalReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, validationFailed(err))
	}

	dto, err := h.uc.RequestWithdrawal(c.Request().Context(), withdrawal.RequestInput{
		OwnerID:    middleware.OwnerID(c),
		OwnerEmail: middleware.OwnerEmail(c),
		VaultID:    req.VaultID,
		VaultName:  req.VaultName,
		Amount:     req.Amount,
		Reason:     req.Reason,
		PartyIDs:   req.TrustedPartyIDs,
	})
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, dto)
	case errors.Is(err, domain.ErrInvalidRequest):
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: withdrawal.ErrTechnical.Error()})
	}
}

func (h *WithdrawalHandler) List(c echo.Context) error {
	out, err := h.uc.ListByOwner(c.Request().Context(), middleware.OwnerID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: withdrawal.ErrTechnical.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"items": out})
}

func (h *WithdrawalHandler) Get(c echo.Context) error {
	requestID := c.Param("request_id")
	if requestID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing request_id path param"})
	}
	dto, err := h.uc.Get(c.Request().Context(), requestID)
	if err != nil {
		return c.JSON(readStatus(err), ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *WithdrawalHandler) Approve(c echo.Context) error {
	requestID := c.Param("request_id")
	if requestID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing request_id path param"})
	}
	var req approveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, validationFailed(err))
	}

	res, err := h.uc.Approve(c.Request().Context(), withdrawal.ApproveInput{
		RequestID:  requestID,
		PartyID:    req.PartyID,
		AccessCode: req.AccessCode,
		ClientKey:  c.RealIP(),
	})
	if err != nil {
		status, msg := approveStatus(err)
		return c.JSON(status, approveFail{Error: msg})
	}
	return c.JSON(http.StatusOK, approveOK{Success: true, AllApproved: res.AllApproved})
}

// ApprovalPage serves the landing data behind an emailed approval link.
func (h *WithdrawalHandler) ApprovalPage(c echo.Context) error {
	requestID, partyID := c.QueryParam("requestId"), c.QueryParam("partyId")
	if requestID == "" || partyID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "requestId and partyId are required"})
	}
	dto, err := h.uc.ApprovalPage(c.Request().Context(), requestID, partyID)
	if err != nil {
		return c.JSON(readStatus(err), ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, dto)
}

// Map domain errors → HTTP codes
func approveStatus(err error) (int, string) {
	switch {
	case errors.Is(err, party.ErrInvalidAccessCode):
		return http.StatusUnauthorized, party.ErrInvalidAccessCode.Error()
	case errors.Is(err, party.ErrCodeMismatch):
		return http.StatusForbidden, party.ErrCodeMismatch.Error()
	case errors.Is(err, domain.ErrNotAuthorized):
		return http.StatusForbidden, domain.ErrNotAuthorized.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.ErrNotFound.Error()
	case errors.Is(err, domain.ErrAlreadyApproved):
		return http.StatusConflict, domain.ErrAlreadyApproved.Error()
	case errors.Is(err, domain.ErrNotPending):
		return http.StatusConflict, domain.ErrNotPending.Error()
	case errors.Is(err, withdrawal.ErrTooManyAttempts):
		return http.StatusTooManyRequests, withdrawal.ErrTooManyAttempts.Error()
	default:
		return http.StatusInternalServerError, withdrawal.ErrTechnical.Error()
	}
}

func readStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotAuthorized):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
