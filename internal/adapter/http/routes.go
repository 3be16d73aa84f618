package http

import "github.com/labstack/echo/v4"

// Routes groups the handlers and the middleware guarding owner endpoints.
type Routes struct {
	Health         *Handler
	Withdrawals    *WithdrawalHandler
	TrustedParties *TrustedPartyHandler
	// OwnerAuth is required on owner endpoints.
	OwnerAuth echo.MiddlewareFunc
	// Idempotency wraps request creation; nil skips it.
	Idempotency echo.MiddlewareFunc
}

func Register(e *echo.Echo, r Routes) {
	e.GET("/health", r.Health.Health)

	creates := []echo.MiddlewareFunc{r.OwnerAuth}
	if r.Idempotency != nil {
		creates = append(creates, r.Idempotency)
	}

	e.POST("/trusted-parties", r.TrustedParties.Invite, r.OwnerAuth)
	e.GET("/trusted-parties", r.TrustedParties.List, r.OwnerAuth)
	e.POST("/trusted-parties/accept", r.TrustedParties.Accept)

	e.POST("/withdrawal-requests", r.Withdrawals.Create, creates...)
	e.GET("/withdrawal-requests", r.Withdrawals.List, r.OwnerAuth)
	e.GET("/withdrawal-requests/:request_id", r.Withdrawals.Get)
	e.POST("/withdrawal-requests/:request_id/approvals", r.Withdrawals.Approve)
	e.GET("/approve-withdrawal", r.Withdrawals.ApprovalPage)
}
