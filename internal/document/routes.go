package document

import (
	"github.com/labstack/echo/v4"

	"github.com/hoistlabs/datagate/internal/session"
	"github.com/hoistlabs/datagate/internal/tenant"
)

// RegisterRoutes sets up the data routes. Every model path requires the
// `Authorization: Hoist <apiKey>` credential; /ping stays open. OPTIONS is
// answered by the CORS middleware before routing.
func RegisterRoutes(e *echo.Echo, h *Handler, tenantSvc tenant.Service, sessions session.Repository, cookieName string) {
	e.GET("/ping", h.Ping)

	auth := tenant.RequireApplication(tenantSvc, sessions, cookieName)

	// Catch-all model routes: the first path segment is the model type,
	// the optional second segment the document id.
	e.POST("/*", h.Write, auth)
	e.PUT("/*", h.Write, auth)
	e.GET("/*", h.Read, auth)
	e.DELETE("/*", h.Delete, auth)
}
