package app

import (
	"github.com/hoistlabs/datagate/internal/document"
	"github.com/hoistlabs/datagate/internal/rules"
	"github.com/hoistlabs/datagate/internal/session"
	"github.com/hoistlabs/datagate/internal/tenant"
)

// RegisterRoutes constructs the repositories and services and wires the
// catch-all document routes. This is the single place where the dependency
// graph is assembled.
func (a *App) RegisterRoutes() error {
	tenantRepo := tenant.NewRepository(a.DB)
	tenantSvc := tenant.NewService(tenantRepo)

	sessions := session.NewRepository(a.Redis, a.Config.Session.TTL)

	rulesRepo := rules.NewRepository(a.DB)
	evaluator, err := rules.NewEvaluator()
	if err != nil {
		return err
	}

	store := document.NewStore(a.DB)
	docSvc := document.NewService(store, rulesRepo, evaluator)
	handler := document.NewHandler(docSvc)

	document.RegisterRoutes(a.Echo, handler, tenantSvc, sessions, a.Config.Session.CookieName)
	return nil
}
