package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/opencliniq/triage/internal/api/v1"
	"github.com/opencliniq/triage/internal/api/ws"
)

func registerAuthRoutes(api huma.API, deps Deps) {
	v1.RegisterAuthRoutes(api, deps.Store, deps.Auth, deps.Auditor, deps.Mailer)
}

func registerAPIRoutes(api huma.API, deps Deps) {
	v1.RegisterProfileRoutes(api, deps.Auth)
	v1.RegisterUserRoutes(api, deps.Store, deps.Auditor, deps.Mailer)
	v1.RegisterCaseRoutes(api, deps.Store, deps.Auditor, deps.Hub)
	v1.RegisterAuditLogRoutes(api, deps.Store, deps.Verifier, deps.Notifier)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/cases", hub.ServeCases)
}
