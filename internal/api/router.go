package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	apiContext "udl/internal/api/context"
	"udl/internal/api/handlers"
	"udl/internal/api/middleware"
	"udl/internal/pkg/errors"
)

type Dependencies struct {
	WebhookHandler   *handlers.WebhookHandler
	AdminHandler     *handlers.AdminHandler
	HealthHandler    *handlers.HealthHandler
	APIKeyMiddleware *middleware.APIKeyMiddleware // nil disables the admin routes
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()
	// The webhook handler owns method validation (405 with a JSON body per
	// the pipeline contract). httprouter's plain-text 405 is disabled so
	// unregistered methods like TRACE fall through NotFound into the handler,
	// and path fixups are off so a malformed webhook URL reaches the
	// handler's own 404 instead of a redirect.
	router.HandleMethodNotAllowed = false
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	webhookMethods := []string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodHead, http.MethodOptions,
	}
	for _, method := range webhookMethods {
		router.Handle(method, "/_webhooks/:plugin/*path", wrap(deps.WebhookHandler.Handle))
	}

	// Malformed webhook URLs (a missing path segment, an unregistered
	// method) do not match a route; send them to the handler so its own
	// 404/405 shapes apply.
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/_webhooks") {
			deps.WebhookHandler.Handle(w, r)
			return
		}
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Not found", nil)
	})

	router.GET("/api/v1/health", wrap(deps.HealthHandler.Check))

	if deps.APIKeyMiddleware != nil {
		adminMid := deps.APIKeyMiddleware
		router.GET("/api/v1/webhooks/queue",
			chain(deps.AdminHandler.GetQueue, adminMid.Handle))
		router.GET("/api/v1/webhooks/registrations",
			chain(deps.AdminHandler.GetRegistrations, adminMid.Handle))
		router.GET("/api/v1/webhooks/deliveries",
			chain(deps.AdminHandler.GetDeliveries, adminMid.Handle))
	}

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
