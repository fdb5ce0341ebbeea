// Package server implements the HTTP server and routing logic.
package server

import (
	"net/http"

	apierrors "github.com/maruel/treksync/internal/errors"
	"github.com/maruel/treksync/internal/server/handlers"
	"github.com/maruel/treksync/internal/server/ratelimit"
	"github.com/maruel/treksync/internal/server/reqctx"
)

// NewRouter creates and configures the HTTP router.
// Serves the document API and the realtime endpoint at /api/v1/*.
func NewRouter(svc *handlers.Services) http.Handler {
	mux := &http.ServeMux{}
	hh := handlers.NewHealthHandler(svc)
	dh := handlers.NewDocHandler(svc)
	wsh := handlers.NewWSHandler(svc)

	// Writes are throttled per client IP; the realtime endpoint applies the
	// same limiter to each set frame.
	throttle := ratelimit.Middleware(svc.Writes, func(r *http.Request) string {
		return reqctx.ClientIP(r.Context())
	}, func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, apierrors.RateLimited())
	})
	// The body holds one document plus its envelope.
	maxBody := int64(svc.Store.MaxDocumentBytes() + 4096)
	write := func(h http.Handler) http.Handler {
		return throttle(http.MaxBytesHandler(h, maxBody))
	}

	mux.Handle("GET /api/v1/health", Wrap(hh.Health))

	// Documents
	mux.Handle("GET /api/v1/paths", Wrap(dh.ListPaths))
	mux.Handle("GET /api/v1/docs/{path...}", Wrap(dh.Get))
	mux.Handle("PUT /api/v1/docs/{path...}", write(Wrap(dh.Put)))
	mux.Handle("DELETE /api/v1/docs/{path...}", write(Wrap(dh.Delete)))

	// Schemas
	mux.Handle("GET /api/v1/schemas", Wrap(handlers.ListKinds))
	mux.Handle("GET /api/v1/schemas/{kind}", Wrap(handlers.GetSchema))

	// Realtime
	mux.Handle("GET /api/v1/ws", wsh)

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, apierrors.NotFound("endpoint "+r.URL.Path))
	})

	return ClientIPMiddleware(AuthMiddleware(svc.Config.JWTSecret, svc.Config.RequireAuth)(mux))
}
