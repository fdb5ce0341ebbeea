// Package handlers implements the treksync HTTP and WebSocket endpoints.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/maruel/treksync/internal/config"
	"github.com/maruel/treksync/internal/docstore"
	apierrors "github.com/maruel/treksync/internal/errors"
	"github.com/maruel/treksync/internal/server/ratelimit"
)

// Services holds what the handlers share.
type Services struct {
	Store  *docstore.Store
	Config *config.ServerConfig
	// Writes throttles document writes per client IP. nil allows everything.
	Writes *ratelimit.Limiter
	// Version is reported by the health endpoint.
	Version string
}

// storeError converts a docstore error into an API error.
func storeError(path string, err error, limit int) error {
	switch {
	case errors.Is(err, docstore.ErrInvalidPath):
		return apierrors.InvalidPath(path, err)
	case errors.Is(err, docstore.ErrDocumentTooLarge):
		return apierrors.DocumentTooLarge(limit).Wrap(err)
	case errors.Is(err, docstore.ErrInvalidDocument):
		return apierrors.BadRequest("value is not valid JSON").Wrap(err)
	case errors.Is(err, docstore.ErrClosed):
		return apierrors.NewAPIError(http.StatusServiceUnavailable, apierrors.ErrInternal, "server is shutting down").Wrap(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apierrors.InternalWithError("failed to access document", err)
	}
}
