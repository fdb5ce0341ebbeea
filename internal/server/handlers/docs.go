package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/maruel/treksync/internal/docstore"
	apierrors "github.com/maruel/treksync/internal/errors"
	"github.com/maruel/treksync/internal/server/reqctx"
)

// DocHandler serves documents over plain HTTP.
type DocHandler struct {
	svc *Services
}

// NewDocHandler creates a new document handler.
func NewDocHandler(svc *Services) *DocHandler {
	return &DocHandler{svc: svc}
}

// DocResponse is a snapshot served over HTTP. Its revision doubles as the
// entity tag.
type DocResponse struct {
	docstore.Snapshot
}

// ETag returns the quoted revision, or "" for a path never written.
func (d *DocResponse) ETag() string {
	if d.Rev == 0 {
		return ""
	}
	return `"` + strconv.FormatUint(d.Rev, 10) + `"`
}

// GetDocRequest addresses one document.
type GetDocRequest struct {
	Path string `path:"path" json:"-"`
}

// Get returns the current snapshot of a path. An absent document is a
// snapshot with a null value, not an error.
func (h *DocHandler) Get(ctx context.Context, req GetDocRequest) (*DocResponse, error) {
	snap, err := h.svc.Store.Get(req.Path)
	if err != nil {
		return nil, storeError(req.Path, err, h.svc.Store.MaxDocumentBytes())
	}
	return &DocResponse{snap}, nil
}

// PutDocRequest replaces one document.
type PutDocRequest struct {
	Path string `path:"path" json:"-"`
	// Value is the whole new document. JSON null clears the path.
	Value json.RawMessage `json:"value"`
}

// Put replaces the document at a path.
func (h *DocHandler) Put(ctx context.Context, req PutDocRequest) (*DocResponse, error) {
	if req.Value == nil {
		return nil, apierrors.BadRequest("value is required")
	}
	return h.set(ctx, req.Path, req.Value)
}

// DeleteDocRequest clears one document.
type DeleteDocRequest struct {
	Path string `path:"path" json:"-"`
}

// Delete clears the document at a path. Clearing an absent path still
// bumps its revision so subscribers see the write.
func (h *DocHandler) Delete(ctx context.Context, req DeleteDocRequest) (*DocResponse, error) {
	return h.set(ctx, req.Path, nil)
}

func (h *DocHandler) set(ctx context.Context, path string, value json.RawMessage) (*DocResponse, error) {
	snap, err := h.svc.Store.Set(ctx, path, value)
	if err != nil {
		return nil, storeError(path, err, h.svc.Store.MaxDocumentBytes())
	}
	slog.InfoContext(ctx, "Document written", "path", path, "rev", snap.Rev, "by", reqctx.Subject(ctx), "ip", reqctx.ClientIP(ctx))
	return &DocResponse{snap}, nil
}

// ListPathsRequest filters the listed paths.
type ListPathsRequest struct {
	Prefix string `query:"prefix"`
}

// ListPathsResponse lists paths holding a document.
type ListPathsResponse struct {
	Paths []string `json:"paths"`
}

// ListPaths returns the sorted paths holding a document.
func (h *DocHandler) ListPaths(ctx context.Context, req ListPathsRequest) (*ListPathsResponse, error) {
	out := []string{}
	for _, p := range h.svc.Store.Paths() {
		if strings.HasPrefix(p, req.Prefix) {
			out = append(out, p)
		}
	}
	return &ListPathsResponse{Paths: out}, nil
}
