package handlers

import (
	"context"

	"github.com/invopop/jsonschema"
	apierrors "github.com/maruel/treksync/internal/errors"
	"github.com/maruel/treksync/internal/trip"
)

// ListKindsRequest is the request type for listing document kinds (empty).
type ListKindsRequest struct{}

// KindInfo describes one trip document.
type KindInfo struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// ListKindsResponse lists the trip documents.
type ListKindsResponse struct {
	Kinds []KindInfo `json:"kinds"`
}

// ListKinds returns every trip document kind and its path.
func ListKinds(ctx context.Context, req ListKindsRequest) (*ListKindsResponse, error) {
	resp := &ListKindsResponse{}
	for _, k := range trip.Kinds() {
		resp.Kinds = append(resp.Kinds, KindInfo{Kind: string(k), Path: k.Path()})
	}
	return resp, nil
}

// GetSchemaRequest names a document kind.
type GetSchemaRequest struct {
	Kind string `path:"kind" json:"-"`
}

// GetSchema returns the JSON schema of a trip document.
func GetSchema(ctx context.Context, req GetSchemaRequest) (*jsonschema.Schema, error) {
	k, err := trip.ParseKind(req.Kind)
	if err != nil {
		return nil, apierrors.NotFound("kind " + req.Kind)
	}
	s, err := k.Schema()
	if err != nil {
		return nil, apierrors.InternalWithError("failed to build schema", err)
	}
	return s, nil
}
