package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/share-links/internal/ratelimit"
)

// RegisterRoutes registers the share routes. Each operation names the rate limit scope it is charged to.
func RegisterRoutes(api huma.API, h *ShareHandler) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-share",
		Method:        http.MethodPost,
		Path:          "/shares",
		Summary:       "Create share link",
		Description:   "Issues a short, expiring token for the given URL.",
		Tags:          []string{"Shares"},
		DefaultStatus: http.StatusCreated,
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.ScopeCreate,
		},
	}, h.CreateShare)

	huma.Register(api, huma.Operation{
		OperationID: "get-share",
		Method:      http.MethodGet,
		Path:        "/shares/{token}",
		Summary:     "Get share link",
		Description: "Returns the URL behind a live share token.",
		Tags:        []string{"Shares"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.ScopeResolve,
		},
	}, h.GetShare)

	huma.Register(api, huma.Operation{
		OperationID: "follow-share",
		Method:      http.MethodGet,
		Path:        "/share/{token}",
		Summary:     "Follow share link",
		Description: "Redirects to the URL behind a live share token.",
		Tags:        []string{"Shares"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.ScopeResolve,
		},
	}, h.Redirect)
}
