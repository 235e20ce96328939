package ratelimit

import "github.com/danielgtaylor/huma/v2"

// MetadataKey is the huma operation metadata key holding the operation's Scope.
const MetadataKey = "rateLimitScope"

// Scopes returns the scopes that apply to a request: always ScopeGlobal, plus the
// scope attached to the operation, if any.
func Scopes(ctx huma.Context) []Scope {
	scopes := []Scope{ScopeGlobal}

	op := ctx.Operation()
	if op == nil || op.Metadata == nil {
		return scopes
	}

	if scope, ok := op.Metadata[MetadataKey].(Scope); ok && scope != "" {
		scopes = append(scopes, scope)
	}

	return scopes
}
