package httpapi

import (
	"context"
	"net/http"

	"github.com/arawak/modelarium/internal/config"
)

type principalKeyType struct{}

var principalKey = principalKeyType{}

const (
	PermCanView   = "can_view"
	PermCanManage = "can_manage"
	PermCanImport = "can_import"
)

var knownPermissions = map[string]bool{
	PermCanView:   true,
	PermCanManage: true,
	PermCanImport: true,
}

type Principal struct {
	ID          string
	Permissions map[string]struct{}
	Source      string
}

func newPrincipalFromAPIKey(key *APIKey) *Principal {
	perms := make(map[string]struct{}, len(key.Permissions))
	for _, p := range key.Permissions {
		perms[p] = struct{}{}
	}
	return &Principal{
		ID:          key.ID,
		Permissions: perms,
		Source:      "apikey",
	}
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

func (p *Principal) HasPermission(perm string) bool {
	if p == nil {
		return false
	}
	_, ok := p.Permissions[perm]
	return ok
}

// requirePerm gates a route group behind an API key carrying the given
// permission. In auth mode "none" every request passes with no principal.
func (s *Server) requirePerm(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.cfg.AuthMode == config.AuthNone {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get("X-Api-Key")
			if key == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing X-Api-Key header", nil)
				return
			}
			entry, ok := s.apiKeys.Lookup(key)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "unknown api key", nil)
				return
			}
			p := newPrincipalFromAPIKey(entry)
			if !p.HasPermission(perm) {
				writeError(w, http.StatusForbidden, "forbidden", "api key lacks permission "+perm, nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
