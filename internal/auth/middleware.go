package auth

import (
	"net/http"
	"strings"
)

// Middleware authenticates requests and enforces the role floor the
// route policy assigns to each path.
type Middleware struct {
	secret []byte
	policy Policy
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy) *Middleware {
	return &Middleware{secret: secret, policy: policy}
}

// Wrap applies authentication and RBAC to the handler.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		required, enforced := m.policy.RequiredRole(r)
		if !enforced {
			next.ServeHTTP(w, r)
			return
		}

		claims, role, err := m.authenticate(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !RoleAtLeast(role, required) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		ctx := WithIdentity(r.Context(), claims.SchoolID, role, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) authenticate(r *http.Request) (*Claims, Role, error) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(strings.TrimSpace(scheme), "Bearer") {
		return nil, "", ErrUnauthorized
	}
	claims, err := ParseJWT(strings.TrimSpace(token), m.secret)
	if err != nil {
		return nil, "", err
	}
	role, ok := NormalizeRole(claims.Role)
	if !ok {
		return nil, "", ErrInvalidToken
	}
	return claims, role, nil
}
