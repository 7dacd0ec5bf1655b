// Package auth resolves the signed-in user from identity headers set by the
// authentication proxy, and redirects anonymous visitors away from private
// pages.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"welth/internal/core"
)

const (
	HeaderUserID    = "X-Auth-User-Id"
	HeaderEmail     = "X-Auth-Email"
	HeaderFirstName = "X-Auth-First-Name"
	HeaderLastName  = "X-Auth-Last-Name"
	HeaderImageURL  = "X-Auth-Image-Url"
)

// ProtectedPrefixes lists the route families that require a session.
var ProtectedPrefixes = []string{"/dashboard", "/account", "/transaction", "/budget"}

type contextKey struct{}

// UserResolver maps an identity to a stored user, or nil when the visitor
// should be treated as anonymous.
type UserResolver interface {
	CheckUser(ctx context.Context, id *core.Identity) *core.User
}

// IdentityFromRequest reads the identity headers. It returns nil when the
// request carries no user id.
func IdentityFromRequest(r *http.Request) *core.Identity {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if id == "" {
		return nil
	}
	return &core.Identity{
		ExternalID: id,
		Email:      strings.TrimSpace(r.Header.Get(HeaderEmail)),
		FirstName:  strings.TrimSpace(r.Header.Get(HeaderFirstName)),
		LastName:   strings.TrimSpace(r.Header.Get(HeaderLastName)),
		ImageURL:   strings.TrimSpace(r.Header.Get(HeaderImageURL)),
	}
}

// IsProtected reports whether path falls under one of ProtectedPrefixes.
// Matching is per path segment, so /accounts is not /account.
func IsProtected(path string) bool {
	for _, prefix := range ProtectedPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *core.User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// UserFromContext returns the user attached by Middleware.
func UserFromContext(ctx context.Context) (*core.User, bool) {
	u, ok := ctx.Value(contextKey{}).(*core.User)
	return u, ok && u != nil
}

type Middleware struct {
	users     UserResolver
	signInURL string
	trusted   func(*http.Request) bool
}

// NewMiddleware builds the session middleware. Identity headers are ignored
// unless trusted reports the request came through the auth proxy; a nil
// trusted accepts every request.
func NewMiddleware(users UserResolver, signInURL string, trusted func(*http.Request) bool) *Middleware {
	return &Middleware{users: users, signInURL: signInURL, trusted: trusted}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var user *core.User
		if m.trusted == nil || m.trusted(r) {
			if id := IdentityFromRequest(r); id != nil {
				user = m.users.CheckUser(ctx, id)
			}
		} else if r.Header.Get(HeaderUserID) != "" {
			slog.WarnContext(ctx, "Ignoring identity headers from untrusted peer",
				"component", "auth", "remote_addr", r.RemoteAddr)
		}

		if user == nil && IsProtected(r.URL.Path) {
			http.Redirect(w, r, m.SignInRedirect(r.URL.Path), http.StatusFound)
			return
		}
		if user != nil {
			r = r.WithContext(WithUser(ctx, user))
		}
		next.ServeHTTP(w, r)
	})
}

// SignInRedirect builds the sign-in URL that returns the visitor to path.
func (m *Middleware) SignInRedirect(path string) string {
	u, err := url.Parse(m.signInURL)
	if err != nil {
		return m.signInURL
	}
	q := u.Query()
	q.Set("redirect_url", path)
	u.RawQuery = q.Encode()
	return u.String()
}
