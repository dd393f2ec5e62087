// Package auth turns request credentials into the principal id used by the managers.
package auth

import (
	"context"
	"linkfeed/errs"
	"linkfeed/schemas"
	"net/http"
	"strings"
)

type contextKey struct{ name string }

var principalCtxKey = &contextKey{"principal"}

// FailureHandler writes the response for a request whose credential was rejected.
type FailureHandler func(w http.ResponseWriter, r *http.Request, err error)

// Middleware resolves the principal from a Bearer token, or from trustedHeader when one
// is configured and set by the gateway. Requests without credentials pass through anonymous,
// and so do reads carrying a rejected credential.
func Middleware(verifier *Verifier, trustedHeader string, fail FailureHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				if trustedHeader != "" {
					if principal := strings.TrimSpace(r.Header.Get(trustedHeader)); principal != "" {
						next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), schemas.UserId(principal))))
						return
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || verifier == nil {
				rejectUnlessRead(w, r, next, fail, errs.AuthRequired())
				return
			}
			principal, err := verifier.Validate(strings.TrimSpace(tokenStr))
			if err != nil {
				rejectUnlessRead(w, r, next, fail, &errs.Error{Kind: errs.KindAuthRequired, Detail: "invalid or expired token", Err: err})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func rejectUnlessRead(w http.ResponseWriter, r *http.Request, next http.Handler, fail FailureHandler, err error) {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		next.ServeHTTP(w, r)
	default:
		fail(w, r, err)
	}
}

func WithPrincipal(ctx context.Context, principal schemas.UserId) context.Context {
	return context.WithValue(ctx, principalCtxKey, principal)
}

// ForContext returns the principal of the request, or "" for anonymous requests.
func ForContext(ctx context.Context) schemas.UserId {
	raw, _ := ctx.Value(principalCtxKey).(schemas.UserId)
	return raw
}
