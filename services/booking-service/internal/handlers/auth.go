package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/bookease/libs/auth"
	"github.com/md-rashed-zaman/bookease/libs/httpx"
)

// BusinessIDHeader is set by the gateway when bearer tokens are verified upstream.
const BusinessIDHeader = "X-Business-Id"

type businessKey struct{}

func businessIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(businessKey{}).(string)
	return id
}

// OwnerAuth resolves the calling business. With a verifier the bearer token is required and
// its business_id claim wins; without one the gateway header is trusted.
func OwnerAuth(verifier *auth.Verifier) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var businessID string
			if verifier != nil {
				token, ok := auth.BearerToken(r.Header.Get("Authorization"))
				if !ok {
					http.Error(w, "missing bearer token", http.StatusUnauthorized)
					return
				}
				claims, err := verifier.Parse(token)
				if err != nil {
					http.Error(w, "invalid token", http.StatusUnauthorized)
					return
				}
				if claims.Role != "" && claims.Role != "owner" {
					http.Error(w, "owner role required", http.StatusForbidden)
					return
				}
				businessID = claims.BusinessID
			} else {
				businessID = strings.TrimSpace(r.Header.Get(BusinessIDHeader))
			}

			if _, err := uuid.Parse(businessID); err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), businessKey{}, businessID)))
		})
	}
}
