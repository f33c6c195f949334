package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/storefronthq/storefront-backend/api/responses"
	"github.com/storefronthq/storefront-backend/pkg/config"
	pkgerrors "github.com/storefronthq/storefront-backend/pkg/errors"
	"github.com/storefronthq/storefront-backend/pkg/logger"
)

const sessionIDHeader = "X-Session-Id"

// OwnerIdentity resolves who owns the cart for this request. A valid bearer
// token identifies a signed-in user; otherwise the guest session header does.
// Guests and users get distinct owner namespaces so a session id can never
// collide with a user id.
func OwnerIdentity(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				subject, err := parseSubject(cfg, token)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}
				serveAs(next, w, r, logg, OwnerKindUser, "user:"+subject)
				return
			}

			if session := strings.TrimSpace(r.Header.Get(sessionIDHeader)); session != "" {
				serveAs(next, w, r, logg, OwnerKindGuest, "guest:"+session)
				return
			}

			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
		})
	}
}

func serveAs(next http.Handler, w http.ResponseWriter, r *http.Request, logg *logger.Logger, kind, ownerID string) {
	ctx := WithOwner(r.Context(), kind, ownerID)
	if logg != nil {
		ctx = logg.WithOwnerID(ctx, ownerID)
	}
	next.ServeHTTP(w, r.WithContext(ctx))
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}

func parseSubject(cfg config.JWTConfig, token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer(cfg.Issuer))
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "token has no subject")
	}
	return claims.Subject, nil
}
