package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const patientIDKey contextKey = "patientID"

// PatientJWT authorizes patient-facing endpoints with an HMAC-signed JWT.
// The token subject is the patient id and is placed on the request context.
func PatientJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "authentication disabled", http.StatusUnauthorized)
				return
			}
			tokenString := bearerToken(r)
			if tokenString == "" {
				http.Error(w, "missing authorization token", http.StatusUnauthorized)
				return
			}
			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid || claims.Subject == "" {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), patientIDKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken accepts either "Authorization: Bearer <t>" or the legacy
// bare "token" header still sent by older clients.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("token")
}

// WithPatientID returns a context carrying the given patient id. Intended
// for handler tests and internal callers that bypass the HTTP middleware.
func WithPatientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, patientIDKey, id)
}

// PatientIDFromContext returns the authenticated patient id, if any.
func PatientIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(patientIDKey).(string)
	return id, ok
}
