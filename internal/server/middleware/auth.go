package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

type contextKeyAuth string

const (
	// AuthPrincipalKey is the context key for the authenticated principal.
	AuthPrincipalKey contextKeyAuth = "auth_principal"
)

// ErrInvalidToken is returned by Verifier.Verify for any rejected token.
var ErrInvalidToken = errors.New("invalid token")

// Principal is the dashboard user behind a verified bearer token.
type Principal struct {
	Subject string
	Email   string
	Name    string
}

// Claims are the token claims FleetMate reads. Tokens come from the
// dashboard's identity provider; FleetMate never issues them.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Verifier checks HMAC signed bearer tokens.
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewVerifier returns a verifier for tokens signed with secret. When issuer
// is non-empty the iss claim must match it.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, leeway: 30 * time.Second}
}

// Verify parses tokenStr and returns its principal. Tokens must carry an
// expiry and a subject.
func (v *Verifier) Verify(tokenStr string) (*Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Principal{Subject: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

// RequireBearer rejects requests without a valid bearer token. Browsers
// cannot set headers on websocket upgrades, so an access_token query
// parameter is accepted for those. A nil verifier lets every request
// through.
func RequireBearer(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if v == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="fleetmate"`)
				writeError(w, http.StatusUnauthorized, "Authentication required. Provide a Bearer token.")
				return
			}
			p, err := v.Verify(token)
			if err != nil {
				zerolog.Ctx(r.Context()).Debug().Err(err).Msg("bearer token rejected")
				w.Header().Set("WWW-Authenticate", `Bearer realm="fleetmate", error="invalid_token"`)
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), AuthPrincipalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if no principal is present (i.e., unauthenticated request).
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeError mirrors the handler package's error envelope, which this
// package cannot import.
func writeError(w http.ResponseWriter, status int, message string) {
	var body errorBody
	body.Error.Code = status
	body.Error.Message = message
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
