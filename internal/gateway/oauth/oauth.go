// Package oauth emulates the legacy token endpoint just far enough for
// clients to obtain and present a bearer token. Issuance policy is out of
// scope; any non-empty client identity gets a short-lived token.
package oauth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	jsoncodec "github.com/recordwire/recordgate/internal/gateway/jsoncodec"
	loggingpkg "github.com/recordwire/recordgate/internal/gateway/logging"
)

var (
	ErrInvalidToken = errors.New("recordgate: invalid token")
	ErrNoSecret     = errors.New("recordgate: token secret is required")
)

// TokenService signs and verifies emulated access tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	log    loggingpkg.ServiceLogger
}

// NewTokenService constructs a TokenService with the given signing secret.
func NewTokenService(secret string, ttl time.Duration, log loggingpkg.ServiceLogger) (*TokenService, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, log: log}, nil
}

// Issue signs a token for subject.
func (t *TokenService) Issue(subject string) (string, time.Duration, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    "recordgate",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", 0, err
	}
	return signed, t.ttl, nil
}

// Verify checks the token signature and expiry and returns the subject.
func (t *TokenService) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type tokenError struct {
	Error string `json:"error"`
}

// Handler serves POST /oauth/token in the legacy password/client-credentials
// form shape.
func (t *TokenService) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeTokenError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		subject := r.PostFormValue("username")
		if subject == "" {
			subject = r.PostFormValue("client_id")
		}
		if subject == "" {
			writeTokenError(w, http.StatusBadRequest, "invalid_request")
			return
		}

		token, ttl, err := t.Issue(subject)
		if err != nil {
			t.log.Error("issuing token", err, loggingpkg.LogFields{"subject": subject})
			writeTokenError(w, http.StatusInternalServerError, "server_error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = jsoncodec.Encode(w, tokenResponse{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresIn:   int64(ttl.Seconds()),
		})
	}
}

// BearerToken extracts a bearer token from an Authorization header. Returns
// "" when none is present.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}

func writeTokenError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsoncodec.Encode(w, tokenError{Error: code})
}
