package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"counselling-payments/internal/infra/logging"

	"github.com/golang-jwt/jwt/v5"
)

// ===== Session/JWT primitives =====

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

type AuthManager struct {
	secret []byte
	ttl    time.Duration
}

func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	return &AuthManager{secret: []byte(secret), ttl: ttl}
}

type UserClaims struct {
	ID    string `json:"id"`
	Phone string `json:"phone"`
	jwt.RegisteredClaims
}

// Mint issues an HS256 token for the app client.
func (a *AuthManager) Mint(userID, phone string) (string, error) {
	now := time.Now()
	claims := UserClaims{
		ID:    userID,
		Phone: phone,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Subject:   userID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*UserClaims, error) {
	hdr := r.Header.Get("Authorization")
	if len(hdr) > 7 && strings.EqualFold(hdr[:7], "bearer ") {
		return a.parse(strings.TrimSpace(hdr[7:]))
	}
	return nil, errMissingToken
}

func (a *AuthManager) parse(tok string) (*UserClaims, error) {
	claims := &UserClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid || claims.ID == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

type ctxKey int

const ctxClaims ctxKey = iota

// RequireUser rejects requests without a valid bearer token and stores the
// claims for handlers.
func (a *AuthManager) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.ParseFromRequest(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
			return
		}
		ctx := context.WithValue(r.Context(), ctxClaims, claims)
		ctx = logging.WithUserID(ctx, claims.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFrom(ctx context.Context) *UserClaims {
	c, _ := ctx.Value(ctxClaims).(*UserClaims)
	return c
}
