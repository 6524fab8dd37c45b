package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"prepvio-subscription/internal/infra/logging"
	"prepvio-subscription/internal/usecase"
)

const roleAdmin = "admin"

var errMissingToken = errors.New("missing token")

// Claims are issued by the main Prepvio backend. Subject is the user id.
type Claims struct {
	Role  string `json:"role,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type AuthManager struct {
	secret      []byte
	cookieName  string
	adminEmails map[string]struct{}
}

func NewAuthManager(secret, cookieName string, adminEmails []string) *AuthManager {
	if cookieName == "" {
		cookieName = "token"
	}
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &AuthManager{secret: []byte(secret), cookieName: cookieName, adminEmails: admins}
}

// Mint signs a token for userID. Used by tooling and tests.
func (a *AuthManager) Mint(userID, email, name, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:  role,
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   userID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*Claims, error) {
	// Authorization: Bearer <jwt>
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		if len(hdr) > 7 && strings.EqualFold(hdr[:7], "bearer ") {
			return a.parse(strings.TrimSpace(hdr[7:]))
		}
	}
	if c, err := r.Cookie(a.cookieName); err == nil && c.Value != "" {
		return a.parse(c.Value)
	}
	return nil, errMissingToken
}

func (a *AuthManager) parse(tok string) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (a *AuthManager) isAdmin(c *Claims) bool {
	if c.Role == roleAdmin {
		return true
	}
	_, ok := a.adminEmails[strings.ToLower(c.Email)]
	return ok
}

type principal struct {
	UserID string
	Email  string
	Admin  bool
}

type principalKey struct{}

func principalFrom(ctx context.Context) (principal, bool) {
	p, ok := ctx.Value(principalKey{}).(principal)
	return p, ok
}

// RequireUser authenticates the request and makes sure the user exists.
func (a *AuthManager) RequireUser(users usecase.UserUseCase) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.ParseFromRequest(r)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorBody{Message: "Unauthorized"})
				return
			}
			ctx := logging.WithUserID(r.Context(), claims.Subject)
			if _, err := users.Ensure(ctx, claims.Subject, claims.Email, claims.Name); err != nil {
				writeError(w, r, nil, err)
				return
			}
			p := principal{UserID: claims.Subject, Email: claims.Email, Admin: a.isAdmin(claims)}
			ctx = context.WithValue(ctx, principalKey{}, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after RequireUser.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Message: "Unauthorized"})
			return
		}
		if !p.Admin {
			writeJSON(w, http.StatusForbidden, errorBody{Message: "Admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
