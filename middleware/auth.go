package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"notes-dapp/solana"
)

// SessionCookie carries the session token for the browser page.
const SessionCookie = "notes_session"

// Claims identify one wallet session. RegisteredClaims.ID names the
// server-side session.
type Claims struct {
	Wallet string `json:"wallet"`
	jwt.RegisteredClaims
}

type claimsKey struct{}

var ErrInvalidToken = errors.New("invalid token")

// IssueToken signs a session token for w that expires after ttl.
func IssueToken(secret []byte, w solana.PublicKey, ttl time.Duration) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		Wallet: w.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   w.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ParseToken verifies tokenStr and returns its claims.
func ParseToken(secret []byte, tokenStr string) (*Claims, error) {
	if len(strings.Split(tokenStr, ".")) != 3 {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	if _, err := solana.PublicKeyFromBase58(claims.Wallet); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// tokenFrom reads a Bearer token, falling back to the session cookie.
func tokenFrom(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return "", ErrInvalidToken
		}
		return tokenStr, nil
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", http.ErrNoCookie
}

// RequireWallet rejects requests without a valid session token and puts the
// claims in the request context.
func RequireWallet(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, err := tokenFrom(r)
			if errors.Is(err, http.ErrNoCookie) {
				http.Error(w, "Authorization header missing", http.StatusUnauthorized)
				return
			}
			if err != nil {
				logrus.WithField("path", r.URL.Path).Debug("Auth Middleware - Bearer prefix missing in token")
				http.Error(w, "Invalid token format", http.StatusUnauthorized)
				return
			}

			claims, err := ParseToken(secret, tokenStr)
			if err != nil {
				logrus.WithError(err).Debug("Auth Middleware - Token parsing error")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalWallet attaches claims when a valid token is present and passes
// every request through.
func OptionalWallet(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenStr, err := tokenFrom(r); err == nil {
				if claims, err := ParseToken(secret, tokenStr); err == nil {
					r = r.WithContext(WithClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

// CORS opens the JSON API to browser clients on other origins.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
