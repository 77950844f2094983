package registry

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/logger"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

type contextKey string

const claimsContextKey contextKey = "user_claims"

// TokenValidator implements JWT token validation for the registry API
type TokenValidator struct {
	jwtSecret []byte
	issuer    string
}

// NewTokenValidator creates a new token validator
func NewTokenValidator(secret, issuer string) *TokenValidator {
	return &TokenValidator{
		jwtSecret: []byte(secret),
		issuer:    issuer,
	}
}

// JWTClaims are the registry token claims
type JWTClaims struct {
	DID     string `json:"did"`
	Address string `json:"address"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// ValidateJWT validates a token and returns the caller's claims
func (tv *TokenValidator) ValidateJWT(tokenString string) (*types.UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tv.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.DID == "" {
		return nil, fmt.Errorf("token carries no did")
	}

	return &types.UserClaims{
		DID:     claims.DID,
		Address: claims.Address,
		Role:    types.Role(claims.Role),
	}, nil
}

// IssueToken signs a token for the given identity. Used by the service
// bootstrap and by tests; production deployments typically sit behind
// an external identity provider issuing compatible tokens.
func (tv *TokenValidator) IssueToken(did, address string, role types.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &JWTClaims{
		DID:     did,
		Address: address,
		Role:    string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tv.issuer,
			Subject:   did,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tv.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// AuthMiddleware extracts and validates the bearer token, storing the
// caller's claims on the request context.
func AuthMiddleware(validator *TokenValidator, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Missing bearer token")
				return
			}

			claims, err := validator.ValidateJWT(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				log.Security("token_rejected", "", map[string]interface{}{"error": err.Error(), "path": r.URL.Path})
				writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the authenticated caller, if any
func ClaimsFromContext(ctx context.Context) *types.UserClaims {
	claims, _ := ctx.Value(claimsContextKey).(*types.UserClaims)
	return claims
}
