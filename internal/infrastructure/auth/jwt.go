package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated covers missing, malformed, expired or forged credentials.
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// Identity is the authenticated caller derived from a bearer token.
type Identity struct {
	UserID     string
	TenantID   string
	Supervisor bool
}

// Claims are the JWT claims issued by the platform's identity service.
// Supervisor is a capability computed by the issuer, not a role name.
type Claims struct {
	UserID     string `json:"user_id"`
	TenantID   string `json:"tenant_id"`
	Supervisor bool   `json:"supervisor,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager verifies (and, for tooling and tests, issues) HS256 tokens.
type TokenManager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewTokenManager(secret, issuer string) *TokenManager {
	return &TokenManager{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// GenerateToken signs a token for id valid for ttl.
func (tm *TokenManager) GenerateToken(id Identity, ttl time.Duration) (string, error) {
	now := tm.now()
	claims := &Claims{
		UserID:     id.UserID,
		TenantID:   id.TenantID,
		Supervisor: id.Supervisor,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    tm.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token string. Every failure wraps ErrUnauthenticated.
func (tm *TokenManager) Verify(token string) (Identity, error) {
	if strings.TrimSpace(token) == "" {
		return Identity{}, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tm.secret, nil
	},
		jwt.WithIssuer(tm.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}
	if claims.UserID == "" || claims.TenantID == "" {
		return Identity{}, fmt.Errorf("%w: token lacks user or tenant", ErrUnauthenticated)
	}

	return Identity{UserID: claims.UserID, TenantID: claims.TenantID, Supervisor: claims.Supervisor}, nil
}

// TokenFromRequest extracts a bearer token from the Authorization header or,
// for browser websocket clients that cannot set headers, the access_token query parameter.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, value, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}
