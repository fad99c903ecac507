// Package auth verifies identity tokens issued by the external identity
// provider and resolves the acting user for a request.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/PaulBabatuyi/coova/internal/apperr"
	"github.com/PaulBabatuyi/coova/internal/normalize"
)

// JWTManager signs and validates JWT tokens used by the API.
type JWTManager struct {
	keys      map[string]string // kid -> HMAC secret
	activeKid string            // kid used for signing new tokens ("" = single key)
	duration  time.Duration     // how long issued tokens are valid
}

// Claims is the custom JWT payload. UserID is the stable identifier every
// booking and conversation is keyed by.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// NewJWTManager returns a manager with a single signing secret.
func NewJWTManager(secretKey string, duration time.Duration) *JWTManager {
	return &JWTManager{
		keys:     map[string]string{"": secretKey},
		duration: duration,
	}
}

// NewJWTManagerFromKeys supports key rotation: tokens carry a kid header,
// any configured kid verifies, and activeKid signs. When activeKid is empty
// an arbitrary configured key is used for signing.
func NewJWTManagerFromKeys(keys map[string]string, activeKid string, duration time.Duration) *JWTManager {
	cp := make(map[string]string, len(keys))
	for k, v := range keys {
		cp[k] = v
	}
	if activeKid == "" {
		for k := range cp {
			if activeKid == "" || k < activeKid {
				activeKid = k
			}
		}
	}
	return &JWTManager{keys: cp, activeKid: activeKid, duration: duration}
}

// GenerateToken issues a signed JWT for a user. Production tokens come from
// the identity provider; this is used by tooling and tests.
func (m *JWTManager) GenerateToken(userID string) (string, time.Time, error) {
	expiresAt := time.Now().Add(m.duration)

	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if m.activeKid != "" {
		token.Header["kid"] = m.activeKid
	}

	secret, ok := m.keys[m.activeKid]
	if !ok {
		return "", time.Time{}, fmt.Errorf("no signing key for kid %q", m.activeKid)
	}
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// VerifyToken parses and validates a token and returns its claims.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// only HMAC tokens are accepted
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		secret, ok := m.keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	claims.UserID = normalize.ID(claims.UserID)
	if claims.UserID == "" {
		return nil, errors.New("token carries no user id")
	}
	return claims, nil
}

// ResolveActor returns the user a request acts as. An empty requested id
// defaults to the authenticated user; any other id must match it.
func ResolveActor(claims *Claims, requested string) (string, error) {
	if claims == nil {
		return "", apperr.Forbidden("missing identity")
	}
	requested = normalize.ID(requested)
	if requested == "" || requested == claims.UserID {
		return claims.UserID, nil
	}
	return "", apperr.Forbidden("request user does not match authenticated user")
}
