package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// InviteClaims carries a shareable household code inside a signed token, so
// a code forwarded through a messenger cannot be tampered with or replayed
// after expiry.
type InviteClaims struct {
	HouseholdID string `json:"household_id"`
	jwt.RegisteredClaims
}

// InviteManager signs and validates household invite tokens
type InviteManager struct {
	secret []byte
	expiry time.Duration
}

// NewInviteManager creates an invite token manager
func NewInviteManager(secret string, expiry time.Duration) *InviteManager {
	return &InviteManager{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// Generate creates a signed invite token for a household code
func (m *InviteManager) Generate(householdID string) (string, error) {
	claims := &InviteClaims{
		HouseholdID: householdID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "safenest",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses and validates an invite token
func (m *InviteManager) Validate(tokenString string) (*InviteClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &InviteClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*InviteClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
