package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the school tenancy and role of an authenticated caller.
type Claims struct {
	SchoolID string `json:"school_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) validate(now time.Time) error {
	if c.SchoolID == "" {
		return fmt.Errorf("%w: missing school_id claim", ErrInvalidToken)
	}
	if _, ok := NormalizeRole(c.Role); !ok {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidToken, c.Role)
	}
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	return nil
}

// ParseJWT verifies an HS256 token against the shared secret and returns
// its claims. Tokens without a school_id or a known role are rejected.
func ParseJWT(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" || len(secret) == 0 {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if err := claims.validate(time.Now()); err != nil {
		return nil, err
	}
	return claims, nil
}
