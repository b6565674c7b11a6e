package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AllComplexes is the complex_id claim of platform administrators.
const AllComplexes = "*"

// Claims represents JWT claims used by this service.
type Claims struct {
	ComplexID string `json:"complex_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// ParseJWT validates an HS256 token and returns its claims.
func ParseJWT(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: empty secret")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("auth: invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ComplexID == "" {
		return nil, fmt.Errorf("%w: missing complex_id", ErrInvalidToken)
	}
	role, ok := NormalizeRole(claims.Role)
	if !ok {
		return nil, fmt.Errorf("%w: invalid role", ErrInvalidToken)
	}
	if claims.ComplexID == AllComplexes && role != RoleAdmin {
		return nil, fmt.Errorf("%w: wildcard complex requires admin", ErrInvalidToken)
	}
	if claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
	}
	return claims, nil
}

// SignJWT issues an HS256 token for complexID and role valid for ttl.
func SignJWT(secret []byte, subject, complexID string, role Role, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("auth: empty secret")
	}
	now := time.Now()
	claims := Claims{
		ComplexID: complexID,
		Role:      string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
