package identity

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Sub     string   `json:"sub"`
	Role    string   `json:"role"`
	Centros []string `json:"centros,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() (*Identity, error) {
	role := Role(c.Role)
	if role == "" {
		role = RoleUsuario
	}
	if c.Sub == "" || !role.Valid() || role == RoleSystem {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: c.Sub, Role: role, Centros: c.Centros}, nil
}

func CreateAccessToken(secret string, id *Identity, ttl time.Duration) (string, error) {
	claims := Claims{
		Sub:     id.UserID,
		Role:    string(id.Role),
		Centros: id.Centros,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseValidate(secret, tokenStr string) (*Identity, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, ErrInvalidToken
	}
	return c.Identity()
}
