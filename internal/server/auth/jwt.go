// Package auth issues and verifies the join tokens that carry a user's
// host-supplied identity: stable id, display name, world and role. The
// server never authenticates users itself; whoever operates it mints tokens
// and hands them out.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vttlabs/lorekeeper/internal/common"
	"github.com/vttlabs/lorekeeper/internal/host"
)

// Claims carried by a join token.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string    `json:"uid"`
	UserName string    `json:"name"`
	World    string    `json:"world"`
	Role     host.Role `json:"role"`
}

// Identity is the verified content of a join token.
type Identity struct {
	User  host.User
	World string
}

// GenerateToken mints an HS256 join token.
func GenerateToken(user host.User, world string, secretKey []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		UserID:   user.ID,
		UserName: user.Name,
		World:    world,
		Role:     user.Role,
	})
	return token.SignedString(secretKey)
}

// VerifyToken parses and validates a join token.
func VerifyToken(tokenString string, secretKey []byte) (Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, common.ErrTokenExpired
		}
		return Identity{}, common.ErrInvalidToken
	}
	if !token.Valid || claims.UserID == "" || claims.World == "" {
		return Identity{}, common.ErrInvalidToken
	}
	if claims.Role != host.RoleGM && claims.Role != host.RolePlayer {
		return Identity{}, common.ErrInvalidToken
	}

	return Identity{
		User: host.User{
			ID:   claims.UserID,
			Name: claims.UserName,
			Role: claims.Role,
		},
		World: claims.World,
	}, nil
}
