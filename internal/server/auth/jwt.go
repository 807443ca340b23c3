// Package auth issues and verifies access tokens and carries the
// authenticated requester through a context.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the registered claims plus the user id and staff flag.
type Claims struct {
	jwt.RegisteredClaims
	UserID  string
	IsStaff bool
}

func GenerateToken(userID string, isStaff bool, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID:  userID,
		IsStaff: isStaff,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies tokenString and returns the identity it carries.
// Expired tokens yield common.ErrTokenExpired, anything else that fails
// verification yields common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, common.ErrTokenExpired
		}
		return Identity{}, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return Identity{}, common.ErrInvalidToken
	}

	return Identity{UserID: claims.UserID, IsStaff: claims.IsStaff}, nil
}
