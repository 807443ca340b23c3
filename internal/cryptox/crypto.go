// Package cryptox wraps the password hashing used for user accounts.
package cryptox

import (
	"crypto/subtle"

	"github.com/dmitrijs2005/imagehost/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	SaltSize = 16
	KeySize  = 32
)

// NewSalt returns a fresh random salt for HashPassword.
func NewSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// HashPassword derives an argon2id key from password and salt.
func HashPassword(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
}

// VerifyPassword reports whether password hashes to want under salt.
// The comparison is constant-time.
func VerifyPassword(password, salt, want []byte) bool {
	got := HashPassword(password, salt)
	defer common.WipeByteArray(got)
	return subtle.ConstantTimeCompare(got, want) == 1
}
