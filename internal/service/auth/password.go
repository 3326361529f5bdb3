package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// KeyVerifier defines the interface for checking an operator key against its
// stored hash.
type KeyVerifier interface {
	// Compare compares a hashed key with its possible plaintext equivalent.
	// Returns nil on success, or ErrInvalidOperatorKey on mismatch.
	Compare(hashedKey, key string) error
}

// BcryptVerifier implements KeyVerifier using bcrypt.
type BcryptVerifier struct{}

// NewBcryptVerifier creates a new BcryptVerifier.
func NewBcryptVerifier() *BcryptVerifier {
	return &BcryptVerifier{}
}

// Compare implements the KeyVerifier interface using bcrypt.
func (v *BcryptVerifier) Compare(hashedKey, key string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashedKey), []byte(key))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidOperatorKey
		}
		return err
	}
	return nil
}
