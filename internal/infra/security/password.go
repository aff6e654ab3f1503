package security

import (
	"golang.org/x/crypto/bcrypt"

	"pdf-conversion-billing/internal/domain"
	"pdf-conversion-billing/internal/domain/ports/adapter"
)

var _ adapter.PasswordHasher = (*BcryptHasher)(nil)

// BcryptHasher stores credentials as bcrypt hashes.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: bcrypt.DefaultCost}
}

func (h *BcryptHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare returns domain.ErrInvalidArgument on mismatch so callers never
// leak whether the account or the password was wrong.
func (h *BcryptHasher) Compare(hash, plain string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		return domain.ErrInvalidArgument
	}
	return nil
}
