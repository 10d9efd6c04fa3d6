package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// dummyHash is a structurally valid cost-12 bcrypt hash whose checksum does
// not correspond to any plaintext. It is compared against when no user
// matches the submitted email, so a login attempt costs the same bcrypt work
// whether or not the account exists.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2Ou7mJpYYmVSc5PqF0dN5nL.9OVlWhrO2"

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword reports whether the plaintext matches the stored hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// VerifyDummy burns one bcrypt comparison against the dummy hash. Callers run
// it when the submitted email resolves to no user, so response latency does
// not leak account existence. The result is always false.
func VerifyDummy(password string) bool {
	return VerifyPassword(password, dummyHash)
}

// PasswordHasher abstracts credential hashing so the single-comparison rule
// can be asserted in tests.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	VerifyDummy(password string) bool
}

// BcryptHasher is the production PasswordHasher.
type BcryptHasher struct{}

func (BcryptHasher) Hash(password string) (string, error) { return HashPassword(password) }

func (BcryptHasher) Verify(password, hash string) bool { return VerifyPassword(password, hash) }

func (BcryptHasher) VerifyDummy(password string) bool { return VerifyDummy(password) }
