package core

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a plaintext password at a fixed cost.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches the stored hash. An
// empty hash (principal registered via Google sign-in only) never matches
// any password and is rejected without running bcrypt.
func VerifyPassword(plaintext, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plaintext)) == nil
}
