package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword bcrypt-hashes a staff password with the configured
// cost.  The cost comes from config so operators can raise it without
// a code change.
func HashPassword(plain string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt
// hash.  bcrypt's comparison is constant time with respect to the
// password contents.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
