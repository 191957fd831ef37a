package utils

import (
	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plain password with bcrypt. cost <= 0 uses bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

// CheckPassword compares plain password with hashed password.
func CheckPassword(plain, hashed string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	return err == nil
}

// IsHash reports whether s parses as a bcrypt hash.
func IsHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}
