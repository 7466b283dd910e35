package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// hashPassword securely hashes a password using bcrypt
func hashPassword(password string, cost int) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// comparePasswords checks if the provided password matches the hashed password
func comparePasswords(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// burnCompare spends the same bcrypt work as a real check so an unknown
// email costs as much time as a wrong password.
func burnCompare(password string, cost int) {
	dummyOnce.Do(func() {
		dummyHash, _ = hashPassword("leadintake-dummy-password", cost)
	})
	comparePasswords(dummyHash, password)
}
