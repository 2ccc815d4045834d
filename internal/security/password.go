package security

import (
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

var (
	passwordLength  = regexp.MustCompile(`^[A-Za-z\d@$!%*?&]{8,20}$`)
	passwordLower   = regexp.MustCompile(`[a-z]`)
	passwordUpper   = regexp.MustCompile(`[A-Z]`)
	passwordDigit   = regexp.MustCompile(`\d`)
	passwordSpecial = regexp.MustCompile(`[@$!%*?&]`)
)

// ValidPassword enforces the password policy: 8-20 characters with at least
// one lowercase, one uppercase, one digit and one special character.
func ValidPassword(password string) bool {
	return passwordLength.MatchString(password) &&
		passwordLower.MatchString(password) &&
		passwordUpper.MatchString(password) &&
		passwordDigit.MatchString(password) &&
		passwordSpecial.MatchString(password)
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func CheckPassword(hashed, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}
