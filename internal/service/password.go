package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "github.com/sodmaq/auth-service/pkg/errors"
)

const (
	minPasswordLength = 8
	// maxPasswordBytes is the bcrypt input limit.
	maxPasswordBytes = 72
)

// validatePassword checks the length rules shared by signup, change and reset.
func validatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return apperrors.InvalidInput("password is required")
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}
