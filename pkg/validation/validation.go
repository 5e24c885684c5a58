package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MinWorkers = 1
	MaxWorkers = 20

	MaxTeamNameLength = 100
)

func ValidateWorkerCount(workers int) error {
	if workers < MinWorkers || workers > MaxWorkers {
		return fmt.Errorf("worker count must be between %d and %d, got %d", MinWorkers, MaxWorkers, workers)
	}
	return nil
}

// ValidateID checks that value is a UUID, the form the API uses for team and user IDs.
func ValidateID(fieldName, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	if _, err := uuid.Parse(value); err != nil {
		return fmt.Errorf("%s must be a UUID, got %q", fieldName, value)
	}
	return nil
}

func ValidateNonEmptyString(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

func ValidateTeamName(name string) error {
	if err := ValidateNonEmptyString("team name", name); err != nil {
		return err
	}
	if n := utf8.RuneCountInString(name); n > MaxTeamNameLength {
		return fmt.Errorf("team name must be at most %d characters, got %d", MaxTeamNameLength, n)
	}
	return nil
}

func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email address: %s", email)
	}
	return nil
}
