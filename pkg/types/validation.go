package types

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxUserIDLength   = 50
	MaxInterestLength = 64
)

// RegistrationPolicy controls how raw client registrations are normalised.
// The zero value is strict: no default interest and no interest cap.
type RegistrationPolicy struct {
	// DefaultInterest replaces an empty interest list when non-empty
	DefaultInterest string
	// MaxInterests caps the number of distinct interests; zero disables the cap
	MaxInterests int
}

// NormalizeInterests trims every interest, drops blanks and duplicates,
// and keeps first-seen order. Interests are compared case-sensitively.
func NormalizeInterests(interests []string) []string {
	seen := make(map[string]bool, len(interests))
	out := make([]string, 0, len(interests))
	for _, interest := range interests {
		interest = strings.TrimSpace(interest)
		if interest == "" || seen[interest] {
			continue
		}
		seen[interest] = true
		out = append(out, interest)
	}
	return out
}

// ValidateRegistration normalises a registration and checks its preconditions.
// Every failure wraps ErrInvalidRegistration so callers only need one errors.Is check.
func ValidateRegistration(userID string, interests []string, policy RegistrationPolicy) (string, []string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidRegistration, ErrMissingUserID)
	}
	if utf8.RuneCountInString(userID) > MaxUserIDLength {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidRegistration, ErrUserIDTooLong)
	}

	normalized := NormalizeInterests(interests)
	if len(normalized) == 0 && policy.DefaultInterest != "" {
		normalized = []string{policy.DefaultInterest}
	}
	if len(normalized) == 0 {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidRegistration, ErrNoInterests)
	}
	if policy.MaxInterests > 0 && len(normalized) > policy.MaxInterests {
		return "", nil, fmt.Errorf("%w: %w (max %d)", ErrInvalidRegistration, ErrTooManyInterests, policy.MaxInterests)
	}
	for _, interest := range normalized {
		if utf8.RuneCountInString(interest) > MaxInterestLength {
			return "", nil, fmt.Errorf("%w: %w", ErrInvalidRegistration, ErrInterestTooLong)
		}
	}

	return userID, normalized, nil
}

// SharedInterests returns the interests of a that also appear in b, in a's order.
// An empty result means the two sets are disjoint.
func SharedInterests(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(b))
	for _, interest := range b {
		set[interest] = struct{}{}
	}
	var shared []string
	for _, interest := range a {
		if _, ok := set[interest]; ok {
			shared = append(shared, interest)
		}
	}
	return shared
}
