package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidQuery is wrapped by every search query validation error.
var ErrInvalidQuery = errors.New("invalid search query")

var (
	ErrQueryEmpty        = fmt.Errorf("%w: query is required", ErrInvalidQuery)
	ErrQueryTooShort     = fmt.Errorf("%w: query too short", ErrInvalidQuery)
	ErrQueryTooLong      = fmt.Errorf("%w: query too long", ErrInvalidQuery)
	ErrQueryInvalidChars = fmt.Errorf("%w: query contains invalid characters", ErrInvalidQuery)
)

// ValidateSearchQuery trims the input, collapses inner whitespace runs to one
// space, enforces length bounds (minLen, maxLen in runes) and restricts to
// letters, digits, space, comma, hyphen, apostrophe and period.
// Returns the normalized query.
func ValidateSearchQuery(input string, minLen, maxLen int) (string, error) {
	s := strings.Join(strings.Fields(input), " ")
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrQueryEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrQueryTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrQueryTooLong
	}
	for _, c := range r {
		if !isAllowedQueryRune(c) {
			return "", ErrQueryInvalidChars
		}
	}
	return s, nil
}

func isAllowedQueryRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '\'', '.':
		return true
	}
	return false
}
