package validation

import (
	"errors"
	"testing"
)

func TestValidateSearchQuery_EmptyAndWhitespace(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"spaces", "   "},
		{"tab", "\t"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateSearchQuery(tc.input, 1, 100)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrQueryEmpty) {
				t.Errorf("error = %v, want ErrQueryEmpty", err)
			}
		})
	}
}

func TestValidateSearchQuery_TooShort(t *testing.T) {
	_, err := ValidateSearchQuery("x", 2, 100)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, ErrQueryTooShort) {
		t.Errorf("error = %v, want ErrQueryTooShort", err)
	}
}

func TestValidateSearchQuery_TooLong(t *testing.T) {
	long := ""
	for i := 0; i < 101; i++ {
		long += "a"
	}
	_, err := ValidateSearchQuery(long, 1, 100)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, ErrQueryTooLong) {
		t.Errorf("error = %v, want ErrQueryTooLong", err)
	}
}

func TestValidateSearchQuery_InvalidChars(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"slash", "par/is"},
		{"backslash", "par\\is"},
		{"question", "par?is"},
		{"hash", "par#is"},
		{"control", "par\x00is"},
		{"percent", "par%is"},
		{"ampersand", "par&is"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateSearchQuery(tc.input, 1, 100)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrQueryInvalidChars) {
				t.Errorf("error = %v, want ErrQueryInvalidChars", err)
			}
		})
	}
}

func TestValidateSearchQuery_Valid(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantNorm string
	}{
		{"simple", "Paris", "Paris"},
		{"with space", "New York", "New York"},
		{"collapsed", "New   York", "New York"},
		{"comma", "London,uk", "London,uk"},
		{"hyphen", "Some-City", "Some-City"},
		{"trimmed", "  Lyon  ", "Lyon"},
		{"unicode", "Zürich", "Zürich"},
		{"digits", "Area51", "Area51"},
		{"apostrophe", "St. John's", "St. John's"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateSearchQuery(tc.input, 1, 100)
			if err != nil {
				t.Fatalf("ValidateSearchQuery() err = %v", err)
			}
			if got != tc.wantNorm {
				t.Errorf("normalized = %q, want %q", got, tc.wantNorm)
			}
		})
	}
}

func TestValidateSearchQuery_LengthBoundaries(t *testing.T) {
	// Exactly min length
	got, err := ValidateSearchQuery("ab", 2, 100)
	if err != nil {
		t.Fatalf("min boundary: err = %v", err)
	}
	if got != "ab" {
		t.Errorf("min boundary: got %q", got)
	}
	// Exactly max length (100 runes)
	s100 := ""
	for i := 0; i < 100; i++ {
		s100 += "a"
	}
	got, err = ValidateSearchQuery(s100, 1, 100)
	if err != nil {
		t.Fatalf("max boundary: err = %v", err)
	}
	if len([]rune(got)) != 100 {
		t.Errorf("max boundary: rune count = %d, want 100", len([]rune(got)))
	}
	// One over max
	s101 := s100 + "a"
	_, err = ValidateSearchQuery(s101, 1, 100)
	if err == nil || !errors.Is(err, ErrQueryTooLong) {
		t.Errorf("over max: err = %v, want ErrQueryTooLong", err)
	}
}

func TestValidateSearchQuery_WrapsSentinel(t *testing.T) {
	for _, input := range []string{"", "x", "a/b"} {
		_, err := ValidateSearchQuery(input, 2, 100)
		if !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("ValidateSearchQuery(%q) error = %v, want ErrInvalidQuery", input, err)
		}
	}
}
