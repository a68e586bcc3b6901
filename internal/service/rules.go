package service

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"tasklist/internal/domain/models"

	"github.com/go-playground/validator"
	"golang.org/x/text/unicode/norm"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
	MinNameLength        = 2
	MaxNameLength        = 50
	MinPasswordLength    = 6
	// bcrypt refuses passwords longer than 72 bytes.
	MaxPasswordBytes = 72

	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

var validate = validator.New()

var personNamePattern = regexp.MustCompile(`^[\p{L}\s]+$`)

var sortableFields = map[string]bool{
	models.SortByCreatedAt: true,
	models.SortByUpdatedAt: true,
	models.SortByTitle:     true,
	models.SortByCompleted: true,
}

// NormalizeName trims and NFC-composes a display name so that accented
// letters typed in decomposed form match the letters-only rule.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func IsPersonName(name string) bool {
	return personNamePattern.MatchString(name)
}

// IsStrongPassword requires at least one lowercase letter, one uppercase
// letter and one digit.
func IsStrongPassword(password string) bool {
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return lower && upper && digit
}

func isEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// DefaultListOptions is the listing used when the caller supplies nothing.
func DefaultListOptions() models.ListOptions {
	return models.ListOptions{
		Page:      DefaultPage,
		Limit:     DefaultLimit,
		SortBy:    models.SortByCreatedAt,
		SortOrder: models.SortDesc,
	}
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
