// Package naming derives and checks the machine names of form inputs.
package naming

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

var (
	ErrEmpty              = errors.New("name is empty")
	ErrLeadingDigit       = errors.New("name starts with a digit")
	ErrInvalidCharacter   = errors.New("name contains a non identifier character")
	ErrReserved           = errors.New("name is a reserved word")
	ErrTrailingUnderscore = errors.New("name ends with an underscore")
)

// Fold turns a display label into an identifier candidate: lowercased, each
// run of non identifier characters replaced by one underscore, existing
// underscores kept, trailing digits and underscores removed. The result may
// still fail Validate.
func Fold(label string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(label)) {
		if !isIdentRune(r) {
			pendingSep = true
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingSep = false
		b.WriteRune(r)
	}
	return strings.TrimRightFunc(b.String(), func(r rune) bool {
		return r == '_' || unicode.IsDigit(r)
	})
}

// Disambiguate returns name when it is free, otherwise the first free
// name_1, name_2, ... candidate.
func Disambiguate(name string, taken func(string) bool) string {
	if taken == nil || !taken(name) {
		return name
	}
	for i := 1; ; i++ {
		candidate := name + "_" + strconv.Itoa(i)
		if !taken(candidate) {
			return candidate
		}
	}
}

// Validate checks that name is usable as an identifier in generated code.
func Validate(name string, reserved func(string) bool) error {
	if name == "" {
		return ErrEmpty
	}
	for idx, r := range name {
		if idx == 0 && unicode.IsDigit(r) {
			return ErrLeadingDigit
		}
		if !isIdentRune(r) {
			return ErrInvalidCharacter
		}
	}
	if strings.HasSuffix(name, "_") {
		return ErrTrailingUnderscore
	}
	if reserved != nil && reserved(name) {
		return ErrReserved
	}
	return nil
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
