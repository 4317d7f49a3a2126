package naming

import (
	"errors"
	"testing"
)

func TestFold(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"First name":         "first_name",
		"  Age (years)  ":    "age_years",
		"Question 12":        "question",
		"Email__Address!!":   "email__address",
		"__init":             "__init",
		"a__b":               "a__b",
		"a - _b":             "a__b",
		"Año de nacimiento":  "año_de_nacimiento",
		"1st choice":         "1st_choice",
		"---":                "",
		"snake_case_label_2": "snake_case_label",
	}
	for label, want := range cases {
		if got := Fold(label); got != want {
			t.Fatalf("Fold(%q) = %q, want %q", label, got, want)
		}
	}
}

func TestDisambiguate(t *testing.T) {
	t.Parallel()

	taken := map[string]bool{"a": true, "a_1": true, "a_3": true}
	lookup := func(name string) bool { return taken[name] }

	if got := Disambiguate("a", lookup); got != "a_2" {
		t.Fatalf("Disambiguate(a) = %q, want a_2", got)
	}
	if got := Disambiguate("b", lookup); got != "b" {
		t.Fatalf("Disambiguate(b) = %q, want b", got)
	}
	if got := Disambiguate("c", nil); got != "c" {
		t.Fatalf("Disambiguate(c, nil) = %q, want c", got)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	reserved := func(name string) bool { return name == "class" }
	cases := []struct {
		name string
		want error
	}{
		{name: "first_name"},
		{name: "_private"},
		{name: "", want: ErrEmpty},
		{name: "1st", want: ErrLeadingDigit},
		{name: "has space", want: ErrInvalidCharacter},
		{name: "dash-ed", want: ErrInvalidCharacter},
		{name: "trailing_", want: ErrTrailingUnderscore},
		{name: "class", want: ErrReserved},
	}
	for _, tc := range cases {
		err := Validate(tc.name, reserved)
		if !errors.Is(err, tc.want) || (tc.want == nil && err != nil) {
			t.Fatalf("Validate(%q) = %v, want %v", tc.name, err, tc.want)
		}
	}
}
