package currency

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParse(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"1,234.56", "1234.56"},
		{"1.234,56", "1234.56"},
		{"1.2.3,45", "123.45"},
		{"1,2,3.45", "123.45"},
		{"", "0"},
		{"$ 19.99", "19.99"},
		{"R$ 1.299,90", "1299.90"},
		{"42", "42"},
		{"0,99", "0.99"},
		{"-12.50", "-12.50"},
	}

	for _, tc := range cases {
		got, err := Parse(tc.input)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", tc.input, err)
		}
		want := decimal.RequireFromString(tc.want)
		if !got.Equal(want) {
			t.Fatalf("Parse(%q) = %s, want %s", tc.input, got, want)
		}
	}
}

func TestParseUnparsable(t *testing.T) {
	for _, input := range []string{"abc", "...", "free"} {
		if _, err := Parse(input); !errors.Is(err, ErrUnparsable) {
			t.Fatalf("Parse(%q) should fail with ErrUnparsable, got %v", input, err)
		}
	}
}

func TestParseCanonicalFormIdempotent(t *testing.T) {
	inputs := []string{"1.234,56", "1,234.56", "$ 99,90", "42", "0.01"}

	for _, input := range inputs {
		first, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q): %v", input, err)
		}
		second, err := Parse(first.String())
		if err != nil {
			t.Fatalf("re-parse of %q: %v", first.String(), err)
		}
		if !first.Equal(second) {
			t.Fatalf("re-parsing %q changed value: %s != %s", input, first, second)
		}
	}
}
