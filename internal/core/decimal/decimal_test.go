package decimal

import (
	"errors"
	"testing"
)

func ptr(f float64) *float64 { return &f }

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want *float64
		err  error
	}{
		{"", nil, nil},
		{"-", nil, nil},
		{"  -  ", nil, nil},
		{"46,2", ptr(46.2), nil},
		{"0,14", ptr(0.14), nil},
		{"1", ptr(1), nil},
		{"1039", ptr(1039), nil},
		{"12.5", ptr(12.5), nil},
		{" 3,5 ", ptr(3.5), nil},
		{"-2,75", ptr(-2.75), nil},
		{"1,2,3", nil, ErrMalformed},
		{"abc", nil, ErrMalformed},
		{"NaN", nil, ErrMalformed},
		{"Inf", nil, ErrMalformed},
		{"--", nil, ErrMalformed},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		if !errors.Is(err, c.err) {
			t.Fatalf("Parse(%q) err = %v, want %v", c.in, err, c.err)
		}
		switch {
		case c.want == nil && got != nil:
			t.Fatalf("Parse(%q) = %v, want nil", c.in, *got)
		case c.want != nil && (got == nil || *got != *c.want):
			t.Fatalf("Parse(%q) = %v, want %v", c.in, got, *c.want)
		}
	}
}

func TestNormalize_FoldsMalformedToNil(t *testing.T) {
	if Normalize("oops") != nil {
		t.Fatalf("malformed should normalise to nil")
	}
	if got := Normalize("46,2"); got == nil || *got != 46.2 {
		t.Fatalf("Normalize(46,2) = %v", got)
	}
}

func TestFormat(t *testing.T) {
	if Format(nil) != "" {
		t.Fatalf("nil should format empty")
	}
	if got := Format(ptr(46.2)); got != "46.2" {
		t.Fatalf("Format = %q", got)
	}
	if got := Format(ptr(1039)); got != "1039" {
		t.Fatalf("Format = %q", got)
	}
}
