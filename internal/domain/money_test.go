package domain

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "12.50", want: "12.50"},
		{name: "comma separator", in: "12,50", want: "12.50"},
		{name: "no fraction", in: "7", want: "7.00"},
		{name: "one fractional digit", in: "3.5", want: "3.50"},
		{name: "zero allowed", in: "0", want: "0.00"},
		{name: "whitespace trimmed", in: "  9.99 ", want: "9.99"},
		{name: "three fractional digits", in: "1.005", wantErr: true},
		{name: "exponent lowercase", in: "1e-3", wantErr: true},
		{name: "exponent uppercase", in: "5E-5", wantErr: true},
		{name: "exponent integer", in: "1e2", wantErr: true},
		{name: "negative", in: "-4.20", wantErr: true},
		{name: "explicit plus", in: "+4.20", wantErr: true},
		{name: "empty", in: "", wantErr: true},
		{name: "garbage", in: "12.3a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAmount(%q) expected error, got %s", tt.in, FormatAmount(got))
				}
				var vErr *ErrValidation
				if !errors.As(err, &vErr) {
					t.Fatalf("ParseAmount(%q) error type = %T, want *ErrValidation", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) unexpected error: %v", tt.in, err)
			}
			if FormatAmount(got) != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, FormatAmount(got), tt.want)
			}
		})
	}
}

func TestParsePositiveAmountRejectsZero(t *testing.T) {
	if _, err := ParsePositiveAmount("0.00"); err == nil {
		t.Error("expected error for zero amount")
	}
	if _, err := ParsePositiveAmount("0.01"); err != nil {
		t.Errorf("unexpected error for smallest positive amount: %v", err)
	}
}

// Sub-cent values written via exponent notation would format as "0.00",
// an effectively zero transaction that still passed the positivity check.
func TestParsePositiveAmountRejectsExponentNotation(t *testing.T) {
	for _, in := range []string{"1e-3", "5e-5", "2E-4"} {
		got, err := ParsePositiveAmount(in)
		if err == nil {
			t.Fatalf("ParsePositiveAmount(%q) accepted, value=%s, formatted=%s",
				in, got.String(), FormatAmount(got))
		}
		var vErr *ErrValidation
		if !errors.As(err, &vErr) {
			t.Errorf("ParsePositiveAmount(%q) error type = %T, want *ErrValidation", in, err)
		}
	}
}

func TestFormatAmountRoundTrip(t *testing.T) {
	for _, in := range []string{"12.50", "0.01", "999999.99", "100.00"} {
		d, err := ParseAmount(in)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", in, err)
		}
		if out := FormatAmount(d); out != in {
			t.Errorf("round trip %q -> %q", in, out)
		}
	}
}
