package utils

import (
	"testing"
	"time"
)

func TestIsValidEmail(t *testing.T) {
	valid := []string{"a@b.co", "donor.name+tag@example.org.uk", "x_1%y@sub.example.com"}
	for _, e := range valid {
		if !IsValidEmail(e) {
			t.Errorf("IsValidEmail(%q) = false", e)
		}
	}
	invalid := []string{"", "plainaddress", "@no-local.com", "user@", "user@domain", "user @example.com"}
	for _, e := range invalid {
		if IsValidEmail(e) {
			t.Errorf("IsValidEmail(%q) = true", e)
		}
	}
}

func TestNormalizePhoneNumber(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"+447911123456", "+447911123456"},
		{"07911 123456", "+447911123456"}, // national format, GB default
		{"+1 650-253-0000", "+16502530000"},
	}
	for _, tc := range cases {
		got, err := NormalizePhoneNumber(tc.raw)
		if err != nil {
			t.Errorf("NormalizePhoneNumber(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizePhoneNumber(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}

	for _, raw := range []string{"", "12345", "not a number"} {
		if _, err := NormalizePhoneNumber(raw); err == nil {
			t.Errorf("NormalizePhoneNumber(%q) accepted", raw)
		}
	}
}

func TestParseDecimal(t *testing.T) {
	d, err := ParseDecimal(" 33.33 ")
	if err != nil {
		t.Fatal(err)
	}
	if d.String() != "33.33" {
		t.Errorf("got %s, want 33.33", d)
	}
	if _, err := ParseDecimal(""); err == nil {
		t.Error("empty string accepted")
	}
	if _, err := ParseDecimal("12,5"); err == nil {
		t.Error("comma decimal accepted")
	}
}

func TestParseDateOnly(t *testing.T) {
	got, err := ParseDateOnly(" 2024-03-15 ")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ParseDateOnly = %s, want %s", got, want)
	}
	for _, raw := range []string{"", "15/03/2024", "2024-13-01"} {
		if _, err := ParseDateOnly(raw); err == nil {
			t.Errorf("ParseDateOnly(%q) accepted", raw)
		}
	}
}

func TestDateOnly(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	in := time.Date(2024, 3, 15, 23, 45, 1, 0, loc)
	got := DateOnly(in)
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DateOnly = %s, want %s", got, want)
	}
}

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]int{3, 1, 3, 2, 1})
	want := []int{3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
