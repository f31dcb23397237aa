package utils

import (
	"testing"
	"time"
)

func TestMaskPhone(t *testing.T) {
	cases := map[string]string{
		"13812345678":  "138****5678",
		"+15551234567": "+15*****4567",
		"5551234":      "***1234",
		"123":          "****",
	}
	for in, want := range cases {
		if got := MaskPhone(in); got != want {
			t.Fatalf("MaskPhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUniqueIDs(t *testing.T) {
	got := UniqueIDs([]int64{3, 1, 3, 0, -2, 1, 7})
	want := []int64{3, 1, 7}
	if len(got) != len(want) {
		t.Fatalf("UniqueIDs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("UniqueIDs = %v, want %v", got, want)
		}
	}
}

func TestCursorRoundTrip(t *testing.T) {
	if c, err := ParseCursor(""); err != nil || c != nil {
		t.Fatalf("ParseCursor(\"\") = %v, %v", c, err)
	}
	at := time.Date(2026, 3, 1, 22, 15, 0, 123, time.UTC)
	c, err := ParseCursor(FormatCursor(at, "j-42"))
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if !c.StartTime.Equal(at) || c.ID != "j-42" {
		t.Fatalf("cursor = %+v, want %v/j-42", c, at)
	}
	for _, bad := range []string{"yesterday", "eWVzdGVyZGF5", "MjAyNi0wMy0wMVQyMjoxNTowMFo"} {
		if _, err := ParseCursor(bad); err == nil {
			t.Fatalf("ParseCursor(%q) expected error", bad)
		}
	}
}
