package idgen

import (
	"strconv"
	"testing"
	"time"
)

func TestNewAtPrefixRoundTrips(t *testing.T) {
	at := time.Date(2024, 3, 5, 14, 9, 7, 250_000_000, time.Local)
	id := NewAt(at)

	s := strconv.FormatInt(id, 10)
	if len(s) != 17 {
		t.Fatalf("id %d has %d digits, want 17 (14-digit prefix + 3-digit millis)", id, len(s))
	}
	if prefix := s[:14]; prefix != "20240305140907" {
		t.Errorf("prefix = %q, want %q", prefix, "20240305140907")
	}
	if millis := s[14:]; millis != "250" {
		t.Errorf("millis suffix = %q, want %q", millis, "250")
	}
}

func TestFormatDate(t *testing.T) {
	at := time.Date(2024, 3, 5, 14, 9, 7, 0, time.Local)
	id := NewAt(at)

	got, err := FormatDate(id)
	if err != nil {
		t.Fatalf("FormatDate: %v", err)
	}
	if want := "2024-03-05 14:09:07"; got != want {
		t.Errorf("FormatDate(%d) = %q, want %q", id, got, want)
	}
}

func TestFormatDateRejectsShortID(t *testing.T) {
	if _, err := FormatDate(123); err == nil {
		t.Error("FormatDate(123) should fail: fewer than 14 digits")
	}
}
