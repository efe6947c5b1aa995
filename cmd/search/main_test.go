package main

import (
	"bufio"
	"strings"
	"testing"
	"time"
)

func reader(lines ...string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func TestPromptFilters(t *testing.T) {
	f, err := promptFilters(reader("2023-05-01", "2024-01-01", "Sven Klemm"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC); !f.Since.Equal(want) {
		t.Errorf("Since = %v, want %v", f.Since, want)
	}
	if want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC); !f.Until.Equal(want) {
		t.Errorf("Until = %v, want %v", f.Until, want)
	}
	if f.Author != "Sven Klemm" {
		t.Errorf("Author = %q", f.Author)
	}
}

func TestPromptFiltersEmpty(t *testing.T) {
	f, err := promptFilters(reader("", "", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !f.Since.IsZero() || !f.Until.IsZero() || f.Author != "" {
		t.Errorf("expected zero filters, got %+v", f)
	}
}

func TestPromptFiltersBadDate(t *testing.T) {
	if _, err := promptFilters(reader("yesterday", "", "")); err == nil {
		t.Error("expected error for invalid since date")
	}
	if _, err := promptFilters(reader("2023-05-01", "later", "")); err == nil {
		t.Error("expected error for invalid until date")
	}
}

func TestShort(t *testing.T) {
	if got := short("09766343997aa903f9aabbcc"); got != "09766343997a" {
		t.Errorf("short() = %q", got)
	}
	if got := short("abc"); got != "abc" {
		t.Errorf("short() = %q", got)
	}
}
