package storage

import (
	"testing"
	"time"
)

func TestTruncateRunesDB(t *testing.T) {
	if got := truncateRunesDB("  安康要闻  ", 10); got != "安康要闻" {
		t.Fatalf("truncateRunesDB should trim: %q", got)
	}
	if got := truncateRunesDB("安康市政府", 2); got != "安康" {
		t.Fatalf("truncateRunesDB(…, 2) = %q", got)
	}
	if got := truncateRunesDB("x", 0); got != "" {
		t.Fatalf("limit 0 should yield empty, got %q", got)
	}
}

func TestToValidUTF8(t *testing.T) {
	in := "abc\xff安康"
	if got := toValidUTF8(in); got != "abc\uFFFD安康" {
		t.Fatalf("toValidUTF8 = %q", got)
	}
}

func TestPublishedDateUsesEast8(t *testing.T) {
	// UTC 16:30 已经是东八区次日 00:30
	ts := time.Date(2024, 4, 30, 16, 30, 0, 0, time.UTC)
	if got := publishedDate(ts); got != "2024-05-01" {
		t.Fatalf("publishedDate = %q, want 2024-05-01", got)
	}
	if got := publishedDate(time.Time{}); got != "" {
		t.Fatalf("zero time should have no date, got %q", got)
	}
}
