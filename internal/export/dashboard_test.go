package export

import (
	"errors"
	"fmt"
	"testing"
)

func TestFormatETASeconds(t *testing.T) {
	if got := formatETASeconds(30); got != "<1m" {
		t.Fatalf("expected <1m, got %q", got)
	}
	if got := formatETASeconds(300); got != "5m" {
		t.Fatalf("expected 5m, got %q", got)
	}
	if got := formatETASeconds(3600); got != "1h" {
		t.Fatalf("expected 1h, got %q", got)
	}
	if got := formatETASeconds(3900); got != "1h 5m" {
		t.Fatalf("expected 1h 5m, got %q", got)
	}
	if got := formatETASeconds(90000); got != "1d 1h" {
		t.Fatalf("expected 1d 1h, got %q", got)
	}
}

func TestFormatETASecondsInvalidInputs(t *testing.T) {
	if got := formatETASeconds(0); got != "" {
		t.Fatalf("expected empty eta for zero remaining, got %q", got)
	}
	if got := formatETASeconds(-5); got != "" {
		t.Fatalf("expected empty eta for negative remaining, got %q", got)
	}
}

func TestDashboardFileDoneCountsAndCapsEvents(t *testing.T) {
	d := newExportDashboard(4, 20)

	d.FileDone(1, "daily/KBOS/202301.json.gz", nil)
	d.FileDone(2, "daily/KBOS/202302.json.gz", nil)
	for i := 0; i < 10; i++ {
		d.FileDone(3, fmt.Sprintf("daily/KBAD/2023%02d.json.gz", i+1), errors.New("truncated gzip"))
	}

	if d.parsed != 2 {
		t.Fatalf("expected 2 parsed, got %d", d.parsed)
	}
	if d.skipped != 10 {
		t.Fatalf("expected 10 skipped, got %d", d.skipped)
	}
	if len(d.events) != 8 {
		t.Fatalf("expected event ring capped at 8, got %d", len(d.events))
	}
	if d.events[0] != "skip  daily/KBAD/202310.json.gz (truncated gzip)" {
		t.Fatalf("expected newest event first, got %q", d.events[0])
	}
}
