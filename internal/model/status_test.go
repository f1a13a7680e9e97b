package model

import "testing"

func TestCanTransition_AllowsExpectedPaths(t *testing.T) {
	cases := []struct {
		from string
		to   string
	}{
		{"", StatusPending},
		{StatusPending, StatusCached},
		{StatusPending, StatusFetching},
		{StatusFetching, StatusFetched},
		{StatusFetching, StatusFailed},
		{StatusCached, StatusPending},
		{StatusFailed, StatusPending},
	}

	for _, tc := range cases {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be allowed", tc.from, tc.to)
		}
	}
}

func TestCanTransition_RejectsInvalidPaths(t *testing.T) {
	cases := []struct {
		from string
		to   string
	}{
		{StatusPending, StatusFetched},
		{StatusCached, StatusFetching},
		{StatusFetched, StatusPending},
		{"not_a_state", StatusPending},
	}

	for _, tc := range cases {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be rejected", tc.from, tc.to)
		}
	}
}

func TestTransitionUnitStatus_BlocksIllegalTransition(t *testing.T) {
	rec := UnitRecord{
		Unit:   StationMonthUnit{StationID: "KBOS", Year: 2023, Month: 1},
		Status: StatusPending,
	}

	if err := TransitionUnitStatus(&rec, StatusFetched, ""); err == nil {
		t.Fatalf("expected illegal transition error")
	}
}

func TestUnitIDs_DistinguishVariants(t *testing.T) {
	units := []WorkUnit{
		TileUnit{X: 1, Y: 2, Zoom: 3},
		StationMonthUnit{StationID: "KBOS", Year: 2023, Month: 1},
		StationDayUnit{StationID: "KBOS", Year: 2023, Month: 1, Day: 15},
	}

	seen := map[string]bool{}
	for _, u := range units {
		id := u.UnitID()
		if id == "" {
			t.Fatalf("empty unit id for %#v", u)
		}
		if seen[id] {
			t.Fatalf("duplicate unit id %q", id)
		}
		seen[id] = true
	}

	if got := (TileUnit{}).GroupID(); got != "" {
		t.Fatalf("tile units must be ungrouped, got %q", got)
	}
	if got := (StationMonthUnit{StationID: "KBOS"}).GroupID(); got != "KBOS" {
		t.Fatalf("unexpected group id %q", got)
	}
}
