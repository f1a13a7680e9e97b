package cli

import (
	"testing"
)

func TestCompareVersionTags(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"v1.2.3", "v1.2.3", 0},
		{"v1.2.4", "v1.2.3", 1},
		{"v1.2.3", "v1.3.0", -1},
		{"v2.0.0", "v1.9.9", 1},
		{"1.2.3", "v1.2.3", 0},
		{"v1.0.0", "v1.0.0-rc.1", 1},
		{"v1.0.0-alpha", "v1.0.0-beta", -1},
		{"v1.0.0-rc.1", "v1.0.0-rc.1", 0},
	}
	for _, tc := range cases {
		got, err := compareVersionTags(tc.a, tc.b)
		if err != nil {
			t.Fatalf("compareVersionTags(%q, %q) failed: %v", tc.a, tc.b, err)
		}
		if got != tc.want {
			t.Fatalf("compareVersionTags(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestCompareVersionTagsRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "v1.2", "v1.2.x", "not-a-version"} {
		if _, err := compareVersionTags(raw, "v1.0.0"); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestIsNewerVersion(t *testing.T) {
	newer, err := isNewerVersion("v1.1.0", "v1.0.9")
	if err != nil {
		t.Fatal(err)
	}
	if !newer {
		t.Fatal("expected v1.1.0 to be newer than v1.0.9")
	}

	newer, err = isNewerVersion("v1.0.0", "v1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if newer {
		t.Fatal("expected equal versions not to count as newer")
	}
}

func TestNormalizeVersionTag(t *testing.T) {
	if got := normalizeVersionTag("1.2.3"); got != "v1.2.3" {
		t.Fatalf("expected v1.2.3, got %q", got)
	}
	if got := normalizeVersionTag(" v1.2.3 "); got != "v1.2.3" {
		t.Fatalf("expected v1.2.3, got %q", got)
	}
	if got := normalizeVersionTag(""); got != "" {
		t.Fatalf("expected empty tag to stay empty, got %q", got)
	}
}

func TestShouldSkipUpdateHint(t *testing.T) {
	t.Setenv(updateCheckDisableEnv, "")

	if shouldSkipUpdateHint([]string{"status"}) {
		t.Fatal("expected a plain command not to skip the hint")
	}
	if !shouldSkipUpdateHint(nil) {
		t.Fatal("expected empty args to skip the hint")
	}
	if !shouldSkipUpdateHint([]string{"self-update"}) {
		t.Fatal("expected self-update to skip the hint")
	}
	if !shouldSkipUpdateHint([]string{"status", "--json"}) {
		t.Fatal("expected JSON mode to skip the hint")
	}

	t.Setenv(updateCheckDisableEnv, "1")
	if !shouldSkipUpdateHint([]string{"status"}) {
		t.Fatal("expected the disable env to skip the hint")
	}
}
