package urlutil

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestBuildAbsolute_JoinsWithSingleSlash(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		base := "https://" + rapid.StringMatching(`[a-z]{3,12}\.[a-z]{2,4}`).Draw(rt, "host") +
			rapid.SampledFrom([]string{"", "/", "//"}).Draw(rt, "trailing")
		key := rapid.StringMatching(`[a-z0-9-]{1,12}/[a-z0-9_]{1,16}\.png`).Draw(rt, "key")
		leading := rapid.SampledFrom([]string{"", "/"}).Draw(rt, "leading")

		got := BuildAbsolute(base, leading+key)
		want := strings.TrimRight(base, "/") + "/" + key
		if got != want {
			rt.Fatalf("unexpected URL: got=%s want=%s", got, want)
		}
	})
}

func TestBuildAbsolute_KeepsAbsolutePath(t *testing.T) {
	got := BuildAbsolute("https://www.twitch.tv", "https://cdn.example.test/shot.png")
	if got != "https://cdn.example.test/shot.png" {
		t.Fatalf("absolute path should win, got=%s", got)
	}
	if got := BuildAbsolute("  https://www.twitch.tv/ ", ""); got != "https://www.twitch.tv" {
		t.Fatalf("empty path should return normalized base, got=%s", got)
	}
}

func TestIsAbsoluteHTTP(t *testing.T) {
	cases := map[string]bool{
		"https://www.twitch.tv":         true,
		"http://localhost:8080/":        true,
		"www.twitch.tv":                 false,
		"ftp://files.example.test":      false,
		"https://":                      false,
		"":                              false,
		"file:///tmp/screenshots/a.png": false,
	}
	for raw, want := range cases {
		if got := IsAbsoluteHTTP(raw); got != want {
			t.Errorf("IsAbsoluteHTTP(%q) = %v, want %v", raw, got, want)
		}
	}
}
