package logutil

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestIsSensitiveLogField(t *testing.T) {
	for _, key := range []string{"AWS_SECRET_ACCESS_KEY", "aws_access_key_id", "session-token", "Password", "apiKey"} {
		if !IsSensitiveLogField(key) {
			t.Errorf("expected %q to be sensitive", key)
		}
	}
	for _, key := range []string{"ARTIFACT_BUCKET", "device", "query", "base_url"} {
		if IsSensitiveLogField(key) {
			t.Errorf("expected %q to be loggable", key)
		}
	}
}

func TestRedactValue(t *testing.T) {
	if got := RedactValue("AWS_SECRET_ACCESS_KEY", "hunter2"); got != "[REDACTED]" {
		t.Fatalf("secret not redacted: %q", got)
	}
	if got := RedactValue("AWS_SECRET_ACCESS_KEY", ""); got != "" {
		t.Fatalf("empty secret should stay empty, got %q", got)
	}
	if got := RedactValue("ARTIFACT_BUCKET", "ci-artifacts"); got != "ci-artifacts" {
		t.Fatalf("bucket should pass through, got %q", got)
	}
}

func TestTruncateForLog_SingleLineAndBounded(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		value := rapid.StringMatching(`[a-zA-Z \n]{0,80}`).Draw(rt, "value")
		maxChars := rapid.IntRange(1, 40).Draw(rt, "max")

		got := TruncateForLog(value, maxChars)
		if strings.Contains(got, "\n") {
			rt.Fatalf("preview contains newline: %q", got)
		}
		body := strings.TrimSuffix(got, "... [truncated]")
		if len(body) > maxChars {
			rt.Fatalf("preview body too long: len=%d max=%d", len(body), maxChars)
		}
	})
}

func TestTruncateForLog_Unbounded(t *testing.T) {
	if got := TruncateForLog("  Start Watching\n", 0); got != "Start Watching" {
		t.Fatalf("unexpected preview: %q", got)
	}
}
