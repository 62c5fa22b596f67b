package logger

import "testing"

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	got := sanitizeKVs([]interface{}{"llm_api_key", "sk-123", "stage", "outline", "database_dsn", "postgres://u:p@h/db"})
	if got[1] != "[REDACTED]" {
		t.Fatalf("expected api key to be redacted, got %v", got[1])
	}
	if got[3] != "outline" {
		t.Fatalf("expected stage to pass through, got %v", got[3])
	}
	if got[5] != "[REDACTED]" {
		t.Fatalf("expected dsn to be redacted, got %v", got[5])
	}
}

func TestSanitizeKVsKeepsDanglingKey(t *testing.T) {
	got := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	if len(got) != 3 || got[2] != "dangling" {
		t.Fatalf("unexpected output %v", got)
	}
}
