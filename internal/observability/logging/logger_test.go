package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestJSONLoggerCarriesServiceAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf, "worker", "warn")

	logger.Info("hidden")
	logger.Warn("intake_job_failed", "job_id", "j-1")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected exactly one json line, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "worker" || entry["msg"] != "intake_job_failed" || entry["job_id"] != "j-1" {
		t.Fatalf("unexpected entry %v", entry)
	}
}
