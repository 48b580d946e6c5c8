package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLoadConfigLogsWarningsAsJSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("DEFAULT_AMOUNT", "lots")

	var buf bytes.Buffer
	if _, err := loadConfig(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	found := false
	for _, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q", line)
		}
		if entry["key"] == "DEFAULT_AMOUNT" {
			found = true
		}
	}
	if !found {
		t.Errorf("DEFAULT_AMOUNT warning missing from JSON log output: %s", buf.String())
	}
}
