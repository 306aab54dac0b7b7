package util

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	if err := SetLevel("warn"); err != nil {
		t.Fatalf("SetLevel failed: %v", err)
	}
	defer SetLevel("info")

	Info("hidden %d", 1)
	Warn("visible %d\n", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Info must be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "visible 2") {
		t.Errorf("Expected warn line in output: %s", out)
	}
}

func TestSetLevelInvalid(t *testing.T) {
	if err := SetLevel("loud"); err == nil {
		t.Error("Expected error for invalid level")
	}
}
