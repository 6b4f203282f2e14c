package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestWithFieldsWritesToRedirectedOutput(t *testing.T) {
	if err := InitLogger("", "info"); err != nil {
		t.Fatalf("InitLogger failed: %v", err)
	}
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	WithFields(logrus.Fields{"run_id": "abc123"}).Info("run started")

	out := buf.String()
	if !strings.Contains(out, "run started") || !strings.Contains(out, "run_id=abc123") {
		t.Errorf("log output = %q, want message and run_id field", out)
	}
}

func TestInitLoggerTeesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketload.log")
	if err := InitLogger(path, "warn"); err != nil {
		t.Fatalf("InitLogger failed: %v", err)
	}
	defer Close()

	Infof("below level")
	Warnf("table %s missing", "prices")

	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if strings.Contains(string(body), "below level") {
		t.Error("info line written at warn level")
	}
	if !strings.Contains(string(body), "table prices missing") {
		t.Errorf("log file = %q, want warning", body)
	}
}
