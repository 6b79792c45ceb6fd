package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestInit(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")

	err := Init(Config{
		Debug:   false,
		DataDir: dataDir,
	})
	if err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}

	logDir := filepath.Join(dataDir, "logs")
	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		t.Errorf("Log directory was not created: %s", logDir)
	}

	if Logger == nil {
		t.Error("Logger is nil after initialization")
	}

	Debug("Test debug message")
	Info("Test info message")
	Warn("Test warning message")
	Error("Test error message")
}

func TestInitDebugMode(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")

	err := Init(Config{
		Debug:   true,
		DataDir: dataDir,
	})
	if err != nil {
		t.Fatalf("Failed to initialize logger in debug mode: %v", err)
	}

	if Logger == nil {
		t.Error("Logger is nil after initialization")
	}
	if Logger.GetLevel() != log.DebugLevel {
		t.Errorf("expected debug level, got %v", Logger.GetLevel())
	}

	Debug("Test debug message in debug mode")
	Info("Test info message in debug mode")
}

func TestInitWriter(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, log.InfoLevel)
	defer func() { Logger = nil }()

	Debug("hidden")
	Warn("reminder fired late", "id", 7)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message should be filtered at info level: %q", out)
	}
	if !strings.Contains(out, "reminder fired late") || !strings.Contains(out, "id=7") {
		t.Errorf("expected structured warning in output, got %q", out)
	}
}

func TestLogFunctionsWithoutInit(t *testing.T) {
	Logger = nil

	// These should not panic when Logger is nil
	Debug("Test debug message")
	Info("Test info message")
	Warn("Test warning message")
	Error("Test error message")
}

func TestInitWithInvalidDirectory(t *testing.T) {
	err := Init(Config{
		Debug:   false,
		DataDir: "/nonexistent/path/that/should/not/exist",
	})
	if err == nil {
		t.Skip("Unable to test invalid directory - path was created or already exists")
	}
}
