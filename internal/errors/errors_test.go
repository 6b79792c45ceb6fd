package errors

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "plain error has no hint",
			err:      errors.New("failed to load config"),
			expected: "Error: failed to load config",
		},
		{
			name:     "missing note",
			err:      fmt.Errorf("delete: %w", NewNotFound("note", 4)),
			expected: "Error: delete: note not found: 4\n  it may already have been deleted; run 'studylit note list' to see current notes",
		},
		{
			name:     "missing reminder",
			err:      NewNotFound("reminder", 9),
			expected: "Error: reminder not found: 9\n  run 'studylit remind list --all' to see every reminder",
		},
		{
			name:     "flush timeout",
			err:      &StorageTimeoutError{Op: "upsert note", Timeout: 5 * time.Second},
			expected: "Error: storage operation \"upsert note\" timed out after 5s\n  nothing was saved; check the data directory and run 'studylit doctor'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Format(tt.err)
			if result != tt.expected {
				t.Errorf("Format(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), ExitFailure},
		{"invalid time", fmt.Errorf("schedule: %w", &InvalidTimeError{FireAt: now, Now: now}), ExitInvalidTime},
		{"not found", NewNotFound("note", 1), ExitNotFound},
		{"storage timeout", &StorageTimeoutError{Op: "x", Timeout: time.Second}, ExitStorageTimeout},
		{"consistency", &ConsistencyError{ReminderID: 1, Attempts: 3, Err: errors.New("disk")}, ExitConsistency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestFatal runs Fatal in a subprocess since it exits.
func TestFatal(t *testing.T) {
	if os.Getenv("STUDYLIT_TEST_FATAL") == "1" {
		Fatal(fmt.Errorf("edit: %w", NewNotFound("note", 12)))
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestFatal$")
	cmd.Env = append(os.Environ(), "STUDYLIT_TEST_FATAL=1")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Fatal() did not exit with error: %v", err)
	}
	if exitErr.ExitCode() != ExitNotFound {
		t.Errorf("Fatal() exit code = %d, want %d", exitErr.ExitCode(), ExitNotFound)
	}
	if !strings.Contains(stderr.String(), "Error: edit: note not found: 12") {
		t.Errorf("Fatal() stderr = %q", stderr.String())
	}
}

func TestFatal_NilError(t *testing.T) {
	if os.Getenv("STUDYLIT_TEST_FATAL_NIL") == "1" {
		Fatal(nil)
		os.Exit(0)
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestFatal_NilError$")
	cmd.Env = append(os.Environ(), "STUDYLIT_TEST_FATAL_NIL=1")
	if err := cmd.Run(); err != nil {
		t.Errorf("Fatal(nil) should not exit, but got error: %v", err)
	}
}
