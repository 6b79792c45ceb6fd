package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/studylit/internal/logger"
)

// Exit codes returned by Fatal, one per error kind so scripts can tell them apart.
const (
	ExitFailure        = 1
	ExitInvalidTime    = 2
	ExitNotFound       = 3
	ExitStorageTimeout = 4
	ExitConsistency    = 5
)

// ExitCode maps err to the process exit code. nil maps to 0.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case IsInvalidTime(err):
		return ExitInvalidTime
	case IsNotFound(err):
		return ExitNotFound
	case IsStorageTimeout(err):
		return ExitStorageTimeout
	case IsConsistency(err):
		return ExitConsistency
	}
	return ExitFailure
}

// Hint suggests what to do next about err, or "" when there is nothing useful to add.
func Hint(err error) string {
	var nf *NotFoundError
	switch {
	case err == nil:
		return ""
	case stderrors.As(err, &nf):
		switch nf.Kind {
		case "note":
			return "it may already have been deleted; run 'studylit note list' to see current notes"
		case "reminder":
			return "run 'studylit remind list --all' to see every reminder"
		}
		return "it may already have been deleted"
	case IsInvalidTime(err):
		return "reminders must fire in the future, e.g. --at +10m"
	case IsStorageTimeout(err):
		return "nothing was saved; check the data directory and run 'studylit doctor'"
	case IsConsistency(err):
		return "the reminder may fire again after a restart; run 'studylit doctor'"
	}
	return ""
}

// Format renders err for the terminal with an "Error: " prefix and an optional hint line.
func Format(err error) string {
	if err == nil {
		return ""
	}
	msg := fmt.Sprintf("Error: %v", err)
	if hint := Hint(err); hint != "" {
		msg += "\n  " + hint
	}
	return msg
}

// Fatal logs err, prints it and exits with ExitCode(err). It does nothing for nil.
func Fatal(err error) {
	if err == nil {
		return
	}
	code := ExitCode(err)
	logger.Error("Command execution failed", "error", err, "exit_code", code)
	fmt.Fprintln(os.Stderr, Format(err))
	os.Exit(code)
}
