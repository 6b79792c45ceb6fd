package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// SessionKind is the type of a completed timer session
type SessionKind string

const (
	SessionPomodoro   SessionKind = "pomodoro"
	SessionShortBreak SessionKind = "short_break"
	SessionLongBreak  SessionKind = "long_break"
	SessionCustom     SessionKind = "custom"
)

// SessionKinds lists every valid kind.
var SessionKinds = []SessionKind{SessionPomodoro, SessionShortBreak, SessionLongBreak, SessionCustom}

// StudySession is a completed timer session. Sessions are only persisted on completion.
type StudySession struct {
	ID              string      `json:"id"`
	Kind            SessionKind `json:"kind"`
	DurationSeconds int64       `json:"duration_seconds"`
	CompletedAt     time.Time   `json:"completed_at"`
	XPAwarded       int         `json:"xp_awarded"`
}

func (s *StudySession) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Kind, validation.Required, validation.In(SessionPomodoro, SessionShortBreak, SessionLongBreak, SessionCustom)),
		validation.Field(&s.DurationSeconds, validation.Required, validation.Min(int64(1))),
		validation.Field(&s.CompletedAt, validation.Required),
		validation.Field(&s.XPAwarded, validation.Min(0)),
	)
}

// Duration returns the session length as a time.Duration
func (s *StudySession) Duration() time.Duration {
	return time.Duration(s.DurationSeconds) * time.Second
}
