package models

import "time"

// BadgeUnlock is the stored fact that a badge was earned.
type BadgeUnlock struct {
	BadgeID    string    `json:"badge_id"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// StatsSnapshot is derived from persisted records and stored badge facts. It is never
// mutated on its own, so two snapshots over unchanged records are identical.
type StatsSnapshot struct {
	TotalXP            int      `json:"total_xp"`
	Level              int      `json:"level"`
	NextLevelXP        int      `json:"next_level_xp,omitempty"`
	NotesCount         int      `json:"notes_count"`
	QuizzesTaken       int      `json:"quizzes_taken"`
	SessionsCompleted  int      `json:"sessions_completed"`
	PomodorosCompleted int      `json:"pomodoros_completed"`
	StudySeconds       int64    `json:"study_seconds"`
	LongestStreakDays  int      `json:"longest_streak_days"`
	Badges             []string `json:"badges"`
}

// Equal reports whether both snapshots hold the same values.
func (s StatsSnapshot) Equal(o StatsSnapshot) bool {
	if s.TotalXP != o.TotalXP || s.Level != o.Level || s.NextLevelXP != o.NextLevelXP ||
		s.NotesCount != o.NotesCount || s.QuizzesTaken != o.QuizzesTaken ||
		s.SessionsCompleted != o.SessionsCompleted || s.PomodorosCompleted != o.PomodorosCompleted ||
		s.StudySeconds != o.StudySeconds || s.LongestStreakDays != o.LongestStreakDays ||
		len(s.Badges) != len(o.Badges) {
		return false
	}
	for i := range s.Badges {
		if s.Badges[i] != o.Badges[i] {
			return false
		}
	}
	return true
}
