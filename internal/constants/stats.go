package constants

// Default XP awards. These seed config.XPRules and can be overridden in config.yaml.
const (
	DefaultXPPerNote          = 10
	DefaultXPPerQuiz          = 25
	DefaultXPPerCorrectAnswer = 2
	DefaultXPPomodoro         = 25
	DefaultXPShortBreak       = 5
	DefaultXPLongBreak        = 10
	DefaultXPCustomPerMinute  = 1
)

// Badge counters a badge predicate may reference
const (
	CounterNotesCreated  = "notes_created"
	CounterPomodoros     = "pomodoros"
	CounterSessions      = "sessions"
	CounterQuizzes       = "quizzes"
	CounterStudySeconds  = "study_seconds"
	CounterTotalXP       = "total_xp"
	CounterLongestStreak = "longest_streak_days"
)

// DefaultLevels are the XP thresholds for each level, starting at level 1.
var DefaultLevels = []int{0, 100, 250, 500, 1000, 2000, 5000, 10000}
