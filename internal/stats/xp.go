package stats

import (
	"github.com/julianstephens/studylit/internal/config"
	"github.com/julianstephens/studylit/internal/models"
)

// SessionXP is the award for one completed session. Custom sessions earn per whole minute.
func SessionXP(rules config.XPRules, kind models.SessionKind, durationSeconds int64) int {
	switch kind {
	case models.SessionPomodoro:
		return rules.Pomodoro
	case models.SessionShortBreak:
		return rules.ShortBreak
	case models.SessionLongBreak:
		return rules.LongBreak
	case models.SessionCustom:
		return int(durationSeconds/60) * rules.CustomPerMinute
	}
	return 0
}

// QuizXP is the award for one completed quiz.
func QuizXP(rules config.XPRules, correct int) int {
	if correct < 0 {
		correct = 0
	}
	return rules.PerQuiz + correct*rules.PerCorrectAnswer
}

// LevelFor returns the 1-based level reached with xp and the XP needed for the next
// level, or 0 at the top level.
func LevelFor(levels []int, xp int) (level, next int) {
	level = 1
	for i, threshold := range levels {
		if xp >= threshold {
			level = i + 1
		}
	}
	if level < len(levels) {
		next = levels[level]
	}
	return level, next
}
