// Package config loads the studylit YAML configuration with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/julianstephens/studylit/internal/constants"
	"github.com/julianstephens/studylit/internal/utils"
)

// Environment overrides applied after the file is parsed.
const (
	EnvDataDir = "STUDYLIT_DATA_DIR"
	EnvBackend = "STUDYLIT_BACKEND"
	EnvDebug   = "STUDYLIT_DEBUG"
)

// Config represents the application configuration.
type Config struct {
	DataDir          string              `yaml:"data_dir"`
	Backend          constants.Backend   `yaml:"backend"`
	Timezone         string              `yaml:"timezone"`
	Debug            bool                `yaml:"debug"`
	AutosaveInterval time.Duration       `yaml:"autosave_interval"`
	FlushTimeout     time.Duration       `yaml:"flush_timeout"`
	Scheduler        SchedulerConfig     `yaml:"scheduler"`
	Notifications    NotificationsConfig `yaml:"notifications"`
	XP               XPRules             `yaml:"xp"`
	Levels           []int               `yaml:"levels"`
	Badges           []Badge             `yaml:"badges"`
}

// SchedulerConfig controls how fired reminders are marked in the store.
type SchedulerConfig struct {
	MarkRetries  int           `yaml:"mark_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// Validate validates the scheduler configuration.
func (c *SchedulerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MarkRetries, validation.Required, validation.Min(1), validation.Max(10)),
		validation.Field(&c.RetryBackoff, validation.Required, validation.Min(time.Millisecond)),
	)
}

type NotificationsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// XPRules are the point awards used by the stats aggregator.
type XPRules struct {
	PerNote          int `yaml:"per_note"`
	PerQuiz          int `yaml:"per_quiz"`
	PerCorrectAnswer int `yaml:"per_correct_answer"`
	Pomodoro         int `yaml:"pomodoro"`
	ShortBreak       int `yaml:"short_break"`
	LongBreak        int `yaml:"long_break"`
	CustomPerMinute  int `yaml:"custom_per_minute"`
}

// Validate validates the XP rules.
func (r *XPRules) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.PerNote, validation.Min(0)),
		validation.Field(&r.PerQuiz, validation.Min(0)),
		validation.Field(&r.PerCorrectAnswer, validation.Min(0)),
		validation.Field(&r.Pomodoro, validation.Min(0)),
		validation.Field(&r.ShortBreak, validation.Min(0)),
		validation.Field(&r.LongBreak, validation.Min(0)),
		validation.Field(&r.CustomPerMinute, validation.Min(0)),
	)
}

// Badge is a threshold predicate over one cumulative counter.
type Badge struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Counter   string `yaml:"counter"`
	Threshold int    `yaml:"threshold"`
}

// Validate validates a badge definition.
func (b Badge) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.ID, validation.Required),
		validation.Field(&b.Name, validation.Required),
		validation.Field(&b.Counter, validation.Required, validation.In(
			constants.CounterNotesCreated,
			constants.CounterPomodoros,
			constants.CounterSessions,
			constants.CounterQuizzes,
			constants.CounterStudySeconds,
			constants.CounterTotalXP,
			constants.CounterLongestStreak,
		)),
		validation.Field(&b.Threshold, validation.Min(1)),
	)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.DataDir, validation.Required),
		validation.Field(&c.Backend, validation.Required, validation.In(constants.BackendSQLite, constants.BackendJSON)),
		validation.Field(&c.Timezone, validation.By(func(any) error {
			if !utils.ValidateTimezone(c.Timezone) {
				return fmt.Errorf("unknown timezone %q", c.Timezone)
			}
			return nil
		})),
		validation.Field(&c.AutosaveInterval, validation.Required, validation.Min(100*time.Millisecond)),
		validation.Field(&c.FlushTimeout, validation.Required, validation.Min(100*time.Millisecond)),
		validation.Field(&c.Levels, validation.Required),
		validation.Field(&c.Badges),
	); err != nil {
		return err
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := c.XP.Validate(); err != nil {
		return fmt.Errorf("xp: %w", err)
	}
	if c.Levels[0] != 0 {
		return fmt.Errorf("levels: first threshold must be 0")
	}
	for i := 1; i < len(c.Levels); i++ {
		if c.Levels[i] <= c.Levels[i-1] {
			return fmt.Errorf("levels: thresholds must be strictly increasing")
		}
	}
	seen := make(map[string]bool, len(c.Badges))
	for _, b := range c.Badges {
		if seen[b.ID] {
			return fmt.Errorf("badges: duplicate id %q", b.ID)
		}
		seen[b.ID] = true
	}
	return nil
}

// Location returns the configured timezone, falling back to local time.
func (c *Config) Location() *time.Location {
	loc, err := utils.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		DataDir:          constants.DefaultDataDir,
		Backend:          constants.BackendSQLite,
		Timezone:         "Local",
		AutosaveInterval: constants.DefaultAutosaveInterval,
		FlushTimeout:     constants.DefaultFlushTimeout,
		Scheduler: SchedulerConfig{
			MarkRetries:  constants.DefaultMarkRetries,
			RetryBackoff: constants.DefaultRetryBackoff,
		},
		Notifications: NotificationsConfig{Enabled: true},
		XP: XPRules{
			PerNote:          constants.DefaultXPPerNote,
			PerQuiz:          constants.DefaultXPPerQuiz,
			PerCorrectAnswer: constants.DefaultXPPerCorrectAnswer,
			Pomodoro:         constants.DefaultXPPomodoro,
			ShortBreak:       constants.DefaultXPShortBreak,
			LongBreak:        constants.DefaultXPLongBreak,
			CustomPerMinute:  constants.DefaultXPCustomPerMinute,
		},
		Levels: append([]int(nil), constants.DefaultLevels...),
		Badges: DefaultBadges(),
	}
}

// DefaultBadges returns the built-in badge set.
func DefaultBadges() []Badge {
	return []Badge{
		{ID: "first_note", Name: "First Note", Counter: constants.CounterNotesCreated, Threshold: 1},
		{ID: "note_taker", Name: "Note Taker", Counter: constants.CounterNotesCreated, Threshold: 25},
		{ID: "first_pomodoro", Name: "First Pomodoro", Counter: constants.CounterPomodoros, Threshold: 1},
		{ID: "focused", Name: "Focused", Counter: constants.CounterPomodoros, Threshold: 10},
		{ID: "quiz_rookie", Name: "Quiz Rookie", Counter: constants.CounterQuizzes, Threshold: 1},
		{ID: "quiz_master", Name: "Quiz Master", Counter: constants.CounterQuizzes, Threshold: 20},
		{ID: "ten_hours", Name: "Ten Hours", Counter: constants.CounterStudySeconds, Threshold: 36000},
		{ID: "on_a_roll", Name: "On a Roll", Counter: constants.CounterLongestStreak, Threshold: 7},
		{ID: "xp_1000", Name: "Thousand Club", Counter: constants.CounterTotalXP, Threshold: 1000},
	}
}

// Load reads the YAML file at path, expanding ${VAR} references, on top of the defaults.
// A missing file yields the defaults. Environment overrides are applied before validation.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	expanded, err := utils.ExpandHome(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(expanded)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", expanded, err)
	default:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", expanded, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.DataDir, err = utils.ExpandHome(cfg.DataDir); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvBackend); v != "" {
		c.Backend = constants.Backend(v)
	}
	if v := os.Getenv(EnvDebug); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvDebug, v, err)
		}
		c.Debug = debug
	}
	return nil
}

// Save writes the configuration as YAML, creating the parent directory.
func Save(path string, cfg *Config) error {
	expanded, err := utils.ExpandHome(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(expanded, data, 0600)
}
