package constants

import "time"

// Backend identifies the storage engine behind the record store
type Backend string

const (
	AppName           = "studylit"
	DefaultConfigPath = "~/.config/studylit/config.yaml"
	DefaultDataDir    = "~/.config/studylit"
	Version           = "v0.1.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// DateTimeFormat is the format accepted for absolute reminder times
	DateTimeFormat = "2006-01-02 15:04"

	// Storage constants
	BackendSQLite    Backend = "sqlite"
	BackendJSON      Backend = "json"
	SQLiteFileName           = "studylit.db"
	JSONFileName             = "studylit.json"
	StatsFileName            = "stats.json"
	LockFileName             = "studylit.lock"
	DefaultFlushTimeout      = 5 * time.Second
	TagDelimiter             = ","

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "studylit-"

	// Autosave constants
	DefaultAutosaveInterval = 3 * time.Second
	MinAutosaveContentLen   = 3
	UntitledNotePrefix      = "Untitled note #"

	// Scheduler constants
	DefaultMarkRetries  = 3
	DefaultRetryBackoff = 100 * time.Millisecond

	// ConsistencyErrorBuffer bounds unread consistency errors before they are dropped
	ConsistencyErrorBuffer = 16

	// StatsRefreshInterval is how often the daemon rewrites the stats cache file
	StatsRefreshInterval = time.Minute

	// Notify constants
	NotifyMaxRetries       = 3
	NotifyRetryDelay       = 100 * time.Millisecond
	NotifierLockfileName   = "studylit-notifier.lock"
	NotificationDurationMs = 5000
	TrayAppIdentifier      = "com.julianstephens.studylit"
	TrayAppExecutable      = "studylit-tray"

	// Timer lengths used when a session is logged without a duration
	DefaultPomodoroDuration   = 25 * time.Minute
	DefaultShortBreakDuration = 5 * time.Minute
	DefaultLongBreakDuration  = 15 * time.Minute

	// Quiz constants
	DefaultQuizQuestions = 5
	MinQuizSourceLen     = 10
)
