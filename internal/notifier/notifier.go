// Package notifier delivers reminder notifications to the studylit tray app.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/studylit/internal/constants"
	"github.com/julianstephens/studylit/internal/logger"
)

// ErrTrayNotRunning means no tray app is available to show notifications.
var ErrTrayNotRunning = errors.New("studylit-tray is not running")

var (
	userConfigDirFunc = os.UserConfigDir
	findProcessFunc   = ps.FindProcess
)

const secretHeader = "X-Studylit-Secret"

type WebhookPayload struct {
	Title      string `json:"title,omitempty"`
	Text       string `json:"text"`
	DurationMs uint32 `json:"duration_ms"`
}

// endpoint is where the tray app listens, read from its lockfile.
type endpoint struct {
	port   string
	secret string
}

type Notifier struct {
	client     *http.Client
	retries    int
	retryDelay time.Duration
	// lockfile overrides the tray app lockfile location
	lockfile string
}

type Option func(*Notifier)

func WithLockfile(path string) Option {
	return func(n *Notifier) { n.lockfile = path }
}

func WithRetries(retries int, delay time.Duration) Option {
	return func(n *Notifier) {
		if retries > 0 {
			n.retries = retries
		}
		n.retryDelay = delay
	}
}

func New(opts ...Option) *Notifier {
	n := &Notifier{
		client:     &http.Client{Timeout: 5 * time.Second},
		retries:    constants.NotifyMaxRetries,
		retryDelay: constants.NotifyRetryDelay,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify shows text in the tray app, retrying transient delivery failures.
func (n *Notifier) Notify(ctx context.Context, title, text string) error {
	lockfile := n.lockfile
	if lockfile == "" {
		dir, err := GetTrayAppConfigDir()
		if err != nil {
			return err
		}
		lockfile = filepath.Join(dir, constants.NotifierLockfileName)
	}

	ep, err := findAndValidateTrayProcess(lockfile)
	if err != nil {
		return err
	}

	payload := WebhookPayload{
		Title:      title,
		Text:       text,
		DurationMs: constants.NotificationDurationMs,
	}

	for attempt := 1; ; attempt++ {
		err = n.send(ctx, ep, payload)
		if err == nil || attempt >= n.retries {
			return err
		}
		logger.Debug("Notification failed, retrying", "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.retryDelay):
		}
	}
}

// Callback adapts the notifier to the reminder scheduler. When the tray app cannot be
// reached the reminder is written to the log instead.
func (n *Notifier) Callback(ctx context.Context) func(id int64, message string) {
	return func(id int64, message string) {
		err := n.Notify(ctx, "Reminder", message)
		if err == nil {
			logger.Info("Reminder delivered", "id", id)
			return
		}
		logger.Warn("Reminder", "id", id, "message", message, "delivery_err", err)
	}
}

// GetTrayAppConfigDir returns the configuration directory used by the tray application.
func GetTrayAppConfigDir() (string, error) {
	configDir, err := userConfigDirFunc()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}

	trayConfigDir := filepath.Join(configDir, constants.TrayAppIdentifier)

	// settings.json may point the lockfile elsewhere
	data, err := os.ReadFile(filepath.Join(trayConfigDir, "settings.json"))
	if err != nil {
		return trayConfigDir, nil
	}
	var store struct {
		Settings struct {
			LockfileDir *string `json:"lockfile_dir"`
		} `json:"settings"`
	}
	if err := json.Unmarshal(data, &store); err == nil {
		if store.Settings.LockfileDir != nil && *store.Settings.LockfileDir != "" {
			return *store.Settings.LockfileDir, nil
		}
	}
	return trayConfigDir, nil
}

// findAndValidateTrayProcess reads a "port|pid|secret" lockfile and checks that the pid
// belongs to a live tray process.
func findAndValidateTrayProcess(lockfilePath string) (endpoint, error) {
	content, err := os.ReadFile(lockfilePath)
	if err != nil {
		return endpoint{}, ErrTrayNotRunning
	}

	parts := strings.Split(strings.TrimSpace(string(content)), "|")
	if len(parts) != 3 {
		return endpoint{}, errors.New("tray lockfile is malformed")
	}

	port := strings.TrimSpace(parts[0])
	if port == "" {
		return endpoint{}, errors.New("port in tray lockfile is empty")
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return endpoint{}, errors.New("invalid port number in tray lockfile")
	}
	if portNum < 1 || portNum > 65535 {
		return endpoint{}, fmt.Errorf("port number %d is outside valid range (1-65535)", portNum)
	}

	pid, err := strconv.Atoi(parts[1])
	if err != nil {
		return endpoint{}, errors.New("invalid process ID in tray lockfile")
	}
	secret := parts[2]
	if strings.TrimSpace(secret) == "" {
		return endpoint{}, errors.New("secret in tray lockfile is empty")
	}

	process, err := findProcessFunc(pid)
	if err != nil || process == nil {
		return endpoint{}, ErrTrayNotRunning
	}
	if !strings.HasPrefix(process.Executable(), constants.TrayAppExecutable) {
		return endpoint{}, fmt.Errorf("process with PID %d is not %s (is %s)", pid, constants.TrayAppExecutable, process.Executable())
	}

	return endpoint{port: port, secret: secret}, nil
}

func (n *Notifier) send(ctx context.Context, ep endpoint, payload WebhookPayload) error {
	url := fmt.Sprintf("http://127.0.0.1:%s", ep.port)

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(secretHeader, ep.secret)

	res, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}
	msg, _ := io.ReadAll(res.Body)
	return fmt.Errorf("notification failed with status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
}
