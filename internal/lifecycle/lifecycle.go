package lifecycle

import (
	"fmt"
	"sync/atomic"
)

// AppState is the foreground state reported by the host.
type AppState string

const (
	Active     AppState = "active"
	Inactive   AppState = "inactive"
	Background AppState = "background"
)

// ParseAppState accepts active, inactive and background.
func ParseAppState(s string) (AppState, error) {
	switch st := AppState(s); st {
	case Active, Inactive, Background:
		return st, nil
	}
	return "", fmt.Errorf("unknown app state %q", s)
}

// IsForegroundResume reports a transition from background or inactive to active.
func IsForegroundResume(prev, next AppState) bool {
	return next == Active && (prev == Background || prev == Inactive)
}

var (
	shuttingDown atomic.Bool
	current      atomic.Value
)

func init() {
	current.Store(Active)
}

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// Health handler returns 503 with status shutting-down while true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining and should not trigger new fetches.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// SetState records the latest app state and returns the previous one.
func SetState(s AppState) AppState {
	return current.Swap(s).(AppState)
}

// State returns the latest app state. The process starts active.
func State() AppState {
	return current.Load().(AppState)
}
