package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// State is the per-daemon JSON state file written at boot, after every
// provider turn, on provider failure, and on graceful exit, readable by operators and by the agent's own cold-start logic without
// touching the datastore (spec.md §4.K).
type State struct {
	Agent               string    `json:"agent"`
	PID                 int       `json:"pid"`
	Status              string    `json:"status"`
	UpdatedAt           time.Time `json:"updated_at"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	ResumeReady         bool      `json:"resume_ready"`
	LastError           string    `json:"last_error,omitempty"`
}

// statePath is state/<agent>.json under stateDir.
func statePath(stateDir, agent string) string {
	return filepath.Join(stateDir, agent+".json")
}

// WriteState atomically persists the daemon's state file.
func WriteState(stateDir string, s State) error {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	path := statePath(stateDir, s.Agent)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadState loads a daemon's last-written state file, if any.
func ReadState(stateDir, agent string) (*State, error) {
	data, err := os.ReadFile(statePath(stateDir, agent))
	if err != nil {
		return nil, err
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
