package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// WriteAlert drops a side-channel alert file under alertDir when the
// circuit breaker trips, since a daemon whose provider is failing may not
// be able to reach the normal messaging path (spec.md §4.K).
func WriteAlert(alertDir, agent, reason string) error {
	if err := os.MkdirAll(alertDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(alertDir, fmt.Sprintf("%s.alert", agent))
	body := fmt.Sprintf("agent: %s\nat: %s\nreason: %s\n", agent, time.Now().Format(time.RFC3339), reason)
	return os.WriteFile(path, []byte(body), 0o644)
}

// ClearAlert removes a previously written alert file once the circuit
// recovers.
func ClearAlert(alertDir, agent string) error {
	path := filepath.Join(alertDir, fmt.Sprintf("%s.alert", agent))
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
