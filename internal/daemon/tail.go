package daemon

import (
	"os"
	"path/filepath"
	"sync"
)

// TailWriter appends raw provider stream text to streams/<agent>.tail so an
// operator can `tail -f` a running daemon without touching the datastore.
type TailWriter struct {
	mu   sync.Mutex
	f    *os.File
}

// OpenTail opens (creating/truncating) the tail file for agent under
// streamsDir.
func OpenTail(streamsDir, agent string) (*TailWriter, error) {
	if err := os.MkdirAll(streamsDir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(streamsDir, agent+".tail"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return &TailWriter{f: f}, nil
}

// Write appends text and flushes immediately so followers see it live.
func (t *TailWriter) Write(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.f.WriteString(text); err != nil {
		return err
	}
	return t.f.Sync()
}

// Close closes the underlying file.
func (t *TailWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.f.Close()
}
