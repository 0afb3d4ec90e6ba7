package daemon

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"minionkernel/internal/logging"
)

// ContractDocs are the operator-editable documents under DOCS_DIR that
// shape daemon behavior without a code change: boot rules injected at the
// start of every session, and compaction markers that signal a provider
// has silently summarized its own context (spec.md §4.K). Both are
// hot-reloaded via fsnotify rather than re-read per poll.
type ContractDocs struct {
	mu                sync.RWMutex
	dir               string
	bootRules         string
	compactionMarkers []string

	watcher *fsnotify.Watcher
	log     *logging.Logger
}

const (
	bootRulesFile    = "boot_rules.md"
	compactionMarkersFile = "compaction_markers.txt"
)

// LoadContractDocs reads boot_rules.md and compaction_markers.txt out of
// dir (missing files are treated as empty, not an error) and starts an
// fsnotify watch so edits take effect without a daemon restart.
func LoadContractDocs(dir string) (*ContractDocs, error) {
	c := &ContractDocs{dir: dir, log: logging.Get(logging.CategoryDaemon)}
	c.reload()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return c, nil // hot-reload is best-effort; static load already succeeded
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return c, nil
	}
	c.watcher = w
	go c.watch()
	return c, nil
}

func (c *ContractDocs) watch() {
	for {
		select {
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			base := filepath.Base(ev.Name)
			if base == bootRulesFile || base == compactionMarkersFile {
				c.reload()
				c.log.Info("contract doc reloaded", map[string]interface{}{"file": base})
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.log.Warn("contract watch error", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (c *ContractDocs) reload() {
	rules, _ := os.ReadFile(filepath.Join(c.dir, bootRulesFile))
	markers, _ := os.ReadFile(filepath.Join(c.dir, compactionMarkersFile))

	var lines []string
	for _, l := range strings.Split(string(markers), "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}

	c.mu.Lock()
	c.bootRules = string(rules)
	c.compactionMarkers = lines
	c.mu.Unlock()
}

// BootRules returns the current boot-rules document text.
func (c *ContractDocs) BootRules() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bootRules
}

// DetectCompaction reports whether text contains any configured compaction
// marker, meaning the provider has silently summarized its own history and
// the daemon must inject the rolling-buffer replay on the next turn.
func (c *ContractDocs) DetectCompaction(text string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.compactionMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// Close stops the fsnotify watch, if one was started.
func (c *ContractDocs) Close() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}
