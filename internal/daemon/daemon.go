// Package daemon drives one agent's cooperative poll loop: boot, inbox and
// task polling, provider spawn/stream, HP recording, compaction recovery,
// and circuit-breaking on repeated provider failure (spec.md §4.K). It is
// the only component that imports every other coordination package, since
// it is the thing that actually wires a running agent together.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"minionkernel/internal/config"
	"minionkernel/internal/datastore"
	"minionkernel/internal/fenix"
	"minionkernel/internal/health"
	"minionkernel/internal/logging"
	"minionkernel/internal/messaging"
	"minionkernel/internal/provider"
	"minionkernel/internal/registry"
	"minionkernel/internal/taskdag"
)

// ErrStandDown and ErrRetired signal a graceful daemon exit (spec.md §6
// exit code 3), distinguishing that from an actual failure.
var (
	ErrStandDown = errors.New("daemon: stand_down flag set")
	ErrRetired   = errors.New("daemon: agent retired")
)

// Daemon owns the cooperative runtime for one agent: boot sequence, poll
// loop, rolling history, circuit breaker, and state-file reporting.
type Daemon struct {
	Agent   string
	Class   string
	Model   string
	Project string

	cfg      *config.Config
	store    *datastore.Store
	reg      *registry.Registry
	msg      *messaging.Messenger
	tasks    *taskdag.Engine
	hp       *health.Monitor
	fenixSvc *fenix.Service
	prov     provider.Provider
	contract *ContractDocs

	stateDir   string
	alertDir   string
	streamsDir string

	buffer  *RollingBuffer
	breaker *CircuitBreaker
	tail    *TailWriter

	handle              provider.Handle
	injectHistoryNext   bool
	consecutiveEmptyPoll int
}

// Deps bundles every coordination-kernel collaborator the daemon needs.
// All fields are required except Fenix, which may be nil for providers
// that never emit knowledge dumps.
type Deps struct {
	Config   *config.Config
	Store    *datastore.Store
	Registry *registry.Registry
	Messages *messaging.Messenger
	Tasks    *taskdag.Engine
	Health   *health.Monitor
	Fenix    *fenix.Service
	Provider provider.Provider
	Contract *ContractDocs

	StateDir   string
	AlertDir   string
	StreamsDir string
}

// New builds a Daemon for one agent. It does not register or spawn
// anything; call Boot for that.
func New(agent, class, model, project string, d Deps) *Daemon {
	return &Daemon{
		Agent:      agent,
		Class:      class,
		Model:      model,
		Project:    project,
		cfg:        d.Config,
		store:      d.Store,
		reg:        d.Registry,
		msg:        d.Messages,
		tasks:      d.Tasks,
		hp:         d.Health,
		fenixSvc:   d.Fenix,
		prov:       d.Provider,
		contract:   d.Contract,
		stateDir:   d.StateDir,
		alertDir:   d.AlertDir,
		streamsDir: d.StreamsDir,
		buffer:     NewRollingBuffer(d.Config.RollingHistory.MaxTokens),
		breaker:    NewCircuitBreaker(d.Config.CircuitBreakerThreshold, d.Config.Polling.RetryInitial, d.Config.Polling.RetryMax),
	}
}

// Boot runs the register -> set_context -> set_status sequence and opens
// the provider session and tail stream (spec.md §4.K boot sequence).
func (d *Daemon) Boot(ctx context.Context, transport string) error {
	log := logging.Get(logging.CategoryDaemon)
	stop := logging.StartTimer(logging.CategoryDaemon, "boot "+d.Agent)
	defer stop()

	if _, err := d.reg.Register(ctx, d.Agent, d.Class, d.Model, transport); err != nil {
		return fmt.Errorf("daemon boot: register: %w", err)
	}
	if err := d.reg.SetContext(ctx, d.Agent, "booting", false); err != nil {
		return fmt.Errorf("daemon boot: set_context: %w", err)
	}
	if err := d.reg.SetStatus(ctx, d.Agent, "online"); err != nil {
		return fmt.Errorf("daemon boot: set_status: %w", err)
	}

	sysPrompt := ""
	if d.contract != nil {
		sysPrompt = d.contract.BootRules()
	}
	handle, err := d.prov.Spawn(ctx, provider.AgentConfig{AgentName: d.Agent, Model: d.Model, SystemPrompt: sysPrompt})
	if err != nil {
		return fmt.Errorf("daemon boot: spawn: %w", err)
	}
	d.handle = handle

	tail, err := OpenTail(d.streamsDir, d.Agent)
	if err != nil {
		log.Warn("tail open failed", map[string]interface{}{"agent": d.Agent, "error": err.Error()})
	} else {
		d.tail = tail
	}

	log.Info("daemon booted", map[string]interface{}{"agent": d.Agent, "class": d.Class})
	return d.writeState("idle", "")
}

// PollResult summarizes one poll round for the caller/tests.
type PollResult struct {
	UnreadCount  int
	OpenTaskIDs  []string
	HadWork      bool
	Backoff      time.Duration
}

// pollOnce fetches the unread inbox (via CheckInbox, which marks those
// messages read) and the project's open tasks concurrently in a single
// round-trip via errgroup, matching spec.md §4.K's "one poll does both".
func (d *Daemon) pollOnce(ctx context.Context) (*PollResult, error) {
	var unread []*datastore.Message
	var tasks []*datastore.Task

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		msgs, err := d.msg.CheckInbox(gctx, d.Agent)
		if err != nil {
			return err
		}
		unread = msgs
		return nil
	})
	g.Go(func() error {
		ts, err := d.tasks.ListTasks(gctx, d.Project, "open")
		if err != nil {
			return err
		}
		tasks = ts
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var ids []string
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	res := &PollResult{UnreadCount: len(unread), OpenTaskIDs: ids, HadWork: len(unread) > 0 || len(ids) > 0}
	return res, nil
}

// nextBackoff applies exponential back-off on empty polls, bounded by the
// configured min/max poll interval (spec.md §6 default 5s, 1s-30s bounds).
func (d *Daemon) nextBackoff(hadWork bool) time.Duration {
	if hadWork {
		d.consecutiveEmptyPoll = 0
		return d.cfg.Polling.MinInterval
	}
	d.consecutiveEmptyPoll++
	interval := d.cfg.Polling.Interval
	for i := 1; i < d.consecutiveEmptyPoll; i++ {
		interval *= 2
		if interval >= d.cfg.Polling.MaxInterval {
			interval = d.cfg.Polling.MaxInterval
			break
		}
	}
	return interval
}

// RunTurn drives one provider turn: optionally injects the rolling-history
// replay (after a detected compaction), writes the prompt, reads the
// stream, records HP, and detects a fresh compaction marker for the next
// turn.
func (d *Daemon) RunTurn(ctx context.Context, prompt string) error {
	log := logging.Get(logging.CategoryDaemon)

	if d.injectHistoryNext {
		replay := d.buffer.Replay(d.cfg.RollingHistory.MaxPromptChars)
		prompt = replay + "\n" + prompt
		d.injectHistoryNext = false
		log.Info("injected rolling history replay", map[string]interface{}{"agent": d.Agent, "chars": len(replay)})
	}

	if err := d.prov.WritePrompt(ctx, d.handle, prompt); err != nil {
		return d.onProviderFailure(ctx, err)
	}

	stream, err := d.prov.ReadStream(ctx, d.handle)
	if err != nil {
		return d.onProviderFailure(ctx, err)
	}

	var lastUsage provider.Usage
	var haveUsage bool
	for ev := range stream {
		if ev.Text != "" {
			d.buffer.Append(ev.Text)
			if d.tail != nil {
				d.tail.Write(ev.Text)
			}
			if d.contract != nil && d.contract.DetectCompaction(ev.Text) {
				d.injectHistoryNext = true
				log.Warn("compaction marker detected", map[string]interface{}{"agent": d.Agent})
			}
		}
		if usage, ok := d.prov.ExtractUsage(ev); ok {
			lastUsage = usage
			haveUsage = true
		}
	}

	d.breaker.RecordSuccess()
	ClearAlert(d.alertDir, d.Agent)

	if haveUsage && d.hp != nil {
		denom := lastUsage.ContextWindow
		if !lastUsage.HasContextWindow {
			denom = int64(d.prov.Capabilities().DefaultContextWindow)
		}
		if err := d.hp.RecordTurn(ctx, d.Agent, lastUsage.TurnInputTokens, lastUsage.TurnOutputTokens, denom, health.ModeDaemon); err != nil {
			log.Warn("hp record failed", map[string]interface{}{"agent": d.Agent, "error": err.Error()})
		}
	}

	return d.writeState("idle", "")
}

// onProviderFailure records a circuit-breaker failure, writes a side-channel
// alert on trip, and returns the original error wrapped.
func (d *Daemon) onProviderFailure(ctx context.Context, cause error) error {
	log := logging.Get(logging.CategoryDaemon)
	if d.breaker.RecordFailure() {
		reason := fmt.Sprintf("%d consecutive provider failures: %v", d.breaker.Consecutive(), cause)
		if err := WriteAlert(d.alertDir, d.Agent, reason); err != nil {
			log.Error("alert write failed", map[string]interface{}{"agent": d.Agent, "error": err.Error()})
		}
		log.Error("circuit breaker tripped", map[string]interface{}{"agent": d.Agent, "reason": reason})
	}
	d.writeState("error", cause.Error())
	return fmt.Errorf("daemon turn: provider failure: %w", cause)
}

func (d *Daemon) writeState(status, lastErr string) error {
	return WriteState(d.stateDir, State{
		Agent:               d.Agent,
		Status:              status,
		UpdatedAt:           time.Now(),
		ConsecutiveFailures: d.breaker.Consecutive(),
		ResumeReady:         d.prov.Capabilities().SupportsResume,
		LastError:           lastErr,
	})
}

// Run is the cooperative single-threaded poll loop: poll, act if there is
// work, sleep for the back-off interval, repeat until ctx is cancelled,
// the process-wide stand_down flag is set, or this agent's retire:<agent>
// flag is set.
func (d *Daemon) Run(ctx context.Context, onWork func(ctx context.Context, res *PollResult) error) error {
	log := logging.Get(logging.CategoryDaemon)
	defer func() {
		if d.tail != nil {
			d.tail.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.store != nil {
			if retired, err := d.store.FlagSet(ctx, "retire:"+d.Agent); err == nil && retired {
				d.writeState("retired", "")
				return ErrRetired
			}
			if down, err := d.store.FlagSet(ctx, "stand_down"); err == nil && down {
				d.writeState("stand_down", "")
				return ErrStandDown
			}
		}

		if d.breaker.Tripped() {
			time.Sleep(d.breaker.Backoff())
		}

		res, err := d.pollOnce(ctx)
		if err != nil {
			log.Warn("poll failed", map[string]interface{}{"agent": d.Agent, "error": err.Error()})
			time.Sleep(d.nextBackoff(false))
			continue
		}

		interrupted := false
		if d.store != nil {
			if set, err := d.store.FlagSet(ctx, "interrupt:"+d.Agent); err == nil {
				interrupted = set
			}
		}

		if interrupted {
			log.Info("interrupt flag set, holding turn", map[string]interface{}{"agent": d.Agent})
		} else if res.HadWork && onWork != nil {
			if err := onWork(ctx, res); err != nil {
				log.Warn("work handler failed", map[string]interface{}{"agent": d.Agent, "error": err.Error()})
			}
		}

		res.Backoff = d.nextBackoff(res.HadWork)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(res.Backoff):
		}
	}
}

// ColdStart runs the recovery briefing path for an agent restarting after a
// crash, consuming pending fenix records in the process.
func (d *Daemon) ColdStart(ctx context.Context) (*fenix.Briefing, error) {
	if d.fenixSvc == nil {
		return &fenix.Briefing{}, nil
	}
	return d.fenixSvc.ColdStart(ctx, d.Agent, d.Project)
}

// alertFilePath returns the path of this daemon's side-channel alert file
// (the same <alertDir>/<agent>.alert path WriteAlert writes).
func (d *Daemon) alertFilePath() string {
	return filepath.Join(d.alertDir, d.Agent+".alert")
}
