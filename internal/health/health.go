// Package health implements the HP model: per-turn token pressure reduced
// to a percentage, a zone (Healthy/Wounded/CRITICAL), and threshold alerts
// that fire at most once per crossing (spec.md §4.I).
package health

import (
	"context"
	"strconv"

	"minionkernel/internal/datastore"
)

// Mode is how HP telemetry for an agent is sourced.
type Mode string

const (
	ModeDaemon       Mode = "daemon"
	ModeSelfReported Mode = "self-reported"
	ModeNone         Mode = "none"
)

// Zone classifies an HP percentage.
type Zone string

const (
	Healthy  Zone = "healthy"
	Wounded  Zone = "wounded"
	Critical Zone = "critical"
)

// Percentage computes the spec.md §4.I formula:
//
//	used  = min(turnInput, denom)
//	hp_pct = max(0, round(100 - (used/denom)*100))
//
// denom is hp_tokens_limit, or the provider-reported context_window when
// hp_tokens_limit is unset. A zero denom yields "unknown" HP (mode=none),
// the historical limit=100 sentinel is never used.
func Percentage(turnInput, denom int64) (pct int, ok bool) {
	if denom <= 0 {
		return 0, false
	}
	used := turnInput
	if used > denom {
		used = denom
	}
	raw := 100.0 - (float64(used)/float64(denom))*100.0
	rounded := int(raw + 0.5)
	if raw < 0 {
		rounded = int(raw - 0.5)
	}
	if rounded < 0 {
		rounded = 0
	}
	return rounded, true
}

// ZoneOf classifies a percentage, per spec.md §4.I thresholds.
func ZoneOf(pct int, woundedPct, criticalPct int) Zone {
	switch {
	case pct <= criticalPct:
		return Critical
	case pct <= woundedPct:
		return Wounded
	default:
		return Healthy
	}
}

// Notifier delivers an alert to the current lead; implemented by the
// messaging package at the wiring layer so health has no dependency on
// messaging internals.
type Notifier interface {
	NotifyLead(ctx context.Context, text string) error
}

// Monitor evaluates HP transitions and fires/clears threshold alerts.
type Monitor struct {
	store      *datastore.Store
	notifier   Notifier
	woundedPct int
	criticalPct int
	alertHigh  int
	alertLow   int
}

// NewMonitor builds a Monitor with the configured thresholds.
func NewMonitor(store *datastore.Store, notifier Notifier, woundedPct, criticalPct, alertHigh, alertLow int) *Monitor {
	return &Monitor{store: store, notifier: notifier, woundedPct: woundedPct, criticalPct: criticalPct, alertHigh: alertHigh, alertLow: alertLow}
}

// RecordTurn writes turn telemetry for name and evaluates alert crossings.
// Cumulative hp_input_tokens/hp_output_tokens are accounting-only and must
// never feed the HP percentage (spec.md §4.I "cost tracking" note) — only
// turnInput/denom are used here.
func (m *Monitor) RecordTurn(ctx context.Context, name string, turnInput, turnOutput, denom int64, mode Mode) error {
	if err := m.store.UpdateHP(ctx, name, turnInput, turnOutput, denom, string(mode)); err != nil {
		return err
	}
	return m.evaluateAlerts(ctx, name, turnInput, denom)
}

func (m *Monitor) evaluateAlerts(ctx context.Context, name string, turnInput, denom int64) error {
	pct, ok := Percentage(turnInput, denom)
	if !ok {
		return nil
	}
	a, err := m.store.GetAgent(ctx, name)
	if err != nil {
		return err
	}
	fired := a.HPAlertsFired
	if fired == nil {
		fired = map[int]bool{}
	}

	if pct > m.woundedPct {
		if len(fired) > 0 {
			fired = map[int]bool{}
			return m.store.SetAlertsFired(ctx, name, fired)
		}
		return nil
	}

	for _, threshold := range []int{m.alertHigh, m.alertLow} {
		if pct <= threshold && !fired[threshold] {
			fired[threshold] = true
			if m.notifier != nil {
				_ = m.notifier.NotifyLead(ctx, alertText(name, pct, threshold))
			}
		}
	}
	return m.store.SetAlertsFired(ctx, name, fired)
}

func alertText(name string, pct, threshold int) string {
	return name + " HP crossed " + strconv.Itoa(threshold) + "% (now " + strconv.Itoa(pct) + "%)"
}

// ZoneFor returns the agent's current zone and HP percentage, reading its last
// recorded turn telemetry. Mode none is reported as unknown zone via ok=false.
func (m *Monitor) ZoneFor(ctx context.Context, name string) (zone Zone, pct int, ok bool, err error) {
	a, err := m.store.GetAgent(ctx, name)
	if err != nil {
		return "", 0, false, err
	}
	if Mode(a.HPMode) == ModeNone || a.HPTokensLimit == 0 {
		return "", 0, false, nil
	}
	pct, ok = Percentage(a.HPTurnInput, a.HPTokensLimit)
	if !ok {
		return "", 0, false, nil
	}
	return ZoneOf(pct, m.woundedPct, m.criticalPct), pct, true, nil
}
