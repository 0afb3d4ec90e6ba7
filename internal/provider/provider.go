// Package provider defines the abstract model-subprocess contract the
// daemon runtime drives: spawn, write_prompt, read_stream, extract_usage,
// plus static capability flags. The daemon is provider-agnostic; only
// extract_usage is provider-specific (spec.md §4.J).
package provider

import "context"

// Capabilities are static, provider-level flags the daemon consults
// without ever branching on provider identity.
type Capabilities struct {
	CanReadOutsideProject bool
	ShellSandbox          bool
	DefaultContextWindow  int
	SupportsResume        bool
}

// Handle identifies one spawned provider subprocess/session.
type Handle interface {
	// ID is an opaque identifier for logging.
	ID() string
}

// Event is one structured unit emitted on the provider's stream: a text
// delta, a tool call, a usage report, or a compaction marker. Exactly which
// fields are populated is provider-specific; extract_usage is the only
// function allowed to interpret Raw.
type Event struct {
	Text          string
	IsUsageReport bool
	IsFinal       bool
	Raw           interface{}
}

// Usage is what extract_usage pulls out of one Event, per spec.md §4.J.
// ContextWindow may be absent (zero, with HasContextWindow false) since not
// every provider reports context_window; the turn token counts have no Has
// flag and are zero when not reported.
type Usage struct {
	TurnInputTokens     int64
	TurnOutputTokens    int64
	ContextWindow       int64
	HasContextWindow    bool
}

// Provider is the minimal capability set the daemon needs from a model
// subprocess. No provider-specific data structure may leak above this
// interface (spec.md §9).
type Provider interface {
	Capabilities() Capabilities
	Spawn(ctx context.Context, agentConfig AgentConfig) (Handle, error)
	WritePrompt(ctx context.Context, h Handle, text string) error
	ReadStream(ctx context.Context, h Handle) (<-chan Event, error)
	ExtractUsage(e Event) (Usage, bool)
}

// AgentConfig is what the daemon supplies when spawning a provider session.
type AgentConfig struct {
	AgentName    string
	Model        string
	SystemPrompt string
	Resume       bool
}
