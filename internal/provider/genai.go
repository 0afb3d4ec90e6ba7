package provider

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// GenAI grounds the Provider contract on google.golang.org/genai's
// streaming generate-content API, including its native UsageMetadata for
// extract_usage.
type GenAI struct {
	client *genai.Client
	caps   Capabilities
}

// NewGenAI builds a GenAI provider from an already-configured client.
func NewGenAI(client *genai.Client) *GenAI {
	return &GenAI{
		client: client,
		caps: Capabilities{
			CanReadOutsideProject: false,
			ShellSandbox:          false,
			DefaultContextWindow:  200_000,
			SupportsResume:        false,
		},
	}
}

func (g *GenAI) Capabilities() Capabilities { return g.caps }

type genaiHandle struct {
	id      string
	model   string
	history []*genai.Content
	mu      sync.Mutex
}

func (h *genaiHandle) ID() string { return h.id }

// Spawn opens a new chat session for agentConfig; genai sessions are
// stateless HTTP calls, so "spawning" here just seeds the running history.
func (g *GenAI) Spawn(ctx context.Context, agentConfig AgentConfig) (Handle, error) {
	h := &genaiHandle{id: agentConfig.AgentName, model: agentConfig.Model}
	if agentConfig.SystemPrompt != "" {
		h.history = append(h.history, genai.NewContentFromText(agentConfig.SystemPrompt, genai.RoleUser))
	}
	return h, nil
}

// WritePrompt appends text to the session's running history.
func (g *GenAI) WritePrompt(ctx context.Context, handle Handle, text string) error {
	h, ok := handle.(*genaiHandle)
	if !ok {
		return fmt.Errorf("genai: unexpected handle type %T", handle)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = append(h.history, genai.NewContentFromText(text, genai.RoleUser))
	return nil
}

// ReadStream invokes GenerateContentStream and republishes each chunk as an
// Event; the final chunk carries UsageMetadata.
func (g *GenAI) ReadStream(ctx context.Context, handle Handle) (<-chan Event, error) {
	h, ok := handle.(*genaiHandle)
	if !ok {
		return nil, fmt.Errorf("genai: unexpected handle type %T", handle)
	}
	out := make(chan Event, 8)

	h.mu.Lock()
	history := append([]*genai.Content(nil), h.history...)
	model := h.model
	h.mu.Unlock()

	go func() {
		defer close(out)
		stream := g.client.Models.GenerateContentStream(ctx, model, history, nil)
		for resp, err := range stream {
			if err != nil {
				out <- Event{IsFinal: true, Raw: err}
				return
			}
			text := resp.Text()
			ev := Event{Text: text}
			if resp.UsageMetadata != nil {
				ev.IsUsageReport = true
				ev.Raw = resp.UsageMetadata
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
		out <- Event{IsFinal: true}
	}()
	return out, nil
}

// ExtractUsage reads genai's UsageMetadata (PromptTokenCount /
// CandidatesTokenCount) out of an Event's Raw payload. This is the only
// function in the module aware of genai's concrete usage-metadata shape.
func (g *GenAI) ExtractUsage(e Event) (Usage, bool) {
	if !e.IsUsageReport {
		return Usage{}, false
	}
	meta, ok := e.Raw.(*genai.GenerateContentResponseUsageMetadata)
	if !ok || meta == nil {
		return Usage{}, false
	}
	return Usage{
		TurnInputTokens:  int64(meta.PromptTokenCount),
		TurnOutputTokens: int64(meta.CandidatesTokenCount),
	}, true
}
