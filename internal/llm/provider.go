// Package llm talks to the external judge. Every backend satisfies Provider;
// cross-cutting behaviour (retries, pacing, per-attempt deadlines, call
// auditing) is layered on top as decorators by NewProvider.
package llm

import (
	"context"
	"encoding/json"
)

// Provider produces one structured completion per call.
type Provider interface {
	// Generate returns Content that already satisfies req.Schema when one
	// is set. Failures are reported with the error types in errors.go so
	// decorators can tell transient faults from permanent ones.
	Generate(ctx context.Context, req Request) (*Response, error)

	ModelID() string
}

// Request is a single judge prompt.
type Request struct {
	System   string
	Messages []Message

	// Schema, when non-nil, switches the backend to its native JSON mode.
	Schema *Schema

	MaxTokens   int
	Temperature float64 // 0 leaves the backend default
}

// Prompt builds the common single-turn request.
func Prompt(system, user string) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: user}},
	}
}

type Message struct {
	Role    Role
	Content string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema is a named JSON Schema document. Name doubles as the cache key for
// the compiled validator and as the schema name sent to OpenAI.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// StopReason is a backend-neutral reason for the end of generation.
type StopReason string

const (
	StopEnd       StopReason = "end"
	StopMaxTokens StopReason = "max_tokens"
)

type Response struct {
	Content json.RawMessage
	Usage   Usage
	Model   string // model that actually served the call
	Stop    StopReason
}

// Usage is token consumption of one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }
