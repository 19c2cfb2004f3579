package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// MockResponse is one scripted judge reply. Err wins over Content.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Stop    StopReason
	Err     error
}

// MockProvider replays scripted replies in order and records every request.
// Replies go through the same truncation and schema checks as a real
// backend. Once the script runs out it behaves like an unreachable judge.
type MockProvider struct {
	mu     sync.Mutex
	script []MockResponse
	Calls  []Request
}

func NewMockProvider(script ...MockResponse) *MockProvider {
	return &MockProvider{script: script}
}

func (m *MockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	var next MockResponse
	empty := len(m.script) == 0
	if !empty {
		next, m.script = m.script[0], m.script[1:]
	}
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch {
	case empty:
		return nil, &ErrProviderUnavailable{Err: errors.New("mock judge: script exhausted")}
	case next.Err != nil:
		return nil, next.Err
	}
	return finish(req, completion{
		text:  string(next.Content),
		usage: next.Usage,
		model: "mock",
		stop:  next.Stop,
	})
}

func (m *MockProvider) ModelID() string { return "mock" }

// AddResponse appends to the script.
func (m *MockProvider) AddResponse(r MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, r)
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
