package llm

import (
	"encoding/json"
	"strings"
)

// completion is what a backend adapter pulls out of its SDK response before
// the shared checks run.
type completion struct {
	text  string
	usage Usage
	model string
	stop  StopReason
}

// finish applies the checks every backend shares: truncated output is an
// error, and structured output must match req.Schema.
func finish(req Request, c completion) (*Response, error) {
	content := json.RawMessage(c.text)
	if req.Schema != nil {
		content = json.RawMessage(stripFence(c.text))
	}
	if c.stop == StopMaxTokens {
		return nil, &ErrMaxTokensExceeded{Content: content}
	}
	if err := validateResponse(req.Schema, content); err != nil {
		return nil, err
	}
	if c.stop == "" {
		c.stop = StopEnd
	}
	return &Response{
		Content: content,
		Usage:   c.usage,
		Model:   c.model,
		Stop:    c.stop,
	}, nil
}

// stripFence removes a markdown code fence around a JSON document. Gateway
// models without a native JSON mode often add one.
func stripFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:] // drop the language tag line
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

// resolveModel maps a configured alias to a backend model ID. Unknown names
// are passed through so full IDs work too.
func resolveModel(name string, aliases map[string]string) string {
	if id, ok := aliases[name]; ok {
		return id
	}
	return name
}
