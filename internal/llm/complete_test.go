package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"padded", "\n  {\"a\":1}  \n", `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```\n", `{"a":1}`},
		{"one line", "```{\"a\":1}```", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFence(tt.in))
		})
	}
}

func TestFinish(t *testing.T) {
	t.Run("defaults stop reason", func(t *testing.T) {
		resp, err := finish(Request{}, completion{text: "plain text", model: "m"})
		require.NoError(t, err)
		assert.Equal(t, StopEnd, resp.Stop)
		assert.Equal(t, "plain text", string(resp.Content))
	})

	t.Run("fence kept without schema", func(t *testing.T) {
		resp, err := finish(Request{}, completion{text: "```\nx\n```"})
		require.NoError(t, err)
		assert.Equal(t, "```\nx\n```", string(resp.Content))
	})

	t.Run("truncation beats validation", func(t *testing.T) {
		_, err := finish(Request{Schema: verdictSchema}, completion{text: `{"sco`, stop: StopMaxTokens})
		var target *ErrMaxTokensExceeded
		require.ErrorAs(t, err, &target)
		assert.Equal(t, `{"sco`, string(target.Content))
	})

	t.Run("schema enforced", func(t *testing.T) {
		_, err := finish(Request{Schema: verdictSchema}, completion{text: `{"score":1}`})
		var target *ErrInvalidResponse
		assert.ErrorAs(t, err, &target)
	})
}
