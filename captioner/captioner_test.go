package captioner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModel(t *testing.T) {
	tests := []struct {
		in       string
		provider string
		model    string
	}{
		{"openai/gpt-4.1", "openai", "gpt-4.1"},
		{"moondream/moondream-2b", "moondream", "moondream-2b"},
		{"ollama/llava:13b", "ollama", "llava:13b"},
		// Only the first slash splits; the rest belongs to the model name.
		{"mistral/pixtral/latest", "mistral", "pixtral/latest"},
	}
	for _, tt := range tests {
		provider, model, err := ParseModel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.provider, provider)
		assert.Equal(t, tt.model, model)
	}
}

func TestParseModelErrors(t *testing.T) {
	for _, in := range []string{"", "gpt-4.1", "openai/", "/gpt-4.1", "anthropic/claude"} {
		_, _, err := ParseModel(in)
		require.Error(t, err, in)
		var cfgErr *ConfigError
		assert.ErrorAs(t, err, &cfgErr, in)
	}
}

func TestSupportsMimeType(t *testing.T) {
	assert.True(t, SupportsMimeType("image/jpeg"))
	assert.True(t, SupportsMimeType("image/png"))
	assert.True(t, SupportsMimeType("image/webp"))
	assert.True(t, SupportsMimeType("image/avif"))
	assert.False(t, SupportsMimeType("image/svg+xml"))
	assert.False(t, SupportsMimeType("application/pdf"))
	assert.False(t, SupportsMimeType("text/html"))
	assert.False(t, SupportsMimeType(""))
}
