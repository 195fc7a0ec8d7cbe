package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pixelforge/alttext/captioner"
)

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{}, nil, nil, zap.NewNop().Sugar())
	var cfgErr *captioner.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestNewRateLimitConfiguration(t *testing.T) {
	c, err := New(Config{APIKey: "sk-test", RequestsPerMinute: 5}, nil, nil, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Equal(t, 5, c.(*openai).rl.rate)

	c, err = New(Config{APIKey: "sk-test"}, nil, nil, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Equal(t, defaultRequestsPerMinute, c.(*openai).rl.rate)
}
