package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("REMOTE_BACKEND", "memory")
	t.Setenv("PREFS_BACKEND", "memory")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := LoadAndValidateConfig()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.RemoteBackend)

	logger := SetupLogger(cfg)
	assert.NotNil(t, logger)

	t.Setenv("BROWSE_MODE", "alphabetical")
	_, err = LoadAndValidateConfig()
	assert.ErrorContains(t, err, "invalid browse mode")
}
