package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeConsole(t *testing.T) {
	require.NoError(t, Initialize(false))
	assert.False(t, JSONOutput)
	assert.NotNil(t, Logger)
}

func TestInitializeJSON(t *testing.T) {
	require.NoError(t, Initialize(true))
	assert.True(t, JSONOutput)
	assert.NotNil(t, Logger)
}

func TestHelpersSafeBeforeInitialize(t *testing.T) {
	// The package-level helpers must never panic, even against the
	// no-op logger installed at load time.
	assert.NotPanics(t, func() {
		Infow("info", "k", "v")
		Infof("info %d", 1)
		Warnw("warn")
		Errorw("error", "k", "v")
		Debugw("debug")
		Cleanup()
	})
}
