package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVerbosity(t *testing.T) {
	logger, err := New(false, DEBUG)
	require.NoError(t, err)

	assert.True(t, logger.V(DEFAULT).Enabled())
	assert.True(t, logger.V(DEBUG).Enabled())
	assert.False(t, logger.V(TRACE).Enabled())

	logger, err = New(true, DEFAULT)
	require.NoError(t, err)
	assert.False(t, logger.V(VERBOSE).Enabled())
}

func TestNewTestLogger(t *testing.T) {
	assert.True(t, NewTestLogger().V(TRACE).Enabled())
}
