package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	logger, sync, err := New("debug", true)
	require.NoError(t, err)
	require.NotNil(t, logger)
	sync()

	_, _, err = New("loud", false)
	assert.Error(t, err)
}
