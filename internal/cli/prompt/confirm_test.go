package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmWithForceSkipsPrompt(t *testing.T) {
	// With force set there must be no terminal interaction at all.
	ok, err := ConfirmWithForce("remove it", true)
	require.NoError(t, err)
	assert.True(t, ok)
}
