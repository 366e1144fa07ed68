package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectPinsAPIVersion(t *testing.T) {
	c, err := Connect()
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, APIVersion, c.raw.ClientVersion())
}
