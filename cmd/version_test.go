package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd_PrintsInfo(t *testing.T) {
	out, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "CollabFlow CLI version: "+version)
	assert.Contains(t, out, "Go version:")
	assert.Contains(t, out, "Platform:")
}

func TestVersionCmd_SkipsSetup(t *testing.T) {
	t.Setenv("COLLABFLOW_API_URL", "not a url")
	_, err := runCLI(t, "", "version")
	assert.NoError(t, err, "version works without a valid configuration")
	assert.Nil(t, env)
}
