package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathYieldsNoOptions(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	opts, err := p.RunnerOptions()
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestLoadParsesLimitsAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preset.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
limits:
  maxIterations: 500
  maxRecursion: 20
  maxOutputSize: 4096
env:
  GREETING: hi
`), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, p.Limits)
	assert.Equal(t, 500, p.Limits.MaxIterations)
	assert.Equal(t, "hi", p.Env["GREETING"])

	opts, err := p.RunnerOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 2)
}
