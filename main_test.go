package main

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/sossim-go/utils/config"
)

func TestLoadConfigOverrides(t *testing.T) {
	cmd := rootCmd()
	data := base64.StdEncoding.EncodeToString([]byte("agent:\n  count: 3\nnetwork:\n  width: 6\n"))
	cmd.SetArgs([]string{"generate", "--config-data", data, "--ticks", "42", "--seed", "7", "-o", filepath.Join(t.TempDir(), "net.geojson")})
	require.NoError(t, cmd.Execute())

	gen, _, err := cmd.Find([]string{"generate"})
	require.NoError(t, err)
	opts := &options{configData: data, ticks: 42, seed: 7}
	c, err := loadConfig(gen, opts)
	require.NoError(t, err)
	assert.Equal(t, int32(42), c.Control.Step.Total)
	assert.Equal(t, uint64(7), c.Control.Seed)
	assert.Equal(t, int32(3), c.Agent.Count)
	assert.Equal(t, int32(6), c.Network.Width)
	// 未指定的项保持默认值
	assert.Equal(t, config.Default().Network.Height, c.Network.Height)
}

func TestLoadConfigRejectsUnknownField(t *testing.T) {
	cmd := rootCmd()
	data := base64.StdEncoding.EncodeToString([]byte("agent:\n  wings: 2\n"))
	cmd.SetArgs([]string{"generate", "--config-data", data})
	assert.Error(t, cmd.Execute())
}

func TestGenerate(t *testing.T) {
	out := filepath.Join(t.TempDir(), "net.geojson")
	cmd := rootCmd()
	cmd.SetArgs([]string{"generate", "--seed", "3", "-o", out, "--log.level", "warn"})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	assert.NotEmpty(t, fc.Features)
}

func TestRunWritesArchive(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("output:\n  dir: "+filepath.Join(dir, "out")+"\n"), 0o644))
	cmd := rootCmd()
	cmd.SetArgs([]string{"run", "--config", cfg, "--ticks", "5", "--agents", "2", "--log.level", "warn"})
	require.NoError(t, cmd.Execute())
	assert.FileExists(t, filepath.Join(dir, "out", "manifest.json"))
	assert.FileExists(t, filepath.Join(dir, "out", "configuration.yaml"))
}

func TestBadLogLevel(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"generate", "--log.level", "loud"})
	assert.Error(t, cmd.Execute())
}
