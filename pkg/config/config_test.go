package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/pkgrun/pkg/config"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_OverlaysYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkgrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataDir: /data\ncallTimeout: 5s\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data", cfg.DataDir)
	assert.Equal(t, 5*time.Second, cfg.CallTimeout)
	assert.Equal(t, config.Default().ListenAddr, cfg.ListenAddr)
}

func TestValidate_RejectsEmptyDataDir(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.CallTimeout = 0
	assert.Error(t, cfg.Validate())
}
