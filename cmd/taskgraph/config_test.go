package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func TestDefaultConfigYAML_IsLoadable(t *testing.T) {
	repoRoot := t.TempDir()
	data, err := defaultConfigYAML()
	require.NoError(t, err)
	require.NoError(t, writeTestFile(filepath.Join(repoRoot, defaultConfigPath), data))

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("config", defaultConfigPath)

	cfg, err := loadConfig(repoRoot)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(repoRoot, ".taskgraph", "taskgraph.db"), cfg.Database.Path)
}

func TestLoadConfig_KeepsAbsoluteDatabasePath(t *testing.T) {
	repoRoot := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "elsewhere.db")
	require.NoError(t, writeTestFile(filepath.Join(repoRoot, "custom.yaml"), []byte("database:\n  path: "+dbPath+"\n")))

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("config", "custom.yaml")

	cfg, err := loadConfig(repoRoot)
	require.NoError(t, err)
	assert.Equal(t, dbPath, cfg.Database.Path)
}
