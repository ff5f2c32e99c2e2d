package main

import (
	"path/filepath"

	"github.com/metalagman/taskgraph/internal/config"
	"github.com/spf13/viper"
)

// loadConfig reads the config named by --config. Relative paths, including
// database.path, resolve against root.
func loadConfig(root string) (config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		path = defaultConfigPath
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	cfg, err := config.Load(viper.New(), path)
	if err != nil {
		return config.Config{}, err
	}
	if !filepath.IsAbs(cfg.Database.Path) {
		cfg.Database.Path = filepath.Join(root, cfg.Database.Path)
	}
	return cfg, nil
}
