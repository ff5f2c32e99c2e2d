package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/metalagman/taskgraph/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a taskgraph workspace",
		Long:  "Initialize a taskgraph workspace by creating the .taskgraph directory, installing a default config and migrating the database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			root := workingDir()
			configPath := cfgFile
			if configPath == "" {
				configPath = defaultConfigPath
			}
			if !filepath.IsAbs(configPath) {
				configPath = filepath.Join(root, configPath)
			}

			log.Info().Str("dir", filepath.Dir(configPath)).Msg("creating taskgraph directory")
			if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
				return fmt.Errorf("create config dir: %w", err)
			}

			if _, err := os.Stat(configPath); err == nil {
				log.Info().Str("path", configPath).Msg("config already exists, skipping")
			} else {
				log.Info().Str("path", configPath).Msg("installing default config")
				data, err := defaultConfigYAML()
				if err != nil {
					return err
				}
				if err := os.WriteFile(configPath, data, 0o644); err != nil {
					return fmt.Errorf("write default config: %w", err)
				}
			}

			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			database, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "taskgraph initialized successfully")
			return nil
		},
	}
}

func defaultConfigYAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(config.DefaultDocument()); err != nil {
		return nil, fmt.Errorf("marshal default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal default config: %w", err)
	}
	return buf.Bytes(), nil
}
