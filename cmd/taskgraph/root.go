package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/metalagman/taskgraph/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var defaultConfigPath = filepath.Join(".taskgraph", "config.yaml")

var (
	cfgFile string
	workDir string
	debug   bool
	logJSON bool
)

// Execute runs the root command.
func Execute() error {
	cmd, err := newRootCmd()
	if err != nil {
		return err
	}
	return cmd.Execute()
}

func newRootCmd() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:           "taskgraph",
		Short:         "taskgraph tracks tasks and the dependencies between them",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(cmd.ErrOrStderr(), debug, logJSON)
			if err := godotenv.Load(filepath.Join(workingDir(), ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			return nil
		},
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", defaultConfigPath, "config file path")
	flags.StringVarP(&workDir, "chdir", "C", "", "run as if taskgraph was started in this directory")
	flags.BoolVar(&debug, "debug", false, "enable debug logging")
	flags.BoolVar(&logJSON, "log-json", false, "write logs as JSON lines")
	if err := viper.BindPFlag("config", flags.Lookup("config")); err != nil {
		return nil, fmt.Errorf("bind config flag: %w", err)
	}

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(graphCmd())
	return rootCmd, nil
}

// workingDir returns the directory relative paths are resolved against.
func workingDir() string {
	if workDir != "" {
		return workDir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
}
