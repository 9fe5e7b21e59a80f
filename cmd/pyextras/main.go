package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/acheong08/pyextras/internal/extras"
	"github.com/acheong08/pyextras/internal/logger"
	"github.com/acheong08/pyextras/internal/parser"
	"github.com/acheong08/pyextras/pkg/models"
)

// errCheckFailed makes the process exit non-zero without printing again
var errCheckFailed = errors.New("check failed")

var rootCmd = &cobra.Command{
	Use:           "pyextras",
	Short:         "Audit the optional-dependency extras of a pyproject.toml",
	Long:          "Check that every extra referenced by a pyproject.toml is defined, that extras do not reference each other in a cycle, that the `all` extra covers every other extra, and that the required metadata is present.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("file", "f", "", "Path to pyproject.toml (default: ./pyproject.toml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level for diagnostics on stderr")

	rootCmd.AddCommand(checkCmd, graphCmd, closureCmd, lockCmd)
}

// newLogger builds the console logger for a command
func newLogger(cmd *cobra.Command) (*zap.SugaredLogger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	return logger.New(level, "console")
}

// loadManifest parses the file named by --file, or ./pyproject.toml
func loadManifest(cmd *cobra.Command) (*models.Manifest, error) {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path, err = parser.FindPyproject(cwd)
		if err != nil {
			return nil, err
		}
	}

	manifest, err := parser.ParsePyproject(path)
	if err != nil {
		return nil, err
	}
	if rel, err := filepath.Rel(mustGetwd(), path); err == nil {
		manifest.Path = rel
	}
	return manifest, nil
}

// loadGraph parses the manifest and builds its extras graph
func loadGraph(cmd *cobra.Command) (*models.Manifest, *models.ExtrasGraph, error) {
	manifest, err := loadManifest(cmd)
	if err != nil {
		return nil, nil, err
	}
	return manifest, extras.Build(manifest), nil
}

func mustGetwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errCheckFailed) {
			color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
