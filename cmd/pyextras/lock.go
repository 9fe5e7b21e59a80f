package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/acheong08/pyextras/internal/extras"
	"github.com/acheong08/pyextras/internal/parser"
	"github.com/acheong08/pyextras/internal/report"
	"github.com/acheong08/pyextras/pkg/models"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Compare the extras with a uv.lock",
	Long:  "Report extras missing from a uv.lock, locked extras no longer declared and requirements with no locked package. Without --lock the uv.lock next to pyproject.toml is used; --generate runs `uv lock` in a scratch directory instead.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		lockPath, _ := cmd.Flags().GetString("lock")
		generate, _ := cmd.Flags().GetBool("generate")
		noColor, _ := cmd.Flags().GetBool("no-color")

		manifest, graph, err := loadGraph(cmd)
		if err != nil {
			return err
		}

		switch {
		case generate:
			if err := parser.ValidatePyproject(manifest.Path); err != nil {
				return err
			}
			lm := parser.NewLockfileManager()
			defer lm.Cleanup()
			lockPath, err = lm.GenerateLockfile(manifest.Path)
			if err != nil {
				return fmt.Errorf("failed to generate lockfile: %w", err)
			}
		case lockPath == "":
			lockPath = parser.FindUvLock(manifest.Path)
			if lockPath == "" {
				return fmt.Errorf("no uv.lock next to %s; pass --lock or --generate", manifest.Path)
			}
		}

		lock, err := parser.ParseUvLock(lockPath)
		if err != nil {
			return err
		}

		rep := &models.Report{
			ID:       uuid.NewString(),
			Project:  manifest.Project.Name,
			Version:  manifest.Project.Version,
			Path:     lockPath,
			Groups:   len(graph.Groups),
			Edges:    len(graph.Edges()),
			Findings: extras.CheckLock(graph, lock),
		}
		if rep.Findings == nil {
			rep.Findings = []models.Finding{}
		}
		return report.Render(cmd.OutOrStdout(), rep, report.Format(format), report.Options{NoColor: noColor})
	},
}

func init() {
	lockCmd.Flags().String("format", "text", "Output format: text or json")
	lockCmd.Flags().String("lock", "", "Path to uv.lock")
	lockCmd.Flags().Bool("generate", false, "Generate a fresh uv.lock with uv")
}
