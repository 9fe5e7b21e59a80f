package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/acheong08/pyextras/internal/baseline"
	"github.com/acheong08/pyextras/internal/extras"
	"github.com/acheong08/pyextras/internal/index"
	"github.com/acheong08/pyextras/internal/parser"
	"github.com/acheong08/pyextras/internal/report"
	"github.com/acheong08/pyextras/pkg/models"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Audit the extras of a pyproject.toml",
	Long:  "Build the extras graph of a pyproject.toml and report undefined extras, cycles, an incomplete `all` extra, missing metadata and other problems. Exits non-zero when any error is found.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		lockPath, _ := cmd.Flags().GetString("lock")
		useIndex, _ := cmd.Flags().GetBool("index")
		indexURL, _ := cmd.Flags().GetString("index-url")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		baselinePath, _ := cmd.Flags().GetString("baseline")
		verbose, _ := cmd.Flags().GetBool("verbose")
		noColor, _ := cmd.Flags().GetBool("no-color")

		log, err := newLogger(cmd)
		if err != nil {
			return err
		}
		defer log.Sync()

		manifest, graph, err := loadGraph(cmd)
		if err != nil {
			return err
		}

		checker := extras.NewChecker(checkerOptions(cmd, manifest.Tool)...)
		rep := checker.CheckGraph(manifest, graph)

		if lockPath != "" {
			lock, err := parser.ParseUvLock(lockPath)
			if err != nil {
				return err
			}
			rep.Add(extras.CheckLock(graph, lock)...)
		}

		if useIndex {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			client := index.NewClient(indexURL)
			client.Concurrency = concurrency
			client.Logger = log

			bar := newLookupBar(os.Stderr)
			findings, err := client.CheckGraph(ctx, graph, bar.Progress)
			if err != nil {
				bar.Exit()
				return err
			}
			bar.Finish()
			rep.Add(findings...)
		}
		rep.Filter(checker.Ignore)

		opts := report.Options{NoColor: noColor, Verbose: verbose}
		if baselinePath != "" {
			base, err := baseline.LoadBaseline(baselinePath)
			if err != nil {
				return err
			}
			deduped := baseline.Dedup(rep, base)
			rep = deduped.Report
			opts.Suppressed = deduped.Removed
			log.Infow("baseline applied", "baseline", deduped.BaselineSource, "removed", deduped.Removed)
		}

		if err := report.Render(cmd.OutOrStdout(), rep, report.Format(format), opts); err != nil {
			return err
		}
		if rep.HasErrors() {
			return errCheckFailed
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().String("format", "text", "Output format: text or json")
	checkCmd.Flags().String("lock", "", "Compare against a uv.lock")
	checkCmd.Flags().Bool("index", false, "Look up external requirements on the package index")
	checkCmd.Flags().String("index-url", index.DefaultBaseURL, "Base URL of a PyPI-compatible JSON API")
	checkCmd.Flags().IntP("concurrency", "c", 8, "Maximum concurrent index requests")
	checkCmd.Flags().String("baseline", "", "JSON report whose findings are suppressed")
	checkCmd.Flags().String("all-group", "", "Extra expected to aggregate every other extra (default: all)")
	checkCmd.Flags().StringSlice("all-exclude", nil, "Extras left out of the aggregate comparison")
	checkCmd.Flags().StringSlice("ignore", nil, "Rule IDs to drop from the report")
	checkCmd.Flags().BoolP("verbose", "v", false, "Also print the closure of every extra")
}

// checkerOptions layers command flags over [tool.pyextras]
func checkerOptions(cmd *cobra.Command, tool models.ToolConfig) []extras.Option {
	opts := extras.ToolOptions(tool)
	if cmd.Flags().Changed("all-group") {
		v, _ := cmd.Flags().GetString("all-group")
		opts = append(opts, extras.WithAllGroup(v))
	}
	if cmd.Flags().Changed("all-exclude") {
		v, _ := cmd.Flags().GetStringSlice("all-exclude")
		opts = append(opts, extras.WithAllExclude(v...))
	}
	if cmd.Flags().Changed("ignore") {
		v, _ := cmd.Flags().GetStringSlice("ignore")
		opts = append(opts, extras.WithIgnore(v...))
	}
	return opts
}

// lookupBar draws index lookup progress. The bar is created on the first
// callback, once the total is known.
type lookupBar struct {
	w    io.Writer
	once sync.Once
	bar  *progressbar.ProgressBar
}

func newLookupBar(w io.Writer) *lookupBar {
	return &lookupBar{w: w}
}

// Progress is an index.ProgressFunc. It may be called concurrently.
func (b *lookupBar) Progress(done, total int, name string) {
	b.once.Do(func() {
		b.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(b.w),
			progressbar.OptionSetDescription("Looking up packages"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	})
	_ = b.bar.Add(1)
}

// Finish completes the bar after every lookup has returned
func (b *lookupBar) Finish() {
	if b.bar != nil {
		_ = b.bar.Finish()
	}
}

// Exit stops the bar where it is
func (b *lookupBar) Exit() {
	if b.bar != nil {
		_ = b.bar.Exit()
	}
}

// writeFile is used by commands that can save their output
func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
