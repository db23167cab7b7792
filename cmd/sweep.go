package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	appretention "tiksound/application/retention"
	"tiksound/domain/retention"
	"tiksound/infrastructure/logger"

	"github.com/spf13/cobra"
)

var sweepDryRun bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired files from the scratch directory",
	Long: `Run one retention sweep: every file in the scratch directory last modified
more than retention.window ago is deleted. The serve command does this on a
timer; this command is for cron jobs and manual cleanup.

Example:
  tiksound sweep
  tiksound sweep --dry-run`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "List expired files without deleting them")
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	log, err := setupLogger(cfg)
	if err != nil {
		return err
	}

	policy, err := retention.NewPolicy(cfg.Retention.Window)
	if err != nil {
		return err
	}
	comps := NewComponents(cfg, log)
	sweeper := appretention.NewSweeper(comps.Scratch, policy, appretention.WithLogger(logger.L().Named("retention")))

	return RunSweepWithDependencies(sweeper, time.Now(), sweepDryRun, DefaultOutput)
}

// RunSweepWithDependencies runs the sweep command with injected dependencies (for testing)
func RunSweepWithDependencies(sweeper *appretention.Sweeper, now time.Time, dryRun bool, out OutputWriter) error {
	if dryRun {
		expired, err := sweeper.Expired(now)
		if err != nil {
			return err
		}
		if len(expired) == 0 {
			fmt.Fprintln(out, "No expired files.")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FILE\tSIZE\tAGE")
		for _, e := range expired {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, formatBytes(e.Size), now.Sub(e.ModTime).Round(time.Second))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "%d file(s) would be deleted.\n", len(expired))
		return nil
	}

	result, err := sweeper.SweepOnce(now)
	if err != nil {
		return err
	}
	for _, f := range result.DeletedFiles {
		fmt.Fprintf(out, "Deleted %s (%s)\n", f.Name, formatBytes(f.Size))
	}
	fmt.Fprintf(out, "Deleted %d file(s), freed %s.\n", result.Count(), formatBytes(result.FreedBytes))
	logger.Info("manual sweep finished",
		logger.Int("deleted", result.Count()),
		logger.Int64("freed_bytes", result.FreedBytes),
		logger.Int("failed", result.Failed),
	)
	if result.Failed > 0 {
		return fmt.Errorf("%d file(s) could not be deleted", result.Failed)
	}
	return nil
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
