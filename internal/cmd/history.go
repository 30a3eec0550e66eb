package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/fileloop/internal/history"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [task-id]",
		Short: "Show recorded prompt, verify, and fixup attempts",
		Long: `Show the attempt history recorded while processing files.

Each prompt, verification, and fixup execution is one record. Without a
task id, attempts across all tasks are shown, newest first.

Examples:
  fileloop history
  fileloop history 4fa2c361-9a5e-4f0c-8d9f-2f1f6f6f0a11
  fileloop history --stats`,
		Args: cobra.MaximumNArgs(1),
		RunE: historyCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .fileloop/config.yaml)")
	cmd.Flags().String("history-db", "", "Path of the attempt history database")
	cmd.Flags().Int("limit", 50, "Maximum number of attempts to show")
	cmd.Flags().Bool("stats", false, "Aggregate success rates per step instead of listing attempts")

	return cmd
}

// historyCommand implements the history command logic
func historyCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadBaseConfig(cmd)
	if err != nil {
		return err
	}
	if db, _ := cmd.Flags().GetString("history-db"); db != "" {
		cfg.HistoryDB = db
	}

	hist, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer hist.Close()

	var taskID string
	if len(args) == 1 {
		taskID = args[0]
	}

	if stats, _ := cmd.Flags().GetBool("stats"); stats {
		return printStats(cmd, hist, taskID)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	attempts, err := hist.RecentAttempts(cmd.Context(), taskID, limit)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No attempts recorded.\n")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tTASK\tFILE\tSTEP\tATTEMPT\tRESULT\tDURATION")
	for _, a := range attempts {
		result := "ok"
		if !a.Success {
			result = "failed"
		}
		fmt.Fprintf(w, "%s\t%.8s\t%s\t%s\t%d\t%s\t%s\n",
			a.CreatedAt.Format("2006-01-02 15:04:05"), a.TaskID, a.FilePath,
			a.Step, a.Attempt, result, a.Duration.Round(time.Millisecond))
	}
	return w.Flush()
}

// printStats aggregates per-step outcomes.
func printStats(cmd *cobra.Command, hist *history.Store, taskID string) error {
	stats, err := hist.Stats(cmd.Context(), taskID)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No attempts recorded.\n")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tTOTAL\tSUCCEEDED\tRATE")
	for _, s := range stats {
		rate := 0.0
		if s.Total > 0 {
			rate = float64(s.Succeeded) / float64(s.Total) * 100
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%.0f%%\n", s.Step, s.Total, s.Succeeded, rate)
	}
	return w.Flush()
}
