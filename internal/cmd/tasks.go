package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harrison/fileloop/internal/store"
)

// NewTasksCommand creates the tasks command
func NewTasksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List known tasks and their progress",
		Long: `List every task in the registry with its status and per-file progress.

Examples:
  fileloop tasks
  fileloop tasks --tasks-dir /srv/batch/.fileloop/tasks`,
		Args: cobra.NoArgs,
		RunE: tasksCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .fileloop/config.yaml)")
	cmd.Flags().String("tasks-dir", "", "Directory for task state records")

	return cmd
}

// tasksCommand implements the tasks command logic
func tasksCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadBaseConfig(cmd)
	if err != nil {
		return err
	}
	if dir, _ := cmd.Flags().GetString("tasks-dir"); dir != "" {
		cfg.TasksDir = dir
	}

	st, err := store.Open(cfg.TasksDir)
	if err != nil {
		return err
	}

	reg, err := st.LoadRegistry()
	if err != nil {
		return err
	}
	if len(reg.Tasks) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No tasks recorded in %s.\n", cfg.TasksDir)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tSTATUS\tPROGRESS\tCREATED\tDESCRIPTION")
	for _, entry := range reg.Tasks {
		progress := "-"
		if task, err := st.LoadTask(entry.TaskID); err == nil {
			s := task.Summarize()
			progress = fmt.Sprintf("%d/%d done, %d failed", s.Completed, s.Total, s.Failed)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			entry.TaskID, entry.Status, progress,
			entry.CreatedAt.Format("2006-01-02 15:04"), entry.Description)
	}
	return w.Flush()
}
