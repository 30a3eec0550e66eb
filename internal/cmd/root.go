package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for fileloop
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fileloop",
		Short: "Concurrent batch processing of files with Claude Code",
		Long: `fileloop applies a prompt to every file in an input set by driving
Claude Code CLI agents in parallel, verifying each file's changes and
retrying failed verifications with fixup prompts.

Progress is persisted after every state change, so an interrupted or
crashed run can be resumed exactly where it left off.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	// Add subcommands
	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewResumeCommand())
	cmd.AddCommand(NewTasksCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
