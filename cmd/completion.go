package cmd

import (
	"couchtransfer/internal/completion"

	"github.com/spf13/cobra"
)

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion script for couchtransfer.

The completion script supports bash, zsh, fish, and powershell.
To load completions in your current shell session:

Bash:
  $ source <(couchtransfer completion bash)

Zsh:
  $ source <(couchtransfer completion zsh)

Fish:
  $ couchtransfer completion fish | source

PowerShell:
  PS> couchtransfer completion powershell | Out-String | Invoke-Expression

To load completions for every new session, write to a file and source in your shell's config file e.g. ~/.bashrc or ~/.zshrc.`,
		ValidArgs: completion.GetSupportedShells(),
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return completion.GenerateCompletion(cmd, args[0])
		},
	}
}
