// Package completion generates shell completion scripts for the CLI.
package completion

import (
	"fmt"

	"github.com/spf13/cobra"
)

var supportedShells = []string{"bash", "zsh", "fish", "powershell"}

// GetSupportedShells returns the shells a completion script can be generated for.
func GetSupportedShells() []string {
	return append([]string(nil), supportedShells...)
}

// GenerateCompletion writes the completion script for shell to the command's output.
func GenerateCompletion(cmd *cobra.Command, shell string) error {
	root := cmd.Root()
	out := cmd.OutOrStdout()

	var err error
	switch shell {
	case "bash":
		err = root.GenBashCompletionV2(out, true)
	case "zsh":
		err = root.GenZshCompletion(out)
	case "fish":
		err = root.GenFishCompletion(out, true)
	case "powershell":
		err = root.GenPowerShellCompletionWithDesc(out)
	default:
		return fmt.Errorf("unsupported shell %q (supported: %v)", shell, supportedShells)
	}
	if err != nil {
		return fmt.Errorf("failed to generate %s completion: %w", shell, err)
	}
	return nil
}
