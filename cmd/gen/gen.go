package gen

import (
	"github.com/spf13/cobra"
)

// RootCmd groups the generators that derive files from the exar command
// tree.
var RootCmd = &cobra.Command{
	Use:    "gen",
	Short:  "Generate documentation for the exar command",
	Long:   `Generate documentation for the exar command`,
	Hidden: true,
}

func init() {
	RootCmd.AddCommand(ManPagesCmd, MarkdownCmd)
}
