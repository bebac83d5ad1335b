package gen

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/luma/exar/internal/meta"
)

var manDir string

var ManPagesCmd = &cobra.Command{
	Use:   "man",
	Short: "Write a man page for every exar command",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return WriteManPages(cmd.Root(), manDir, meta.GetInfo(), cmd.OutOrStdout())
	},
}

var markdownDir string

var MarkdownCmd = &cobra.Command{
	Use:   "markdown",
	Short: "Write a markdown page for every exar command",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeTree(cmd.Root(), markdownDir, cmd.OutOrStdout(), doc.GenMarkdownTree)
	},
}

// WriteManPages writes section 1 man pages for root and every command below
// it into dir, creating dir when missing. Progress goes to out.
func WriteManPages(root *cobra.Command, dir string, info meta.Info, out io.Writer) error {
	header := &doc.GenManHeader{
		Title:   "EXAR",
		Section: "1",
		Manual:  "Exar Manual",
		Source:  "exar " + info.Version,
	}

	return writeTree(root, dir, out, func(root *cobra.Command, dir string) error {
		return doc.GenManTree(root, header, dir)
	})
}

func writeTree(root *cobra.Command, dir string, out io.Writer, gen func(*cobra.Command, string) error) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	// Generated pages should not change between runs
	root.DisableAutoGenTag = true

	if err := gen(root, dir); err != nil {
		return fmt.Errorf("generating pages in %s: %w", dir, err)
	}

	fmt.Fprintln(out, "Wrote", dir)
	return nil
}

func init() {
	ManPagesCmd.Flags().StringVar(&manDir, "dir", "man", "the directory to write the man pages to")
	MarkdownCmd.Flags().StringVar(&markdownDir, "dir", "docs", "the directory to write the markdown pages to")

	for _, cmd := range []*cobra.Command{ManPagesCmd, MarkdownCmd} {
		if err := cmd.MarkFlagDirname("dir"); err != nil {
			panic(err)
		}
	}
}
