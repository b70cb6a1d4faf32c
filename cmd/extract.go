package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"docextract/pkg/document"
)

var (
	formatTag  string
	jsonOutput bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract the text of a single file to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		eng := buildEngine(cfg)
		doc, err := eng.Extract(cmd.Context(), document.NewSourceFile(filepath.Base(args[0]), formatTag, data))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		}
		if doc.Empty() {
			return fmt.Errorf("no text extracted from %s", args[0])
		}
		_, err = fmt.Fprintln(out, doc.Content)
		return err
	},
}

func init() {
	extractCmd.Flags().StringVar(&formatTag, "format", "", "Format tag, defaults to the file extension")
	extractCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full document with metadata and provenance")
}
