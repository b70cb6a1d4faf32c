package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var formatsCmd = &cobra.Command{
	Use:   "formats [tag...]",
	Short: "List accepted formats and the attempts tried for each",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		eng := buildEngine(cfg)

		tags := args
		if len(tags) == 0 {
			tags = eng.Formats()
		}
		for _, tag := range tags {
			p, err := eng.Pipeline(tag)
			if err != nil {
				return err
			}
			names := make([]string, len(p.Attempts))
			for i, a := range p.Attempts {
				names[i] = a.Name
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-6s %-12s %s\n", p.Format, p.Family, strings.Join(names, " -> "))
		}
		return nil
	},
}
