package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Report which optional external tools are available",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		caps := buildCapabilities(cfg)
		bins := cfg.Binaries()

		ok := color.New(color.FgGreen).SprintFunc()
		missing := color.New(color.FgRed).SprintFunc()
		for _, tool := range caps.ProbeAll(cmd.Context()) {
			status := missing("missing")
			if caps.Has(cmd.Context(), tool) {
				status = ok("available")
			}
			bin := bins[tool]
			if bin == "" {
				bin = string(tool)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-9s %s\n", tool, status, bin)
		}
		return nil
	},
}
