package rules

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/blockscan/internal/config"
	internalrules "github.com/scan-io-git/blockscan/internal/rules"
)

// NewRulesCmd creates the command listing the rules a check would run.
func NewRulesCmd(cfg func() *config.Config) *cobra.Command {
	var (
		selected []string
		disabled []string
		verbose  bool
	)
	cmd := &cobra.Command{
		Use:                   "rules [--select IDS] [--disable IDS] [--verbose]",
		Short:                 "List the blocking call rules",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			if !cmd.Flags().Changed("select") {
				selected = c.Analysis.Select
			}
			if !cmd.Flags().Changed("disable") {
				disabled = c.Analysis.Disable
			}
			registry, err := internalrules.Default().Filter(selected, disabled)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, rule := range registry.Rules() {
				fmt.Fprintf(tw, "%s\t%s\n", rule.ID(), rule.Description())
				if verbose {
					fmt.Fprintf(tw, "\tFix: %s\n", rule.Fix())
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringSliceVar(&selected, "select", nil, "Only list these rule ids")
	cmd.Flags().StringSliceVar(&disabled, "disable", nil, "Leave out these rule ids")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Also print the suggested fix of each rule")
	return cmd
}
