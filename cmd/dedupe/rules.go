package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/recordkit/dedupe/internal/blocking"
	"github.com/recordkit/dedupe/internal/dedupe"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Show the configured blocking rule",
	Long: `Parse the pipeline definition and print the blocking rule it
materializes, after validation. Useful to check that a YAML rule tree
composes the way you intended.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadPipeline(pipelinePath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		printRule(cfg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}

func printRule(cfg dedupe.Config) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan("=== Blocking ==="))
	switch {
	case cfg.BlockingRule != nil:
		fmt.Printf("  %s\n", cfg.BlockingRule)
	case len(cfg.BlockingAttributes) > 0:
		fmt.Printf("  %s\n", blocking.Attributes(cfg.BlockingAttributes...))
	default:
		fmt.Printf("  %s\n", gray("none: every record pair is compared"))
	}
	fmt.Println()
}
