package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var pipelinePath string

var rootCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Entity resolution over record collections",
	Long: `dedupe resolves duplicate records in JSONL, CSV, or SQLite inputs.

A pipeline definition file (YAML) configures comparators, blocking,
and clustering. See the run and eval commands for usage.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&pipelinePath, "pipeline", "p", "pipeline.yaml",
		"path to the pipeline definition file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
