package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/recordkit/dedupe/internal/dedupe"
	"github.com/recordkit/dedupe/internal/source"
	"github.com/recordkit/dedupe/internal/types"
)

var (
	runTable      string
	runThreshold  float64
	runSingletons bool
	runJSON       bool
)

var runCmd = &cobra.Command{
	Use:   "run <input>",
	Short: "Resolve duplicates in an input file",
	Long: `Run the configured pipeline over an input file and print the
resolved clusters.

The input format is chosen by extension: .jsonl/.ndjson for JSON lines,
.csv for CSV, .db/.sqlite/.sqlite3 for SQLite (requires --table).

Example:
  dedupe run customers.jsonl
  dedupe run customers.db --table customers --threshold 0.8 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		cfg, err := loadPipeline(pipelinePath)
		if err != nil {
			return err
		}
		if runSingletons {
			cfg.IncludeSingletons = true
		}

		d, err := dedupe.New(cfg)
		if err != nil {
			return err
		}

		records, err := source.Read(ctx, args[0], runTable)
		if err != nil {
			return err
		}

		opts := dedupe.RunOptions{}
		if cmd.Flags().Changed("threshold") {
			opts.SimilarityThreshold = &runThreshold
		}

		result, err := d.RunWithOptions(ctx, records, opts)
		if err != nil {
			return err
		}

		if runJSON {
			return printJSON(result)
		}
		printClusters(result)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runTable, "table", "", "table name for SQLite inputs")
	runCmd.Flags().Float64Var(&runThreshold, "threshold", 0, "override the similarity threshold for this run")
	runCmd.Flags().BoolVar(&runSingletons, "singletons", false, "report unclustered records as clusters of one")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "emit machine-readable JSON instead of text")
	rootCmd.AddCommand(runCmd)
}

func printClusters(result *dedupe.Result) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan("=== Resolved Clusters ==="))

	if len(result.Clusters) == 0 {
		fmt.Printf("  %s\n", gray("No clusters found"))
	}
	for _, c := range result.Clusters {
		fmt.Printf("%s %s\n", yellow(fmt.Sprintf("Cluster %v", c.MemberIDs())), gray(c.ID))
		for _, m := range c.Members {
			fmt.Printf("  [%d] %s\n", m.ID, formatRecord(m))
		}
		fmt.Println()
	}

	s := result.Stats
	fmt.Printf("%s %d records, %d blocks, %d sub-blocks, %d pairs scored, %d clusters, %d singletons\n",
		gray("Stats:"), s.Records, s.Blocks, s.SubBlocks, s.PairsScored, s.Clusters, s.Singletons)
}

func formatRecord(rec types.Record) string {
	data, err := json.Marshal(rec.Attrs)
	if err != nil {
		return fmt.Sprintf("%v", rec.Attrs)
	}
	return string(data)
}

type jsonCluster struct {
	ID      string       `json:"id"`
	Members []jsonMember `json:"members"`
}

type jsonMember struct {
	Index int            `json:"index"`
	Attrs map[string]any `json:"attrs"`
}

func printJSON(result *dedupe.Result) error {
	out := make([]jsonCluster, 0, len(result.Clusters))
	for id, members := range result.All() {
		jc := jsonCluster{ID: id}
		for _, m := range members {
			jc.Members = append(jc.Members, jsonMember{Index: m.ID, Attrs: m.Attrs})
		}
		out = append(out, jc)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
