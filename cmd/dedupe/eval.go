package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/recordkit/dedupe/internal/dedupe"
	"github.com/recordkit/dedupe/internal/metrics"
	"github.com/recordkit/dedupe/internal/source"
	"github.com/recordkit/dedupe/internal/types"
)

var (
	evalTable    string
	evalGoldAttr string
)

var evalCmd = &cobra.Command{
	Use:   "eval <input>",
	Short: "Score pipeline quality against labelled data",
	Long: `Run the configured pipeline over a labelled input file and report
pairwise precision, recall, and F1.

The gold clustering is derived from --gold-attr: records sharing the
same value of that attribute are true duplicates. Records missing the
attribute are treated as singletons.

Example:
  dedupe eval labelled.csv --gold-attr entity_id`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		cfg, err := loadPipeline(pipelinePath)
		if err != nil {
			return err
		}
		d, err := dedupe.New(cfg)
		if err != nil {
			return err
		}

		raw, err := source.Read(ctx, args[0], evalTable)
		if err != nil {
			return err
		}

		result, err := d.Run(ctx, raw)
		if err != nil {
			return err
		}

		gold := goldClusters(raw, evalGoldAttr)
		predicted := make([][]int, 0, len(result.Clusters))
		for _, c := range result.Clusters {
			predicted = append(predicted, c.MemberIDs())
		}

		report, err := metrics.Pairwise(gold, predicted)
		if err != nil {
			return err
		}

		printReport(report, result.Stats)
		return nil
	},
}

func init() {
	evalCmd.Flags().StringVar(&evalTable, "table", "", "table name for SQLite inputs")
	evalCmd.Flags().StringVar(&evalGoldAttr, "gold-attr", "entity_id", "attribute holding the true entity label")
	rootCmd.AddCommand(evalCmd)
}

// goldClusters groups record indices by their label attribute value.
func goldClusters(raw []map[string]any, attr string) [][]int {
	byLabel := make(map[string][]int)
	var labels []string
	for i, attrs := range raw {
		rec := types.NewRecord(i, attrs)
		label, ok := rec.GetString(attr)
		if !ok {
			continue
		}
		if _, seen := byLabel[label]; !seen {
			labels = append(labels, label)
		}
		byLabel[label] = append(byLabel[label], i)
	}

	var gold [][]int
	for _, label := range labels {
		if members := byLabel[label]; len(members) >= 2 {
			gold = append(gold, members)
		}
	}
	return gold
}

func printReport(report metrics.Report, stats dedupe.Stats) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan("=== Evaluation ==="))
	fmt.Printf("  Precision: %.4f\n", report.Precision)
	fmt.Printf("  Recall:    %.4f\n", report.Recall)
	fmt.Printf("  F1:        %.4f\n", report.F1)
	fmt.Println()
	fmt.Printf("  True positive pairs:  %d\n", report.TruePositives)
	fmt.Printf("  False positive pairs: %d\n", report.FalsePositives)
	fmt.Printf("  False negative pairs: %d\n", report.FalseNegatives)
	fmt.Println()
	fmt.Printf("%s %d records, %d pairs scored, %d clusters\n",
		gray("Stats:"), stats.Records, stats.PairsScored, stats.Clusters)
}
