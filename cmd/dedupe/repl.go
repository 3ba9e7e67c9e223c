package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/recordkit/dedupe/internal/dedupe"
	"github.com/recordkit/dedupe/internal/score"
	"github.com/recordkit/dedupe/internal/source"
	"github.com/recordkit/dedupe/internal/types"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive pipeline inspection",
	Long: `Start an interactive session for inspecting pipeline results:
load an input file, run the pipeline, and drill into clusters and
their pairwise scores. Type help inside the session for commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadPipeline(pipelinePath)
		if err != nil {
			return err
		}
		session, err := newSession(cfg)
		if err != nil {
			return err
		}
		return session.run(context.Background())
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}

// session holds the state of one interactive inspection session.
type session struct {
	cfg     dedupe.Config
	d       *dedupe.Deduplicator
	records []map[string]any
	result  *dedupe.Result
}

func newSession(cfg dedupe.Config) (*session, error) {
	d, err := dedupe.New(cfg)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, d: d}, nil
}

func (s *session) run(ctx context.Context) error {
	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("dedupe> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("Interactive inspection session. Type help for commands.")

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := s.dispatch(ctx, line); err != nil {
			if err == io.EOF {
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s %v\n", red("Error:"), err)
		}
	}
}

func (s *session) dispatch(ctx context.Context, line string) error {
	parts := strings.Fields(line)
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "help":
		return s.cmdHelp()
	case "load":
		return s.cmdLoad(ctx, args)
	case "run":
		return s.cmdRun(ctx, args)
	case "list":
		return s.cmdList()
	case "show":
		return s.cmdShow(args)
	case "pairs":
		return s.cmdPairs(ctx, args)
	case "compare":
		return s.cmdCompare(ctx, args)
	case "exit", "quit":
		return io.EOF
	default:
		return fmt.Errorf("unknown command %q, type help", cmd)
	}
}

func (s *session) cmdHelp() error {
	fmt.Println(`Commands:
  load <path> [table]   load records from a JSONL, CSV, or SQLite file
  run [threshold]       run the pipeline over the loaded records
  list                  list resolved clusters
  show <n>              show the members of cluster n
  pairs <n>             show per-attribute pair scores inside cluster n
  compare <attr> <i> <j>  score one attribute of records i and j
  exit                  leave the session`)
	return nil
}

func (s *session) cmdLoad(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: load <path> [table]")
	}
	table := ""
	if len(args) > 1 {
		table = args[1]
	}
	records, err := source.Read(ctx, args[0], table)
	if err != nil {
		return err
	}
	s.records = records
	s.result = nil
	fmt.Printf("Loaded %d records from %s\n", len(records), args[0])
	return nil
}

func (s *session) cmdRun(ctx context.Context, args []string) error {
	if s.records == nil {
		return fmt.Errorf("no records loaded, use load first")
	}
	opts := dedupe.RunOptions{}
	if len(args) > 0 {
		threshold, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid threshold %q: %w", args[0], err)
		}
		opts.SimilarityThreshold = &threshold
	}
	result, err := s.d.RunWithOptions(ctx, s.records, opts)
	if err != nil {
		return err
	}
	s.result = result

	st := result.Stats
	fmt.Printf("%d records, %d blocks, %d pairs scored, %d clusters, %d singletons\n",
		st.Records, st.Blocks, st.PairsScored, st.Clusters, st.Singletons)
	return nil
}

func (s *session) cmdList() error {
	if s.result == nil {
		return fmt.Errorf("no results yet, use run first")
	}
	yellow := color.New(color.FgYellow).SprintFunc()
	for i, c := range s.result.Clusters {
		fmt.Printf("%s members=%v\n", yellow(fmt.Sprintf("[%d]", i)), c.MemberIDs())
	}
	if len(s.result.Clusters) == 0 {
		fmt.Println("no clusters")
	}
	return nil
}

func (s *session) cluster(args []string) (types.Cluster, error) {
	if s.result == nil {
		return types.Cluster{}, fmt.Errorf("no results yet, use run first")
	}
	if len(args) != 1 {
		return types.Cluster{}, fmt.Errorf("expected a cluster number")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 || n >= len(s.result.Clusters) {
		return types.Cluster{}, fmt.Errorf("no cluster %q", args[0])
	}
	return s.result.Clusters[n], nil
}

func (s *session) cmdShow(args []string) error {
	c, err := s.cluster(args)
	if err != nil {
		return err
	}
	for _, m := range c.Members {
		fmt.Printf("  [%d] %s\n", m.ID, formatRecord(m))
	}
	return nil
}

func (s *session) cmdPairs(ctx context.Context, args []string) error {
	c, err := s.cluster(args)
	if err != nil {
		return err
	}

	attrs := s.cfg.Comparators.Attributes()
	agg, err := score.NewAggregator(s.cfg.Aggregation, attrs, s.cfg.Weights)
	if err != nil {
		return err
	}
	scorer := score.NewScorer(s.cfg.Comparators, agg, 0, s.cfg.Logger)

	gray := color.New(color.FgHiBlack).SprintFunc()
	for i := 0; i < len(c.Members)-1; i++ {
		for j := i + 1; j < len(c.Members); j++ {
			ps, err := scorer.ScorePair(ctx, c.Members[i], c.Members[j])
			if err != nil {
				return err
			}
			scores := make([]float64, len(attrs))
			for k, attr := range attrs {
				scores[k] = ps.Scores[attr]
			}
			fmt.Printf("  (%d, %d) %.4f\n", ps.A, ps.B, agg(attrs, scores))
			for _, attr := range attrs {
				fmt.Printf("    %s %.4f\n", gray(attr), ps.Scores[attr])
			}
		}
	}
	return nil
}

func (s *session) cmdCompare(ctx context.Context, args []string) error {
	if s.records == nil {
		return fmt.Errorf("no records loaded, use load first")
	}
	if len(args) != 3 {
		return fmt.Errorf("usage: compare <attribute> <i> <j>")
	}
	attr := args[0]
	cmp, ok := s.cfg.Comparators.Lookup(attr)
	if !ok {
		return fmt.Errorf("no comparator configured for %q", attr)
	}

	var recs [2]types.Record
	for k, arg := range args[1:] {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 || n >= len(s.records) {
			return fmt.Errorf("no record %q", arg)
		}
		recs[k] = types.NewRecord(n, s.records[n])
	}
	va, okA := recs[0].Get(attr)
	vb, okB := recs[1].Get(attr)
	if !okA || !okB {
		return fmt.Errorf("attribute %q missing on one of the records", attr)
	}

	v, err := cmp.Score(ctx, va, vb)
	if err != nil {
		return err
	}
	fmt.Printf("  %v vs %v: %.4f\n", va, vb, v)
	return nil
}
