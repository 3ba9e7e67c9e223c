package dedupe

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/recordkit/dedupe/internal/blocking"
	"github.com/recordkit/dedupe/internal/cluster"
	"github.com/recordkit/dedupe/internal/score"
	"github.com/recordkit/dedupe/internal/types"
)

// Deduplicator runs the full resolution pipeline: blocking, block
// splitting, pairwise scoring, per-sub-block clustering, and a final
// union-find merge across sub-blocks.
type Deduplicator struct {
	cfg       Config
	rule      *blocking.Rule // nil means a single all-records block
	splitter  blocking.Splitter
	clusterer cluster.Clusterer
	scorer    *score.Scorer
	workers   int
	log       *slog.Logger
}

// New builds a Deduplicator from cfg. All configuration errors surface
// here; Run only fails on context cancellation.
func New(cfg Config) (*Deduplicator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	agg, err := score.NewAggregator(cfg.Aggregation, cfg.Comparators.Attributes(), cfg.Weights)
	if err != nil {
		return nil, err
	}

	rule := cfg.BlockingRule
	if len(cfg.BlockingAttributes) > 0 {
		rule = blocking.Attributes(cfg.BlockingAttributes...)
	}

	splitter := cfg.Splitter
	if splitter == nil {
		splitter = blocking.Identity{}
	}

	clusterer := cfg.Clusterer
	if clusterer == nil {
		clusterer = cluster.DBSCAN{Eps: cfg.Eps, MinSamples: cfg.MinSamples}
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	return &Deduplicator{
		cfg:       cfg,
		rule:      rule,
		splitter:  splitter,
		clusterer: clusterer,
		scorer:    score.NewScorer(cfg.Comparators, agg, cfg.MaxPairsPerBlock, log),
		workers:   workers,
		log:       log,
	}, nil
}

// Stats summarizes one Run.
type Stats struct {
	Records     int
	Blocks      int
	SubBlocks   int
	PairsScored int
	Clusters    int
	Singletons  int
}

// Result holds the resolved clusters of one Run, ordered by ascending
// minimum member index.
type Result struct {
	Clusters []types.Cluster
	Stats    Stats
}

// All iterates over the clusters as (id, members) pairs in result order.
func (r *Result) All() iter.Seq2[string, []types.Record] {
	return func(yield func(string, []types.Record) bool) {
		for _, c := range r.Clusters {
			if !yield(c.ID, c.Members) {
				return
			}
		}
	}
}

// RunOptions carry per-invocation overrides on top of the configured
// defaults.
type RunOptions struct {
	// SimilarityThreshold, when non-nil, replaces the configured
	// threshold for this run only.
	SimilarityThreshold *float64
}

// Run resolves raw attribute maps. Record indices are positions in the
// input slice.
func (d *Deduplicator) Run(ctx context.Context, raw []map[string]any) (*Result, error) {
	return d.RunWithOptions(ctx, raw, RunOptions{})
}

// RunWithOptions is Run with per-invocation overrides.
func (d *Deduplicator) RunWithOptions(ctx context.Context, raw []map[string]any, opts RunOptions) (*Result, error) {
	records := make([]types.Record, len(raw))
	for i, attrs := range raw {
		records[i] = types.NewRecord(i, attrs)
	}
	return d.RunRecords(ctx, records, opts)
}

// subBlockResult is what one concurrently processed sub-block
// contributes to the merge phase.
type subBlockResult struct {
	// edges link records the clusterer put in the same local cluster.
	edges [][2]int
	pairs int
}

// RunRecords resolves already-constructed records. Record IDs must be
// unique; clusters are keyed by them.
func (d *Deduplicator) RunRecords(ctx context.Context, records []types.Record, opts RunOptions) (*Result, error) {
	threshold := d.cfg.SimilarityThreshold
	if opts.SimilarityThreshold != nil {
		threshold = *opts.SimilarityThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("similarity_threshold must be between 0.0 and 1.0 (got %g)", threshold)
	}

	blocks := d.buildBlocks(records)
	var subBlocks [][]types.Record
	for _, b := range blocks {
		subBlocks = append(subBlocks, d.splitter.Split(b.Records)...)
	}

	results, err := d.processSubBlocks(ctx, subBlocks, threshold)
	if err != nil {
		return nil, err
	}

	stats := Stats{
		Records:   len(records),
		Blocks:    len(blocks),
		SubBlocks: len(subBlocks),
	}

	// Merge is serialized: union-find is order-independent, so the
	// nondeterministic completion order of sub-blocks cannot change
	// the final partition.
	uf := cluster.NewUnionFind()
	for _, res := range results {
		stats.PairsScored += res.pairs
		for _, e := range res.edges {
			uf.Union(e[0], e[1])
		}
	}

	byID := make(map[int]types.Record, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	var groups [][]int
	for _, members := range uf.Sets() {
		if len(members) >= 2 {
			groups = append(groups, members)
		}
	}
	inGroup := make(map[int]bool)
	for _, g := range groups {
		for _, id := range g {
			inGroup[id] = true
		}
	}
	if d.cfg.IncludeSingletons {
		for _, rec := range records {
			if !inGroup[rec.ID] {
				groups = append(groups, []int{rec.ID})
			}
		}
	} else {
		stats.Singletons = len(records) - len(inGroup)
	}

	clusters := make([]types.Cluster, 0, len(groups))
	for _, g := range groups {
		sort.Ints(g)
		members := make([]types.Record, len(g))
		for i, id := range g {
			members[i] = byID[id]
		}
		clusters = append(clusters, types.Cluster{Members: members})
	}
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].MinMemberID() < clusters[j].MinMemberID()
	})
	for i := range clusters {
		clusters[i].ID = uuid.NewString()
	}

	stats.Clusters = len(clusters)
	if d.cfg.IncludeSingletons {
		stats.Singletons = len(records) - len(inGroup)
	}

	return &Result{Clusters: clusters, Stats: stats}, nil
}

// buildBlocks applies the configured blocking rule, or produces one
// block holding every record when no rule is set.
func (d *Deduplicator) buildBlocks(records []types.Record) []blocking.Block {
	if d.rule == nil {
		if len(records) == 0 {
			return nil
		}
		return []blocking.Block{{Key: "*", Records: records}}
	}
	return blocking.Build(records, d.rule)
}

// processSubBlocks fans sub-blocks out to the worker pool and collects
// their contributions. Only context cancellation aborts the run.
func (d *Deduplicator) processSubBlocks(ctx context.Context, subBlocks [][]types.Record, threshold float64) ([]subBlockResult, error) {
	sem := semaphore.NewWeighted(int64(d.workers))
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []subBlockResult
		runErr  error
	)

	for _, sb := range subBlocks {
		if len(sb) < 2 {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			runErr = err
			break
		}
		wg.Add(1)
		go func(recs []types.Record) {
			defer wg.Done()
			defer sem.Release(1)
			res, err := d.processSubBlock(ctx, recs, threshold)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if runErr == nil {
					runErr = err
				}
				return
			}
			results = append(results, res)
		}(sb)
	}
	wg.Wait()

	if runErr != nil {
		return nil, runErr
	}
	return results, nil
}

// processSubBlock scores a sub-block and clusters it locally. A failing
// clusterer degrades the sub-block to all-noise instead of aborting the
// run; the returned error is reserved for context cancellation.
func (d *Deduplicator) processSubBlock(ctx context.Context, recs []types.Record, threshold float64) (subBlockResult, error) {
	scores, err := d.scorer.ScoreBlock(ctx, recs)
	if err != nil {
		return subBlockResult{}, err
	}

	idx := make(map[int]int, len(recs))
	for i, rec := range recs {
		idx[rec.ID] = i
	}
	matrix, err := cluster.FromScores(idx, scores, threshold)
	if err != nil {
		return subBlockResult{}, err
	}

	labels, err := d.clusterer.Cluster(matrix)
	if err != nil {
		d.log.Warn("clusterer failed, treating sub-block as all noise",
			"records", len(recs),
			"error", err)
		return subBlockResult{pairs: len(scores)}, nil
	}

	byLabel := make(map[int][]int)
	for i, label := range labels {
		if label == cluster.Noise {
			continue
		}
		byLabel[label] = append(byLabel[label], recs[i].ID)
	}

	res := subBlockResult{pairs: len(scores)}
	for _, members := range byLabel {
		for i := 1; i < len(members); i++ {
			res.edges = append(res.edges, [2]int{members[0], members[i]})
		}
	}
	return res, nil
}
