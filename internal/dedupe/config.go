package dedupe

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"

	"github.com/recordkit/dedupe/internal/blocking"
	"github.com/recordkit/dedupe/internal/cluster"
	"github.com/recordkit/dedupe/internal/compare"
	"github.com/recordkit/dedupe/internal/score"
)

// Config holds the full pipeline configuration. Validation happens at
// construction time: nothing in the record-processing path is allowed to
// fail because of configuration.
type Config struct {
	// Comparators binds attributes to the similarity functions that
	// score them. Required, in priority order.
	Comparators compare.Registry

	// Aggregation names the strategy combining per-attribute scores
	// into one scalar. Default: mean.
	Aggregation score.Strategy

	// Weights are the per-attribute weights for the weighted strategy.
	// They need not sum to one; they are normalized internally. Only
	// attributes present in Comparators may carry a weight.
	Weights map[string]float64

	// BlockingAttributes is sugar for an AND-chain of exact-match rules
	// over these attributes. Mutually exclusive with BlockingRule.
	BlockingAttributes []string

	// BlockingRule is the explicit rule tree. Mutually exclusive with
	// BlockingAttributes. With neither set, all records form one block
	// and every pair is compared.
	BlockingRule *blocking.Rule

	// Splitter caps block sizes before pairwise comparison.
	// Default: identity (no splitting).
	Splitter blocking.Splitter

	// Clusterer is the density-clustering oracle. When nil, a built-in
	// DBSCAN over the precomputed distance matrix is used with Eps and
	// MinSamples.
	Clusterer cluster.Clusterer

	// Eps is the DBSCAN neighbourhood radius (distance units) for the
	// built-in clusterer. Default: 0.5.
	Eps float64

	// MinSamples is the minimum DBSCAN neighbourhood size for the
	// built-in clusterer. Default: 2.
	MinSamples int

	// SimilarityThreshold is a hard floor applied before clustering:
	// pairs scoring below it are forced to maximal distance regardless
	// of Eps. It gates what counts as similar at all, independent of
	// density tuning; the two are deliberately separate knobs.
	// Default: 0 (no extra gate, Eps is authoritative).
	SimilarityThreshold float64

	// IncludeSingletons reports records that ended in no cluster as
	// clusters of one instead of omitting them. Default: false.
	IncludeSingletons bool

	// MaxPairsPerBlock caps the number of pairs scored per sub-block
	// (deterministic prefix). Zero means no cap. Pairs dropped by the
	// cap keep maximal distance. Prefer a Splitter over this cap; it
	// exists as a safety valve for pathological blocks.
	MaxPairsPerBlock int

	// Workers bounds concurrent sub-block processing. Zero means one
	// worker per CPU. Sub-block results are merged in a single
	// serialized pass, so comparators are the only code that must be
	// safe for concurrent use.
	Workers int

	// Logger receives warning diagnostics (comparator failures,
	// degraded sub-blocks). Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default pipeline settings. Comparators and a
// blocking mode still have to be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Aggregation: score.Mean,
		Splitter:    blocking.Identity{},
		Eps:         0.5,
		MinSamples:  2,
		Workers:     runtime.NumCPU(),
	}
}

// Validate checks the configuration. It mirrors what New enforces and can
// be called separately for early feedback.
func (c Config) Validate() error {
	if err := c.Comparators.Validate(); err != nil {
		return err
	}
	if _, err := score.NewAggregator(c.Aggregation, c.Comparators.Attributes(), c.Weights); err != nil {
		return err
	}
	if len(c.BlockingAttributes) > 0 && c.BlockingRule != nil {
		return fmt.Errorf("blocking_attributes and blocking_rule are mutually exclusive")
	}
	if c.BlockingRule != nil {
		if err := c.BlockingRule.Validate(); err != nil {
			return fmt.Errorf("invalid blocking rule: %w", err)
		}
	}
	for _, attr := range c.BlockingAttributes {
		if attr == "" {
			return fmt.Errorf("blocking attribute names must not be empty")
		}
	}
	if v, ok := c.Splitter.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("invalid splitter: %w", err)
		}
	}
	if c.Clusterer == nil {
		if err := (cluster.DBSCAN{Eps: c.Eps, MinSamples: c.MinSamples}).Validate(); err != nil {
			return err
		}
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be between 0.0 and 1.0 (got %g)", c.SimilarityThreshold)
	}
	if c.MaxPairsPerBlock < 0 {
		return fmt.Errorf("max_pairs_per_block cannot be negative (got %d)", c.MaxPairsPerBlock)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative (got %d)", c.Workers)
	}
	return nil
}

// ApplyEnv overlays run-control settings from environment variables,
// leaving unset variables at their configured values:
//
//   - DEDUPE_SIMILARITY_THRESHOLD: hard similarity floor (0.0-1.0)
//   - DEDUPE_WORKERS: concurrent sub-block workers
//   - DEDUPE_MAX_PAIRS_PER_BLOCK: per-sub-block pair cap
//   - DEDUPE_INCLUDE_SINGLETONS: report unclustered records
//
// Returns an error if a variable has an invalid value.
func (c *Config) ApplyEnv() error {
	if err := parseEnvFloat("DEDUPE_SIMILARITY_THRESHOLD", &c.SimilarityThreshold); err != nil {
		return err
	}
	if err := parseEnvInt("DEDUPE_WORKERS", &c.Workers); err != nil {
		return err
	}
	if err := parseEnvInt("DEDUPE_MAX_PAIRS_PER_BLOCK", &c.MaxPairsPerBlock); err != nil {
		return err
	}
	if err := parseEnvBool("DEDUPE_INCLUDE_SINGLETONS", &c.IncludeSingletons); err != nil {
		return err
	}
	return nil
}

func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
