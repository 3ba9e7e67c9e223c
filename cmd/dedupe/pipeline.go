package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/recordkit/dedupe/internal/blocking"
	"github.com/recordkit/dedupe/internal/compare"
	"github.com/recordkit/dedupe/internal/dedupe"
	"github.com/recordkit/dedupe/internal/score"
)

// pipelineConfig is the YAML shape of a pipeline definition file.
type pipelineConfig struct {
	Comparators         []comparatorSpec   `yaml:"comparators"`
	Aggregation         string             `yaml:"aggregation"`
	Weights             map[string]float64 `yaml:"weights"`
	Blocking            blockingSpec       `yaml:"blocking"`
	Splitter            *splitterSpec      `yaml:"splitter"`
	Clustering          clusteringSpec     `yaml:"clustering"`
	SimilarityThreshold *float64           `yaml:"similarity_threshold"`
	IncludeSingletons   bool               `yaml:"include_singletons"`
	MaxPairsPerBlock    int                `yaml:"max_pairs_per_block"`
	Workers             int                `yaml:"workers"`
}

type comparatorSpec struct {
	Attribute string  `yaml:"attribute"`
	Type      string  `yaml:"type"`
	Fold      bool    `yaml:"fold"`       // exact
	Scale     float64 `yaml:"scale"`      // numeric
	Model     string  `yaml:"model"`      // semantic
	RateLimit float64 `yaml:"rate_limit"` // wraps any type, calls per second
	Burst     int     `yaml:"burst"`
}

type blockingSpec struct {
	Attributes []string  `yaml:"attributes"`
	Rule       *ruleNode `yaml:"rule"`
}

// ruleNode is one node of the YAML rule tree. Exactly one field may be
// set per node.
type ruleNode struct {
	And          []ruleNode `yaml:"and"`
	Or           []ruleNode `yaml:"or"`
	Exact        string     `yaml:"exact"`
	Phonetic     string     `yaml:"phonetic"`
	FirstNChars  *prefixArg `yaml:"first_n_chars"`
	Abbreviation *prefixArg `yaml:"abbreviation"`
}

type prefixArg struct {
	Attribute string `yaml:"attribute"`
	N         int    `yaml:"n"`
}

type splitterSpec struct {
	Fields []string `yaml:"fields"`
	Window int      `yaml:"window"`
	Step   int      `yaml:"step"`
}

type clusteringSpec struct {
	Eps        *float64 `yaml:"eps"`
	MinSamples *int     `yaml:"min_samples"`
}

// loadPipeline reads and materializes a pipeline definition file.
func loadPipeline(path string) (dedupe.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return dedupe.Config{}, fmt.Errorf("failed to read pipeline file: %w", err)
	}
	var pc pipelineConfig
	if err := yaml.Unmarshal(data, &pc); err != nil {
		return dedupe.Config{}, fmt.Errorf("failed to parse pipeline file: %w", err)
	}
	return pc.build()
}

func (pc pipelineConfig) build() (dedupe.Config, error) {
	cfg := dedupe.DefaultConfig()

	for _, spec := range pc.Comparators {
		cmp, err := spec.build()
		if err != nil {
			return dedupe.Config{}, err
		}
		cfg.Comparators = append(cfg.Comparators, compare.Entry{
			Attribute:  spec.Attribute,
			Comparator: cmp,
		})
	}

	if pc.Aggregation != "" {
		cfg.Aggregation = score.Strategy(pc.Aggregation)
	}
	cfg.Weights = pc.Weights

	cfg.BlockingAttributes = pc.Blocking.Attributes
	if pc.Blocking.Rule != nil {
		rule, err := pc.Blocking.Rule.build()
		if err != nil {
			return dedupe.Config{}, fmt.Errorf("invalid blocking rule: %w", err)
		}
		cfg.BlockingRule = rule
	}

	if pc.Splitter != nil {
		cfg.Splitter = blocking.SortedNeighbourhood{
			Fields: pc.Splitter.Fields,
			Window: pc.Splitter.Window,
			Step:   pc.Splitter.Step,
		}
	}

	if pc.Clustering.Eps != nil {
		cfg.Eps = *pc.Clustering.Eps
	}
	if pc.Clustering.MinSamples != nil {
		cfg.MinSamples = *pc.Clustering.MinSamples
	}
	if pc.SimilarityThreshold != nil {
		cfg.SimilarityThreshold = *pc.SimilarityThreshold
	}
	cfg.IncludeSingletons = pc.IncludeSingletons
	cfg.MaxPairsPerBlock = pc.MaxPairsPerBlock
	if pc.Workers != 0 {
		cfg.Workers = pc.Workers
	}

	if err := cfg.ApplyEnv(); err != nil {
		return dedupe.Config{}, err
	}
	return cfg, nil
}

func (s comparatorSpec) build() (compare.Comparator, error) {
	if s.Attribute == "" {
		return nil, fmt.Errorf("comparator is missing an attribute")
	}

	var cmp compare.Comparator
	switch s.Type {
	case "exact", "":
		cmp = compare.Exact{Fold: s.Fold}
	case "numeric":
		cmp = compare.Numeric{Scale: s.Scale}
	case "diff_ratio":
		cmp = compare.DiffRatio{}
	case "semver":
		cmp = compare.Semver{}
	case "semantic":
		semCfg := compare.DefaultSemanticConfig()
		if s.Model != "" {
			semCfg.Model = s.Model
		}
		sem, err := compare.NewSemantic(semCfg)
		if err != nil {
			return nil, fmt.Errorf("comparator for %q: %w", s.Attribute, err)
		}
		cmp = sem
	default:
		return nil, fmt.Errorf("unknown comparator type %q for attribute %q", s.Type, s.Attribute)
	}

	if s.RateLimit > 0 {
		burst := s.Burst
		if burst == 0 {
			burst = 1
		}
		cmp = compare.RateLimited(cmp, s.RateLimit, burst)
	}
	return cmp, nil
}

func (n ruleNode) build() (*blocking.Rule, error) {
	set := 0
	if len(n.And) > 0 {
		set++
	}
	if len(n.Or) > 0 {
		set++
	}
	if n.Exact != "" {
		set++
	}
	if n.Phonetic != "" {
		set++
	}
	if n.FirstNChars != nil {
		set++
	}
	if n.Abbreviation != nil {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("each rule node needs exactly one of and/or/exact/phonetic/first_n_chars/abbreviation")
	}

	switch {
	case len(n.And) > 0:
		return n.combine(n.And, blocking.And)
	case len(n.Or) > 0:
		return n.combine(n.Or, blocking.Or)
	case n.Exact != "":
		return blocking.Exact(n.Exact), nil
	case n.Phonetic != "":
		return blocking.Phonetic(n.Phonetic), nil
	case n.FirstNChars != nil:
		return blocking.FirstNChars(n.FirstNChars.Attribute, n.FirstNChars.N), nil
	default:
		return blocking.Abbreviation(n.Abbreviation.Attribute, n.Abbreviation.N), nil
	}
}

func (n ruleNode) combine(children []ruleNode, op func(left, right *blocking.Rule) *blocking.Rule) (*blocking.Rule, error) {
	if len(children) < 2 {
		return nil, fmt.Errorf("and/or need at least two children")
	}
	rule, err := children[0].build()
	if err != nil {
		return nil, err
	}
	for _, child := range children[1:] {
		next, err := child.build()
		if err != nil {
			return nil, err
		}
		rule = op(rule, next)
	}
	return rule, nil
}
