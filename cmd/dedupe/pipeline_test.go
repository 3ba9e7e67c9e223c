package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordkit/dedupe/internal/compare"
	"github.com/recordkit/dedupe/internal/score"
)

func writePipeline(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPipelineFull(t *testing.T) {
	path := writePipeline(t, `
comparators:
  - attribute: name
    type: diff_ratio
  - attribute: email
    type: exact
    fold: true
  - attribute: version
    type: semver
  - attribute: amount
    type: numeric
    scale: 100
aggregation: weighted
weights:
  name: 3
  email: 1
  version: 1
  amount: 1
blocking:
  rule:
    or:
      - exact: phone
      - and:
          - phonetic: last_name
          - first_n_chars: {attribute: zip, n: 3}
splitter:
  fields: [last_name]
  window: 100
  step: 50
clustering:
  eps: 0.3
  min_samples: 2
similarity_threshold: 0.7
include_singletons: true
workers: 4
`)

	cfg, err := loadPipeline(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Len(t, cfg.Comparators, 4)
	assert.Equal(t, score.Weighted, cfg.Aggregation)
	require.NotNil(t, cfg.BlockingRule)
	assert.Equal(t, "(exact(phone) | (phonetic(last_name) & first3(zip)))",
		cfg.BlockingRule.String())
	assert.Equal(t, 0.3, cfg.Eps)
	assert.Equal(t, 2, cfg.MinSamples)
	assert.Equal(t, 0.7, cfg.SimilarityThreshold)
	assert.True(t, cfg.IncludeSingletons)
	assert.Equal(t, 4, cfg.Workers)
}

func TestLoadPipelineDefaults(t *testing.T) {
	path := writePipeline(t, `
comparators:
  - attribute: name
blocking:
  attributes: [zip]
`)

	cfg, err := loadPipeline(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, score.Mean, cfg.Aggregation)
	assert.Equal(t, 0.5, cfg.Eps)
	assert.Equal(t, 2, cfg.MinSamples)
	assert.Equal(t, []string{"zip"}, cfg.BlockingAttributes)
	assert.IsType(t, compare.Exact{}, cfg.Comparators[0].Comparator)
}

func TestLoadPipelineUnknownComparator(t *testing.T) {
	path := writePipeline(t, `
comparators:
  - attribute: name
    type: levenshtein3000
`)
	_, err := loadPipeline(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown comparator type")
}

func TestLoadPipelineAmbiguousRuleNode(t *testing.T) {
	path := writePipeline(t, `
comparators:
  - attribute: name
blocking:
  rule:
    exact: phone
    phonetic: name
`)
	_, err := loadPipeline(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one")
}

func TestLoadPipelineSingleChildCombinator(t *testing.T) {
	path := writePipeline(t, `
comparators:
  - attribute: name
blocking:
  rule:
    and:
      - exact: phone
`)
	_, err := loadPipeline(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least two")
}

func TestLoadPipelineRateLimitWrapsComparator(t *testing.T) {
	path := writePipeline(t, `
comparators:
  - attribute: name
    type: diff_ratio
    rate_limit: 10
blocking:
  attributes: [zip]
`)
	cfg, err := loadPipeline(path)
	require.NoError(t, err)
	_, bare := cfg.Comparators[0].Comparator.(compare.DiffRatio)
	assert.False(t, bare, "rate_limit should wrap the comparator")
}

func TestLoadPipelineMissingFile(t *testing.T) {
	_, err := loadPipeline(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestGoldClusters(t *testing.T) {
	raw := []map[string]any{
		{"entity_id": "a"},
		{"entity_id": "b"},
		{"entity_id": "a"},
		{},
	}
	gold := goldClusters(raw, "entity_id")
	require.Len(t, gold, 1)
	assert.Equal(t, []int{0, 2}, gold[0])
}
