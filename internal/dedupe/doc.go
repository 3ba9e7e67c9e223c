// Package dedupe orchestrates the record resolution pipeline.
//
// A Deduplicator is configured once with comparators, an aggregation
// strategy, a blocking mode, and clustering parameters, then run over a
// slice of records:
//
//	cfg := dedupe.DefaultConfig()
//	cfg.Comparators = compare.Registry{
//		{Attribute: "name", Comparator: compare.DiffRatio{}},
//		{Attribute: "email", Comparator: compare.Exact{Fold: true}},
//	}
//	cfg.BlockingAttributes = []string{"zip"}
//
//	d, err := dedupe.New(cfg)
//	if err != nil {
//		return err
//	}
//	result, err := d.Run(ctx, records)
//
// The pipeline stages are: blocking (internal/blocking), optional block
// splitting, pairwise scoring and aggregation (internal/compare,
// internal/score), per-sub-block density clustering (internal/cluster),
// and a union-find merge that joins clusters sharing records across
// sub-blocks. Sub-blocks are processed concurrently; the merge phase is
// serialized and order-independent, so results are deterministic up to
// the randomly generated cluster IDs.
package dedupe
