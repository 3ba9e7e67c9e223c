package compare

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/mod/semver"
	"golang.org/x/text/cases"
	"golang.org/x/time/rate"
)

// Exact scores 1.0 when both values render to the same string and 0.0
// otherwise. With Fold set, comparison is Unicode case-insensitive.
type Exact struct {
	Fold bool
}

var foldCaser = cases.Fold()

// Score implements Comparator.
func (e Exact) Score(_ context.Context, a, b any) (float64, error) {
	sa, sb := asString(a), asString(b)
	if e.Fold {
		sa, sb = foldCaser.String(sa), foldCaser.String(sb)
	}
	if sa == sb {
		return 1.0, nil
	}
	return 0.0, nil
}

// Numeric scores two numeric values by their absolute difference scaled
// into [0, 1]: identical values score 1.0, values Scale or further apart
// score 0.0. Non-numeric input is an error (recovered by the pipeline as
// a zero score).
type Numeric struct {
	// Scale is the difference at which similarity reaches zero.
	// It must be positive.
	Scale float64
}

// Score implements Comparator.
func (n Numeric) Score(_ context.Context, a, b any) (float64, error) {
	if n.Scale <= 0 {
		return 0, fmt.Errorf("numeric comparator requires a positive scale (got %g)", n.Scale)
	}
	fa, err := toFloat(a)
	if err != nil {
		return 0, err
	}
	fb, err := toFloat(b)
	if err != nil {
		return 0, err
	}
	d := math.Abs(fa-fb) / n.Scale
	if d >= 1 {
		return 0.0, nil
	}
	return 1.0 - d, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %v (%T)", v, v)
	}
}

// DiffRatio scores string similarity as 1 - levenshtein/maxlen using a
// character-level diff, so "Jon" vs "John" scores 0.75. Comparison is
// case-insensitive.
type DiffRatio struct{}

// Score implements Comparator.
func (DiffRatio) Score(_ context.Context, a, b any) (float64, error) {
	sa := foldCaser.String(asString(a))
	sb := foldCaser.String(asString(b))
	if sa == sb {
		return 1.0, nil
	}
	if sa == "" || sb == "" {
		return 0.0, nil
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(sa, sb, false)
	dist := dmp.DiffLevenshtein(diffs)
	longest := len([]rune(sa))
	if l := len([]rune(sb)); l > longest {
		longest = l
	}
	if dist >= longest {
		return 0.0, nil
	}
	return 1.0 - float64(dist)/float64(longest), nil
}

// Semver scores version-shaped values by how much of the version agrees:
// equal versions score 1.0, same major.minor 0.75, same major 0.5,
// different majors 0.0. Values that do not parse as semantic versions
// fall back to exact string comparison.
type Semver struct{}

// Score implements Comparator.
func (Semver) Score(_ context.Context, a, b any) (float64, error) {
	va, vb := canonicalVersion(a), canonicalVersion(b)
	if va == "" || vb == "" {
		return Exact{Fold: true}.Score(context.Background(), a, b)
	}
	if semver.Compare(va, vb) == 0 {
		return 1.0, nil
	}
	if semver.MajorMinor(va) == semver.MajorMinor(vb) {
		return 0.75, nil
	}
	if semver.Major(va) == semver.Major(vb) {
		return 0.5, nil
	}
	return 0.0, nil
}

func canonicalVersion(v any) string {
	s := strings.TrimSpace(asString(v))
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	if !semver.IsValid(s) {
		return ""
	}
	return semver.Canonical(s)
}

// RateLimited wraps a comparator with a token-bucket limit on invocation
// rate. Use it around comparators backed by remote services so a large
// block cannot flood the backing API. Waiting respects the context.
func RateLimited(inner Comparator, perSecond float64, burst int) Comparator {
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return Func(func(ctx context.Context, a, b any) (float64, error) {
		if err := limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("rate limit wait: %w", err)
		}
		return inner.Score(ctx, a, b)
	})
}
