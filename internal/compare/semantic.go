package compare

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// SemanticConfig configures the Claude-backed semantic comparator.
type SemanticConfig struct {
	// APIKey for the Anthropic API. Falls back to ANTHROPIC_API_KEY.
	APIKey string

	// Model to use. Defaults to a small, fast model: similarity scoring
	// is a short single-turn prompt and does not need a large model.
	Model string

	// MaxRetries is the number of retries after a failed API call.
	// Default: 2.
	MaxRetries int

	// RequestTimeout bounds each individual API call. Default: 30s.
	RequestTimeout time.Duration
}

// DefaultSemanticConfig returns the default semantic comparator settings.
func DefaultSemanticConfig() SemanticConfig {
	return SemanticConfig{
		Model:          "claude-3-5-haiku-20241022",
		MaxRetries:     2,
		RequestTimeout: 30 * time.Second,
	}
}

// Semantic scores similarity by asking a Claude model whether two values
// refer to the same real-world entity. It is intended for free-text
// attributes where edit distance is too blunt (company names, addresses,
// product descriptions).
//
// Wrap it with RateLimited when scoring large blocks.
type Semantic struct {
	client  anthropic.Client
	model   string
	retries int
	timeout time.Duration
}

// NewSemantic builds a semantic comparator. It fails when no API key is
// available, so misconfiguration surfaces at pipeline construction rather
// than mid-run.
func NewSemantic(cfg SemanticConfig) (*Semantic, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}
	def := DefaultSemanticConfig()
	model := cfg.Model
	if model == "" {
		model = def.Model
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = def.MaxRetries
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = def.RequestTimeout
	}
	return &Semantic{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		retries: retries,
		timeout: timeout,
	}, nil
}

// Score implements Comparator. Transient API failures are retried with
// exponential backoff; a final failure is returned to the caller, which
// the pipeline degrades to a zero score.
func (s *Semantic) Score(ctx context.Context, a, b any) (float64, error) {
	prompt := s.buildPrompt(asString(a), asString(b))

	var text string
	backoff := time.Second
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		resp, err := s.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(s.model),
			MaxTokens: 16,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		for _, block := range resp.Content {
			if block.Type == "text" {
				text += block.Text
			}
		}
		return parseScore(text)
	}
	return 0, fmt.Errorf("semantic comparison failed after %d attempts: %w", s.retries+1, lastErr)
}

func (s *Semantic) buildPrompt(a, b string) string {
	return fmt.Sprintf(`You are scoring whether two attribute values refer to the same real-world entity.

Value A: %q
Value B: %q

Reply with a single number between 0.0 and 1.0, where 1.0 means certainly the same entity and 0.0 means certainly different. Reply with the number only.`, a, b)
}

// parseScore extracts the numeric score from a model reply, clamping to
// [0, 1].
func parseScore(text string) (float64, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty model response")
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "."), 64)
	if err != nil {
		return 0, fmt.Errorf("model response is not a score: %q", text)
	}
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return f, nil
}
