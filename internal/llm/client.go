package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	envProvider = "LLM_PROVIDER" // "openai" or "anthropic"

	maxRetries     = 3
	retryBaseDelay = 500 * time.Millisecond
	maxRequestSize = 200000 // ~200KB
	timeoutSecs    = 60
)

type Client interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Name() string
}

type Request struct {
	System      string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Response struct {
	Text string
}

// NewClientWithLogger creates a client for the provider named by
// LLM_PROVIDER. OpenAI is the default because the reply persona was tuned
// against its chat models.
func NewClientWithLogger(logger zerolog.Logger) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv(envProvider)))
	if provider == "" {
		provider = "openai"
	}

	switch provider {
	case "openai":
		return NewOpenAIWithLogger(logger)
	case "anthropic":
		return NewAnthropicWithLogger(logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (use 'openai' or 'anthropic')", provider)
	}
}

// retryable marks an attempt failure that may succeed when repeated.
type retryable struct{ err error }

func (r retryable) Error() string { return r.err.Error() }
func (r retryable) Unwrap() error { return r.err }

// withRetry runs attempt with exponential backoff until it succeeds, returns
// a non-retryable error, or the retry budget is spent.
func withRetry(ctx context.Context, logger zerolog.Logger, provider string, attempt func() (Response, error)) (Response, error) {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			delay := retryBaseDelay * time.Duration(1<<uint(i-1))
			logger.Info().
				Int("attempt", i).
				Dur("delay", delay).
				Str("provider", provider).
				Msg("retrying completion call")
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(delay):
			}
		}
		resp, err := attempt()
		if err == nil {
			return resp, nil
		}
		r, ok := err.(retryable)
		if !ok {
			return Response{}, err
		}
		lastErr = r.err
	}
	return Response{}, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// maxTokens is the completion budget: the request's when set, def otherwise.
func maxTokens(req Request, def int) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return def
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return cutUTF8(s, maxLen) + "..."
}

// cutUTF8 returns at most n bytes of s without splitting a rune.
func cutUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func clampMessages(logger zerolog.Logger, req *Request) {
	for i, m := range req.Messages {
		if len(m.Content) > maxRequestSize {
			logger.Warn().Int("message_idx", i).Int("size", len(m.Content)).Msg("message too large, truncating")
			req.Messages[i].Content = cutUTF8(m.Content, maxRequestSize) + "... [truncated]"
		}
	}
	if len(req.System) > maxRequestSize {
		logger.Warn().Int("size", len(req.System)).Msg("system prompt too large, truncating")
		req.System = cutUTF8(req.System, maxRequestSize) + "... [truncated]"
	}
}
