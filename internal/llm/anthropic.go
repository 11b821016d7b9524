package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	envAnthropicAPIKey    = "ANTHROPIC_API_KEY"
	envAnthropicModel     = "ANTHROPIC_MODEL"
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"

	anthropicAPIURL    = "https://api.anthropic.com/v1/messages"
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 400
)

type anthropicClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

type anthropicPayload struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e anthropicError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Type
}

func NewAnthropicFromEnv() (Client, error) {
	key := strings.TrimSpace(os.Getenv(envAnthropicAPIKey))
	if key == "" {
		return nil, fmt.Errorf("missing %s", envAnthropicAPIKey)
	}
	model := strings.Trim(strings.TrimSpace(os.Getenv(envAnthropicModel)), "\"'")
	if model == "" {
		model = defaultAnthropicModel
	}
	return newAnthropic(key, model, anthropicAPIURL, zerolog.Nop()), nil
}

func newAnthropic(key, model, baseURL string, logger zerolog.Logger) *anthropicClient {
	return &anthropicClient{
		apiKey:  key,
		model:   model,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeoutSecs * time.Second},
		logger:  logger,
	}
}

// NewAnthropicWithLogger creates client with logger for detailed tracing
func NewAnthropicWithLogger(logger zerolog.Logger) (Client, error) {
	client, err := NewAnthropicFromEnv()
	if err != nil {
		return nil, err
	}
	client.(*anthropicClient).logger = logger
	return client, nil
}

func (c *anthropicClient) Name() string { return c.model }

func (c *anthropicClient) Generate(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, errors.New("no messages")
	}
	clampMessages(c.logger, &req)

	payload := anthropicPayload{
		Model:       c.model,
		System:      req.System,
		MaxTokens:   maxTokens(req, anthropicMaxTokens),
		Temperature: float64(req.Temperature),
	}
	for _, m := range req.Messages {
		payload.Messages = append(payload.Messages, anthropicMessage{
			Role:    m.Role,
			Content: []anthropicContent{{Type: "text", Text: m.Content}},
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("marshal payload: %w", err)
	}

	return withRetry(ctx, c.logger, "anthropic", func() (Response, error) {
		c.logger.Debug().
			Str("model", c.model).
			Int("messages", len(payload.Messages)).
			Int("payload_size", len(body)).
			Msg("Anthropic API request")

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return Response{}, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return Response{}, retryable{fmt.Errorf("http request: %w", err)}
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return Response{}, retryable{fmt.Errorf("read response: %w", err)}
		}

		if resp.StatusCode >= 400 {
			var wrapper struct {
				Error anthropicError `json:"error"`
			}
			msg := truncate(string(data), 500)
			if err := json.Unmarshal(data, &wrapper); err == nil && wrapper.Error.Error() != "" {
				msg = wrapper.Error.Error()
			}
			apiErr := fmt.Errorf("anthropic %d: %s", resp.StatusCode, msg)
			c.logger.Error().
				Int("status", resp.StatusCode).
				Str("error_type", wrapper.Error.Type).
				Str("raw_response", truncate(string(data), 500)).
				Msg("Anthropic API error")
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return Response{}, retryable{apiErr}
			}
			return Response{}, apiErr
		}

		var ar anthropicResponse
		if err := json.Unmarshal(data, &ar); err != nil {
			return Response{}, fmt.Errorf("parse response: %w", err)
		}
		var buf bytes.Buffer
		for _, content := range ar.Content {
			if content.Type == "text" {
				buf.WriteString(content.Text)
			}
		}
		c.logger.Debug().Int("response_length", buf.Len()).Msg("Anthropic API success")
		return Response{Text: buf.String()}, nil
	})
}
