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
	envOpenAIAPIKey    = "OPENAI_API_KEY"
	envOpenAIModel     = "OPENAI_MODEL"
	defaultOpenAIModel = "gpt-4o-mini"

	openAIAPIURL    = "https://api.openai.com/v1/chat/completions"
	openAIMaxTokens = 400
)

type openAIClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

type openAIPayload struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

func NewOpenAIFromEnv() (Client, error) {
	key := strings.TrimSpace(os.Getenv(envOpenAIAPIKey))
	if key == "" {
		return nil, fmt.Errorf("missing %s", envOpenAIAPIKey)
	}
	model := strings.Trim(strings.TrimSpace(os.Getenv(envOpenAIModel)), "\"'")
	if model == "" {
		model = defaultOpenAIModel
	}
	return newOpenAI(key, model, openAIAPIURL, zerolog.Nop()), nil
}

func NewOpenAIWithLogger(logger zerolog.Logger) (Client, error) {
	client, err := NewOpenAIFromEnv()
	if err != nil {
		return nil, err
	}
	client.(*openAIClient).logger = logger
	return client, nil
}

func newOpenAI(key, model, baseURL string, logger zerolog.Logger) *openAIClient {
	return &openAIClient{
		apiKey:  key,
		model:   model,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeoutSecs * time.Second},
		logger:  logger,
	}
}

func (c *openAIClient) Name() string { return c.model }

func (c *openAIClient) Generate(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, errors.New("no messages")
	}
	clampMessages(c.logger, &req)

	messages := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, req.Messages...)
	payload := openAIPayload{
		Model:       c.model,
		Messages:    messages,
		Temperature: float64(req.Temperature),
		MaxTokens:   maxTokens(req, openAIMaxTokens),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("marshal payload: %w", err)
	}

	return withRetry(ctx, c.logger, "openai", func() (Response, error) {
		c.logger.Debug().
			Str("model", c.model).
			Int("messages", len(messages)).
			Int("payload_size", len(body)).
			Msg("OpenAI API request")

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return Response{}, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return Response{}, retryable{fmt.Errorf("http request: %w", err)}
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return Response{}, retryable{fmt.Errorf("read response: %w", err)}
		}

		var apiResp openAIResponse
		if resp.StatusCode >= 400 {
			msg := truncate(string(data), 500)
			if err := json.Unmarshal(data, &apiResp); err == nil && apiResp.Error != nil && apiResp.Error.Message != "" {
				msg = apiResp.Error.Message
			}
			apiErr := fmt.Errorf("openai %d: %s", resp.StatusCode, msg)
			c.logger.Error().
				Int("status", resp.StatusCode).
				Str("raw_response", truncate(string(data), 500)).
				Msg("OpenAI API error")
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return Response{}, retryable{apiErr}
			}
			return Response{}, apiErr
		}

		if err := json.Unmarshal(data, &apiResp); err != nil {
			return Response{}, fmt.Errorf("parse response: %w", err)
		}
		if len(apiResp.Choices) == 0 {
			return Response{}, errors.New("no choices in response")
		}
		choice := apiResp.Choices[0]
		if choice.Message.Content == "" {
			return Response{}, errors.New("empty response content")
		}

		c.logger.Debug().
			Str("finish_reason", choice.FinishReason).
			Int("prompt_tokens", apiResp.Usage.PromptTokens).
			Int("completion_tokens", apiResp.Usage.CompletionTokens).
			Str("response_preview", truncate(choice.Message.Content, 200)).
			Msg("OpenAI API success")
		return Response{Text: choice.Message.Content}, nil
	})
}
