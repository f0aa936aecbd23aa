// Package openai talks to OpenAI-compatible embedding and chat endpoints
// (OpenAI itself, or Mistral and local gateways through BaseURL).
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/neurobridge-tutor/internal/domain"
	"github.com/yungbote/neurobridge-tutor/internal/platform/httpx"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
	"github.com/yungbote/neurobridge-tutor/internal/platform/retry"
)

const (
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultEmbeddingDims  = 768
	DefaultChatModel      = "gpt-4o-mini"
	DefaultMaxTokens      = 700
	DefaultTemperature    = 0.35
)

type Config struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	EmbeddingDims  int
	ChatModel      string
	MaxTokens      int
	Temperature    float32
	Retry          retry.Policy
	HTTPClient     *http.Client
}

// UsageRecorder counts successful provider calls per day.
type UsageRecorder interface {
	RecordLLM(ctx context.Context)
	RecordEmbed(ctx context.Context)
}

// Observer receives one event per call (after retries) and one per retry.
type Observer interface {
	ObserveProviderCall(provider, op, outcome string, dur time.Duration)
	ObserveProviderRetry(provider, op string)
}

type Client struct {
	c     *openai.Client
	cfg   Config
	log   *logger.Logger
	usage UsageRecorder
	obs   Observer
}

func New(cfg Config, log *logger.Logger, usage UsageRecorder, obs Observer) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		oc.BaseURL = strings.TrimRight(base, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.EmbeddingDims <= 0 {
		cfg.EmbeddingDims = DefaultEmbeddingDims
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		c:     openai.NewClientWithConfig(oc),
		cfg:   cfg,
		log:   log.With("client", "OpenAI"),
		usage: usage,
		obs:   obs,
	}, nil
}

// Embed returns the embedding of text. Failures after the retry budget come
// back as domain unavailable errors.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, _, err := retry.Do(ctx, c.cfg.Retry, func(ctx context.Context) ([]float32, error) {
		resp, err := c.c.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:      []string{text},
			Model:      openai.EmbeddingModel(c.cfg.EmbeddingModel),
			Dimensions: c.cfg.EmbeddingDims,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
			return nil, errEmptyEmbedding
		}
		return resp.Data[0].Embedding, nil
	}, retry.Retryable(IsTransient), retry.OnRetry(c.onRetry("embed")))
	if err != nil {
		c.observe("embed", "error", start)
		return nil, domain.NewError(domain.CodeUnavailable, "openai.embed", "embedding service is temporarily unavailable", err)
	}
	c.observe("embed", "success", start)
	if c.usage != nil {
		c.usage.RecordEmbed(ctx)
	}
	return vec, nil
}

// Generate runs one chat completion. An empty completion is a success.
func (c *Client) Generate(ctx context.Context, system, user string) (string, error) {
	start := time.Now()
	text, _, err := retry.Do(ctx, c.cfg.Retry, func(ctx context.Context) (string, error) {
		resp, err := c.c.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.cfg.ChatModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			MaxTokens:   c.cfg.MaxTokens,
			Temperature: c.cfg.Temperature,
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Message.Content, nil
	}, retry.Retryable(IsTransient), retry.OnRetry(c.onRetry("generate")))
	if err != nil {
		c.observe("generate", "error", start)
		return "", domain.NewError(domain.CodeUnavailable, "openai.generate", "learning assistant is temporarily unavailable", err)
	}
	c.observe("generate", "success", start)
	if c.usage != nil {
		c.usage.RecordLLM(ctx)
	}
	return text, nil
}

var errEmptyEmbedding = errors.New("embedding response was empty")

// IsTransient reports rate limits, quota exhaustion, 5xx and network
// failures. Other provider errors fail on the first attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return httpx.IsRetryableHTTPStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode != 0 {
			return httpx.IsRetryableHTTPStatus(reqErr.HTTPStatusCode)
		}
		return httpx.IsRetryableError(reqErr.Err)
	}
	return httpx.IsRetryableError(err)
}

func (c *Client) onRetry(op string) func(int, error, time.Duration) {
	return func(attempt int, err error, wait time.Duration) {
		c.log.Warn("OpenAI request retrying",
			"op", op,
			"attempt", attempt,
			"sleep", wait.String(),
			"error", err.Error(),
		)
		if c.obs != nil {
			c.obs.ObserveProviderRetry("openai", op)
		}
	}
}

func (c *Client) observe(op, outcome string, start time.Time) {
	if c.obs != nil {
		c.obs.ObserveProviderCall("openai", op, outcome, time.Since(start))
	}
}
