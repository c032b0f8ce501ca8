package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/askdocs/askdocs/pkg/fn"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Config holds the Azure OpenAI connection settings. The same Config is
// shared between ingest-time and query-time embedding so both sides of the
// index always live in the same embedding space.
type Config struct {
	APIKey          string
	Endpoint        string
	APIVersion      string
	EmbedDeployment string
	ChatDeployment  string
	Temperature     float32
	// RequestsPerSecond throttles outbound calls. Zero disables throttling.
	RequestsPerSecond float64
}

// AzureClient implements Embedder and Generator against Azure OpenAI
// deployments.
type AzureClient struct {
	client  *openai.Client
	cfg     Config
	limiter *rate.Limiter
	retry   fn.RetryOpts
	logger  *slog.Logger
}

var (
	_ Embedder  = (*AzureClient)(nil)
	_ Generator = (*AzureClient)(nil)
)

// NewAzureClient creates a client for the configured Azure OpenAI resource.
func NewAzureClient(cfg Config, logger *slog.Logger) (*AzureClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: missing API key, set AZURE_OPENAI_API_KEY")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("llm: missing endpoint, set AZURE_OPENAI_ENDPOINT")
	}
	if logger == nil {
		logger = slog.Default()
	}

	conf := openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	if cfg.APIVersion != "" {
		conf.APIVersion = cfg.APIVersion
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	retry := fn.DefaultRetry
	retry.InitialWait = 500 * time.Millisecond
	retry.Retryable = retryable

	return &AzureClient{
		client:  openai.NewClientWithConfig(conf),
		cfg:     cfg,
		limiter: limiter,
		retry:   retry,
		logger:  logger,
	}, nil
}

// EmbedBatch embeds all texts in one request, preserving input order.
func (c *AzureClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("llm: embed rate limit: %w", err)
	}

	result := fn.Retry(ctx, c.retry, func(ctx context.Context) fn.Result[openai.EmbeddingResponse] {
		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(c.cfg.EmbedDeployment),
			Input: texts,
		})
		return fn.FromPair(resp, err)
	})
	resp, err := result.Unwrap()
	if err != nil {
		return nil, fmt.Errorf("llm: embed %d texts: %w", len(texts), err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("llm: embed returned %d vectors for %d texts", len(resp.Data), len(texts))
	}

	// Place each vector by the service-reported index so the 1:1 pairing
	// with the input survives any response reordering.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("llm: embed returned out-of-range index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("llm: embed returned no vector for input %d", i)
		}
	}
	return vectors, nil
}

// Generate sends a rendered prompt to the chat deployment and returns the
// generated text.
func (c *AzureClient) Generate(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm: generate rate limit: %w", err)
	}

	result := fn.Retry(ctx, c.retry, func(ctx context.Context) fn.Result[openai.ChatCompletionResponse] {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.cfg.ChatDeployment,
			Temperature: c.cfg.Temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		return fn.FromPair(resp, err)
	})
	resp, err := result.Unwrap()
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// retryable reports whether a failed call is worth retrying. Rate limits
// and server-side errors are transient; auth and request errors are not.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	// Network-level failure.
	return true
}
