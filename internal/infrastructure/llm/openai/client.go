package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	oai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
	"github.com/kirillkom/commerce-rag/internal/infrastructure/llm/prompt"
	"github.com/kirillkom/commerce-rag/internal/infrastructure/resilience"
)

const (
	defaultChatModel  = "gpt-4o"
	defaultEmbedModel = "text-embedding-3-small"
)

type Client struct {
	api        oai.Client
	chatModel  string
	embedModel string
	executor   *resilience.Executor
}

type Options struct {
	BaseURL            string
	ChatModel          string
	EmbedModel         string
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

// New disables SDK retries; retries go through the resilience executor.
func New(apiKey string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(base, "/")+"/"))
	}

	chatModel := strings.TrimSpace(opts.ChatModel)
	if chatModel == "" {
		chatModel = defaultChatModel
	}
	embedModel := strings.TrimSpace(opts.EmbedModel)
	if embedModel == "" {
		embedModel = defaultEmbedModel
	}
	return &Client{
		api:        oai.NewClient(reqOpts...),
		chatModel:  chatModel,
		embedModel: embedModel,
		executor:   opts.ResilienceExecutor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := resilience.Call(ctx, e.client.executor, "openai.embed", func(callCtx context.Context) (*oai.CreateEmbeddingResponse, error) {
		return e.client.api.Embeddings.New(callCtx, oai.EmbeddingNewParams{
			Input: oai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
			Model: oai.EmbeddingModel(e.client.embedModel),
		})
	}, classifyOpenAIError)
	if err != nil {
		return nil, wrapOpenAIError("openai embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: expected %d vectors, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for i, item := range resp.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= len(out) {
			idx = i
		}
		vec := make([]float32, len(item.Embedding))
		for j, v := range item.Embedding {
			vec[j] = float32(v)
		}
		out[idx] = vec
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, aggregated domain.AggregatedContext) (string, error) {
	resp, err := resilience.Call(ctx, g.client.executor, "openai.chat", func(callCtx context.Context) (*oai.ChatCompletion, error) {
		return g.client.api.Chat.Completions.New(callCtx, oai.ChatCompletionNewParams{
			Model: oai.ChatModel(g.client.chatModel),
			Messages: []oai.ChatCompletionMessageParamUnion{
				oai.SystemMessage(prompt.System),
				oai.UserMessage(prompt.User(question, aggregated)),
			},
			Temperature: oai.Float(0.2),
		})
	}, classifyOpenAIError)
	if err != nil {
		return "", wrapOpenAIError("openai chat", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat: empty choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classifyOpenAIError(err error) resilience.ErrorClassification {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return resilience.ClassifyStatusCode(apiErr.StatusCode)
	}
	return resilience.ClassifyHTTP(err)
}

// IsUnauthorized reports a rejected or revoked API key.
func IsUnauthorized(err error) bool {
	var apiErr *oai.Error
	return errors.As(err, &apiErr) && resilience.IsAuthStatus(apiErr.StatusCode)
}

func wrapOpenAIError(operation string, err error) error {
	switch {
	case IsUnauthorized(err):
		return domain.WrapError(domain.ErrUnauthorized, operation, err)
	case classifyOpenAIError(err).Retryable || resilience.IsCircuitOpen(err):
		return domain.WrapError(domain.ErrTemporary, operation, err)
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
