package bootstrap

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/commerce-rag/internal/config"
	"github.com/kirillkom/commerce-rag/internal/core/ports"
	"github.com/kirillkom/commerce-rag/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/commerce-rag/internal/infrastructure/llm/openai"
	"github.com/kirillkom/commerce-rag/internal/infrastructure/resilience"
)

const (
	providerOllama = "ollama"
	providerOpenAI = "openai"
)

// buildProviders returns a nil generator when the hosted provider has no
// credentials; answering then reports domain.ErrNotConfigured.
func buildProviders(cfg config.Config, executor *resilience.Executor) (ports.Embedder, ports.AnswerGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.LLMProvider)) {
	case "", providerOllama:
		client := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
			ResilienceExecutor: executor,
		})
		return ollama.NewEmbedder(client), ollama.NewGenerator(client), nil
	case providerOpenAI:
		client := openai.New(cfg.OpenAIAPIKey, openai.Options{
			BaseURL:            cfg.OpenAIBaseURL,
			ChatModel:          cfg.OpenAIChatModel,
			EmbedModel:         cfg.OpenAIEmbedModel,
			ResilienceExecutor: executor,
		})
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			slog.Warn("openai_api_key_missing", "effect", "answer generation disabled")
			return openai.NewEmbedder(client), nil, nil
		}
		return openai.NewEmbedder(client), openai.NewGenerator(client), nil
	default:
		return nil, nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func embeddingNamespace(cfg config.Config) string {
	if strings.EqualFold(cfg.LLMProvider, providerOpenAI) {
		return providerOpenAI + ":" + cfg.OpenAIEmbedModel
	}
	return providerOllama + ":" + cfg.OllamaEmbedModel
}
