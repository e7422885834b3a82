package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/commerce-rag/internal/core/ports"
)

const defaultEmbeddingTTL = 24 * time.Hour

type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient builds the shared redis client.
func NewClient(opts Options) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

// CachedEmbedder memoizes query embeddings. Cache failures are logged and
// the call falls through to the wrapped embedder.
type CachedEmbedder struct {
	next      ports.Embedder
	client    *goredis.Client
	namespace string
	ttl       time.Duration
}

// NewCachedEmbedder keys entries by namespace, usually the embedding model
// name, so vectors from different models never mix.
func NewCachedEmbedder(next ports.Embedder, client *goredis.Client, namespace string, ttl time.Duration) *CachedEmbedder {
	if ttl <= 0 {
		ttl = defaultEmbeddingTTL
	}
	return &CachedEmbedder{
		next:      next,
		client:    client,
		namespace: namespace,
		ttl:       ttl,
	}
}

// Embed is used by ingestion and is not cached.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.Embed(ctx, texts)
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vec []float32
		if jsonErr := json.Unmarshal(raw, &vec); jsonErr == nil && len(vec) > 0 {
			return vec, nil
		}
		slog.Warn("embedding_cache_corrupt", "key", key)
	case !errors.Is(err, goredis.Nil):
		slog.Warn("embedding_cache_get_failed", "error", err)
	}

	vec, err := c.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(vec)
	if err != nil {
		return vec, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		slog.Warn("embedding_cache_set_failed", "error", err)
	}
	return vec, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embed:%s:%s", c.namespace, hex.EncodeToString(sum[:]))
}
