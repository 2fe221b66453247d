package inference

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const cacheKeyPrefix = "frma:answer:"

// CachedBackend serves repeated requests from Redis. Only successful answers
// are stored. Redis failures fall through to the wrapped backend.
type CachedBackend struct {
	next   Backend
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

func NewCachedBackend(next Backend, client *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedBackend {
	return &CachedBackend{next: next, client: client, ttl: ttl, log: log}
}

func (c *CachedBackend) Generate(ctx context.Context, req Request) (string, error) {
	if c.client == nil {
		return c.next.Generate(ctx, req)
	}
	key := CacheKey(req)

	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil && cached != "":
		return cached, nil
	case err != nil && !errors.Is(err, redis.Nil):
		c.log.Warn().Err(err).Msg("answer cache read failed")
	}

	answer, err := c.next.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if err := c.client.Set(ctx, key, answer, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Msg("answer cache write failed")
	}
	return answer, nil
}

// Chat is never cached; conversations rarely repeat verbatim.
func (c *CachedBackend) Chat(ctx context.Context, req ChatRequest) (string, error) {
	chat, ok := c.next.(ChatBackend)
	if !ok {
		return "", ErrChatUnsupported
	}
	return chat.Chat(ctx, req)
}

// CacheKey derives the Redis key from everything that influences the
// generated text.
func CacheKey(req Request) string {
	payload, _ := json.Marshal(struct {
		Prompt      string   `json:"p"`
		Profile     *Profile `json:"u,omitempty"`
		MaxTokens   int      `json:"m"`
		Temperature float64  `json:"t"`
		TopP        float64  `json:"k"`
	}{req.Prompt, req.Profile, req.MaxNewTokens, req.Temperature, req.TopP})
	sum := sha256.Sum256(payload)
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// NewRedisClient parses a redis:// URL. An empty URL yields nil, which
// disables caching.
func NewRedisClient(url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}
