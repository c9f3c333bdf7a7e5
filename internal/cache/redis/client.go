package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/datachat/backend/pkg/logger"
)

// Client caches computed embeddings and generated answers. All methods are
// nil-receiver safe so callers can run without Redis configured.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db, ttlSec int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis cache initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{
		client: client,
		ttl:    time.Duration(ttlSec) * time.Second,
	}, nil
}

func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) SetEmbedding(ctx context.Context, textHash string, embedding []float32) {
	if c == nil {
		return
	}

	data, err := json.Marshal(embedding)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, "embedding:"+textHash, data, c.ttl).Err(); err != nil {
		logger.Warn("Failed to cache embedding", zap.Error(err))
	}
}

func (c *Client) GetEmbedding(ctx context.Context, textHash string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, "embedding:"+textHash).Bytes()
	if err != nil {
		return nil, false
	}

	var embedding []float32
	if err := json.Unmarshal(data, &embedding); err != nil {
		return nil, false
	}

	logger.Debug("Embedding cache hit", zap.String("text_hash", textHash))
	return embedding, true
}

func (c *Client) SetAnswer(ctx context.Context, questionHash string, response interface{}) {
	if c == nil {
		return
	}

	data, err := json.Marshal(response)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, "answer:"+questionHash, data, c.ttl).Err(); err != nil {
		logger.Warn("Failed to cache answer", zap.Error(err))
	}
}

func (c *Client) GetAnswer(ctx context.Context, questionHash string, response interface{}) bool {
	if c == nil {
		return false
	}

	data, err := c.client.Get(ctx, "answer:"+questionHash).Bytes()
	if err != nil {
		return false
	}

	if err := json.Unmarshal(data, response); err != nil {
		return false
	}

	logger.Debug("Answer cache hit", zap.String("question_hash", questionHash))
	return true
}

// InvalidateAnswers drops all cached answers. Called on knowledge-base reset
// and after new documents are ingested, since both change what any cached
// answer would be built from.
func (c *Client) InvalidateAnswers(ctx context.Context) error {
	if c == nil {
		return nil
	}

	iter := c.client.Scan(ctx, 0, "answer:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Answer cache invalidated")
	return nil
}
