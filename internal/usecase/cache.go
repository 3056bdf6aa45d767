package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/example/ocrs/internal/engine"
)

// Cache abstracts the Redis operations used by the use case to make testing easier.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// RedisCache is a concrete implementation backed by go-redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache constructs a new Redis-backed cache adapter.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

// Get returns redis.Nil on a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

type cachedObservation struct {
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
	X          float32 `json:"x"`
	Y          float32 `json:"y"`
	Width      float32 `json:"width"`
	Height     float32 `json:"height"`
}

// ImageDigest is the hex SHA-1 of the image bytes.
func ImageDigest(image []byte) string {
	sum := sha1.Sum(image)
	return hex.EncodeToString(sum[:])
}

// observationCacheKey identifies raw engine output for one image under one
// set of language hints. The confidence threshold is applied after the cache,
// so it is not part of the key.
func observationCacheKey(digest string, language *string) string {
	return fmt.Sprintf("ocr:observations:%s:%s", digest, strings.Join(languagesFor(language), ","))
}

func encodeObservations(observations []engine.Observation) (string, error) {
	payload := make([]cachedObservation, len(observations))
	for i, o := range observations {
		payload[i] = cachedObservation{
			Text:       o.Text,
			Confidence: o.Confidence,
			X:          o.BoundingBox.X,
			Y:          o.BoundingBox.Y,
			Width:      o.BoundingBox.Width,
			Height:     o.BoundingBox.Height,
		}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeObservations(raw string) ([]engine.Observation, error) {
	var payload []cachedObservation
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("cached observation list is empty")
	}
	observations := make([]engine.Observation, len(payload))
	for i, p := range payload {
		observations[i] = engine.Observation{
			Text:       p.Text,
			Confidence: p.Confidence,
			BoundingBox: engine.BoundingBox{
				X:      p.X,
				Y:      p.Y,
				Width:  p.Width,
				Height: p.Height,
			},
		}
	}
	return observations, nil
}
