package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"github.com/kursadbilgin/issuance-engine/internal/printing"
	goredis "github.com/redis/go-redis/v9"
)

const defaultDocumentTTL = 72 * time.Hour

var _ printing.DocumentStore = (*RedisDocumentStore)(nil)

// RedisDocumentStore caches document handles keyed by application number
// and document kind. Entries expire; the renderer stays the source of
// truth for the artifacts themselves.
type RedisDocumentStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewRedisDocumentStore(client *goredis.Client, ttl time.Duration) (*RedisDocumentStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultDocumentTTL
	}

	return &RedisDocumentStore{client: client, ttl: ttl}, nil
}

func (s *RedisDocumentStore) Put(ctx context.Context, handle domain.DocumentHandle) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("document store is not initialized")
	}

	payload, err := json.Marshal(handle)
	if err != nil {
		return fmt.Errorf("failed to encode document handle: %w", err)
	}

	key := documentKey(handle.ApplicationNo, handle.Kind)
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store document handle: %w", err)
	}

	return nil
}

func (s *RedisDocumentStore) Get(ctx context.Context, applicationNo string, kind domain.DocumentKind) (*domain.DocumentHandle, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("document store is not initialized")
	}

	payload, err := s.client.Get(ctx, documentKey(applicationNo, kind)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("%w: no %s document for %s", domain.ErrNotFound, strings.ToLower(kind.String()), applicationNo)
		}
		return nil, fmt.Errorf("failed to load document handle: %w", err)
	}

	var handle domain.DocumentHandle
	if err := json.Unmarshal(payload, &handle); err != nil {
		return nil, fmt.Errorf("failed to decode document handle: %w", err)
	}

	return &handle, nil
}

func documentKey(applicationNo string, kind domain.DocumentKind) string {
	return fmt.Sprintf("document:%s:%s", strings.TrimSpace(applicationNo), strings.ToLower(kind.String()))
}
