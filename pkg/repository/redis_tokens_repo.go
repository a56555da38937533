package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/haqqman/gatekeeper/pkg/domain"
)

// RedisTokensRepository persists issued tokens in Redis. Each token lives
// under its own key with a TTL matching its expiry, so expired entries
// vanish without a sweeper. A per-owner set indexes the values of each kind
// for bulk deletion.
type RedisTokensRepository struct {
	client *redis.Client
}

// NewRedisTokensRepository creates a Redis-backed tokens repository.
func NewRedisTokensRepository(client *redis.Client) *RedisTokensRepository {
	return &RedisTokensRepository{client: client}
}

func tokenKey(kind domain.TokenKind, value string) string {
	return fmt.Sprintf("token:%s:%s", kind, value)
}

func ownerKey(kind domain.TokenKind, ownerID uuid.UUID) string {
	return fmt.Sprintf("tokens:%s:owner:%s", kind, ownerID)
}

// Create stores a token with a TTL running to its expiry and indexes its
// value under the owner set.
func (r *RedisTokensRepository) Create(ctx context.Context, token *domain.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, tokenKey(token.Kind, token.Value), data, ttl)
	pipe.SAdd(ctx, ownerKey(token.Kind, token.OwnerID), token.Value)
	// GT treats a key without a TTL as infinite, so NX must seed the
	// index TTL before GT can extend it.
	pipe.ExpireNX(ctx, ownerKey(token.Kind, token.OwnerID), ttl)
	pipe.ExpireGT(ctx, ownerKey(token.Kind, token.OwnerID), ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// FindByValue retrieves a live token by kind and value.
func (r *RedisTokensRepository) FindByValue(ctx context.Context, kind domain.TokenKind, value string) (*domain.Token, error) {
	data, err := r.client.Get(ctx, tokenKey(kind, value)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	token := &domain.Token{}
	if err := json.Unmarshal(data, token); err != nil {
		return nil, err
	}
	if token.Blacklisted {
		return nil, domain.ErrTokenNotFound
	}
	return token, nil
}

// FindByValueAndOwner retrieves a live token by kind, value, and owner.
func (r *RedisTokensRepository) FindByValueAndOwner(ctx context.Context, kind domain.TokenKind, value string, ownerID uuid.UUID) (*domain.Token, error) {
	token, err := r.FindByValue(ctx, kind, value)
	if err != nil {
		return nil, err
	}
	if token.OwnerID != ownerID {
		return nil, domain.ErrTokenNotFound
	}
	return token, nil
}

// DeleteByValue deletes a token by kind and value.
func (r *RedisTokensRepository) DeleteByValue(ctx context.Context, kind domain.TokenKind, value string) error {
	token, err := r.FindByValue(ctx, kind, value)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, tokenKey(kind, value))
	pipe.SRem(ctx, ownerKey(kind, token.OwnerID), value)
	_, err = pipe.Exec(ctx)
	return err
}

// DeleteByOwnerAndKind deletes every token of a kind held by an owner.
// Deleting zero entries is not an error.
func (r *RedisTokensRepository) DeleteByOwnerAndKind(ctx context.Context, ownerID uuid.UUID, kind domain.TokenKind) error {
	values, err := r.client.SMembers(ctx, ownerKey(kind, ownerID)).Result()
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	for _, value := range values {
		pipe.Del(ctx, tokenKey(kind, value))
	}
	pipe.Del(ctx, ownerKey(kind, ownerID))
	_, err = pipe.Exec(ctx)
	return err
}

// Blacklist marks a token as revoked while preserving its remaining TTL.
func (r *RedisTokensRepository) Blacklist(ctx context.Context, kind domain.TokenKind, value string) error {
	token, err := r.FindByValue(ctx, kind, value)
	if err != nil {
		return err
	}
	token.Blacklisted = true
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, tokenKey(kind, value), data, redis.KeepTTL).Err()
}
