// Package rediscache provides the Redis-backed ChallengeStore implementation
// for in-flight WebAuthn ceremony challenges (spec.md §4.3).
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/radek-zitek-cloud/sentinel-auth/internal/models"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/repositories"
	"github.com/radek-zitek-cloud/sentinel-auth/pkg/cache"
)

// ChallengeStore is the Redis-backed repositories.ChallengeStore. Keys are
// namespaced under "challenge:" so the store can share a Redis database
// with other cached data without collision.
type ChallengeStore struct {
	client *cache.Client
}

func NewChallengeStore(client *cache.Client) *ChallengeStore {
	return &ChallengeStore{client: client}
}

func challengeKey(id string) string {
	return fmt.Sprintf("challenge:%s", id)
}

func (s *ChallengeStore) Put(ctx context.Context, challenge *models.Challenge, ttl time.Duration) error {
	return s.client.Set(ctx, challengeKey(challenge.ID), challenge, ttl)
}

// Pop retrieves and deletes the challenge in a single round trip (via
// cache.Client.PopJSON's Lua GET+DEL), so two concurrent ceremony completes
// racing on the same challenge id can never both read it (invariant Ch1).
func (s *ChallengeStore) Pop(ctx context.Context, id string) (*models.Challenge, error) {
	var challenge models.Challenge
	err := s.client.PopJSON(ctx, challengeKey(id), &challenge)
	if errors.Is(err, redis.Nil) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}
