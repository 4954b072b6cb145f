package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"AlphaDesk/internal/domain/models"
)

// RedisKeyStore reads encrypted user provider keys from the hash <prefix>:userkeys:<userID>.
type RedisKeyStore struct {
	client *redis.Client
	prefix string
}

func NewRedisKeyStore(client *redis.Client, prefix string) *RedisKeyStore {
	return &RedisKeyStore{client: client, prefix: prefix}
}

func (s *RedisKeyStore) hashKey(userID string) string {
	if s.prefix == "" {
		return "userkeys:" + userID
	}
	return fmt.Sprintf("%s:userkeys:%s", s.prefix, userID)
}

func (s *RedisKeyStore) EncryptedKey(ctx context.Context, userID string, provider models.ProviderID) (string, error) {
	v, err := s.client.HGet(ctx, s.hashKey(userID), string(provider)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

// MemoryKeyStore holds encrypted keys in process.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[string]string
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[string]string)}
}

func (s *MemoryKeyStore) Put(userID string, provider models.ProviderID, encrypted string) {
	s.mu.Lock()
	s.keys[userID+"/"+string(provider)] = encrypted
	s.mu.Unlock()
}

func (s *MemoryKeyStore) EncryptedKey(_ context.Context, userID string, provider models.ProviderID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[userID+"/"+string(provider)], nil
}
