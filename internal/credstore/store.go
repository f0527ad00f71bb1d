// Package credstore caches the per-device bearer tokens required for
// relay control and reading submission. Lookups and writes never
// return errors: storage failures are logged and swallowed, and a
// missing token is reported as the empty string.
package credstore

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/go-redis/redis/v8"
)

// Store is a last-write-wins token cache keyed by device identifier.
// Tokens are written through to Redis when a client is configured so
// they survive restarts; the in-memory map keeps the store working
// when Redis is down.
type Store struct {
	rdb          *redis.Client
	defaultToken string

	mu  sync.RWMutex
	mem map[string]string
}

// New creates a Store. redisAddr may be empty for a purely in-memory
// store. defaultToken is the configured fallback returned by Resolve
// when no token is known for a device; it is injected here and
// nowhere else.
func New(redisAddr, defaultToken string) *Store {
	s := &Store{
		defaultToken: defaultToken,
		mem:          make(map[string]string),
	}
	if redisAddr == "" {
		return s
	}

	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   0,
	})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		log.Println("Could not connect to Redis, token cache is memory-only:", err)
		return s
	}
	s.rdb = client
	return s
}

func tokenKey(deviceID string) string {
	return fmt.Sprintf("device:%s:token", deviceID)
}

// Put stores the token for a device, overwriting any previous value.
func (s *Store) Put(deviceID, token string) {
	if deviceID == "" {
		return
	}

	s.mu.Lock()
	s.mem[deviceID] = token
	s.mu.Unlock()

	if s.rdb == nil {
		return
	}
	// Tokens never expire on their own; they are replaced when a
	// fresher one is presented.
	if err := s.rdb.Set(context.Background(), tokenKey(deviceID), token, 0).Err(); err != nil {
		log.Printf("Failed to persist token for device %s: %v", deviceID, err)
	}
}

// Get returns the cached token for a device, or "" when none is
// known. The configured default is not applied here; use Resolve.
func (s *Store) Get(deviceID string) string {
	if deviceID == "" {
		return ""
	}

	if s.rdb != nil {
		token, err := s.rdb.Get(context.Background(), tokenKey(deviceID)).Result()
		if err == nil {
			return token
		}
		if err != redis.Nil {
			log.Printf("Failed to read token for device %s: %v", deviceID, err)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mem[deviceID]
}

// Resolve picks the token for an operation: an explicit caller-supplied
// token wins, then the cached one, then the configured default. An
// empty result means the operation cannot be authenticated.
func (s *Store) Resolve(deviceID, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if token := s.Get(deviceID); token != "" {
		return token
	}
	return s.defaultToken
}
