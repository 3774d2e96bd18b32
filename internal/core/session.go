package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrSessionNotFound is returned for unknown or expired ingestion sessions.
	ErrSessionNotFound = errors.New("ingestion session not found")
	// ErrSessionBusy is returned when a command arrives while another command
	// of the same session is still running.
	ErrSessionBusy = errors.New("ingestion session is busy")
)

// DefaultSessionTTL is how long an idle ingestion session is kept.
const DefaultSessionTTL = time.Hour

// SessionStore keeps ingestion runs between commands. Every Save replaces
// the stored run and restarts its expiry.
type SessionStore interface {
	Save(ctx context.Context, s State) error
	Load(ctx context.Context, id string) (State, error)
	Delete(ctx context.Context, id string) error
}

// MemorySessionStore holds runs in process memory.
type MemorySessionStore struct {
	ttl time.Duration

	mu       sync.RWMutex
	sessions map[string]State
	timers   map[string]*time.Timer
}

// NewMemorySessionStore returns an empty store. Runs not saved again within
// ttl are dropped.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemorySessionStore{
		ttl:      ttl,
		sessions: make(map[string]State),
		timers:   make(map[string]*time.Timer),
	}
}

func (m *MemorySessionStore) Save(_ context.Context, s State) error {
	if s.ID == "" {
		return fmt.Errorf("save session: empty id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.ID] = s
	if t, ok := m.timers[s.ID]; ok {
		t.Stop()
	}
	id := s.ID
	m.timers[id] = time.AfterFunc(m.ttl, func() { m.expire(id) })
	return nil
}

func (m *MemorySessionStore) Load(_ context.Context, id string) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.expire(id)
	return nil
}

// Len returns the number of live sessions.
func (m *MemorySessionStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemorySessionStore) expire(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.timers[id]; ok {
		t.Stop()
		delete(m.timers, id)
	}
	delete(m.sessions, id)
}

// RedisSessionStore keeps runs as JSON values in Redis so several server
// instances can share them.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSessionStore connects to redisURL and checks it answers.
func NewRedisSessionStore(ctx context.Context, redisURL, prefix string, ttl time.Duration) (*RedisSessionStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisSessionStoreFromClient(client, prefix, ttl), nil
}

// NewRedisSessionStoreFromClient wraps an existing client.
func NewRedisSessionStoreFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessionStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisSessionStore) Save(ctx context.Context, s State) error {
	if s.ID == "" {
		return fmt.Errorf("save session: empty id")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	if err := r.client.Set(ctx, r.key(s.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	return nil
}

func (r *RedisSessionStore) Load(ctx context.Context, id string) (State, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return State{}, fmt.Errorf("load session %s: %w", id, err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return s, nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// Close releases the underlying client.
func (r *RedisSessionStore) Close() error {
	return r.client.Close()
}

func (r *RedisSessionStore) key(id string) string {
	return r.prefix + id
}
