package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

const keyPrefix = "session:"

// Store persists sessions in Redis with a sliding TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore connects to the Redis instance at redisURL.
func NewStore(redisURL string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewStoreWithClient(client, ttl), nil
}

func NewStoreWithClient(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Create stores sess under a freshly generated id and sets sess.ID.
func (s *Store) Create(ctx context.Context, sess *Session) error {
	id, err := NewID()
	if err != nil {
		return fmt.Errorf("failed to generate session id: %w", err)
	}
	sess.ID = id
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	return s.Save(ctx, sess)
}

// Save overwrites an existing session and refreshes its TTL.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return s.client.Set(ctx, keyPrefix+sess.ID, data, s.ttl).Err()
}

// Get loads a session and extends its TTL.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	data, err := s.client.GetEx(ctx, keyPrefix+id, s.ttl).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	sess.ID = id
	return &sess, nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.client.Del(ctx, keyPrefix+id).Err()
}
