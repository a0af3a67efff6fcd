package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix      = "session:"
	sessionEndedKeyPrefix = "session:ended:"
)

// NewRedisClient returns a configured go-redis client from URL (e.g., redis://localhost:6379/0).
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

// startSessionScript stores the identity unless the sid carries a tombstone.
// KEYS[1]=session key, KEYS[2]=tombstone key, ARGV[1]=payload, ARGV[2]=ttl ms
var startSessionScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`)

// endSessionScript removes the identity and tombstones the sid.
// KEYS[1]=session key, KEYS[2]=tombstone key, ARGV[1]=ttl ms
var endSessionScript = redis.NewScript(`
redis.call('DEL', KEYS[1])
redis.call('SET', KEYS[2], '1', 'PX', ARGV[1])
return 1
`)

// RedisSessionStore implements SessionStore on go-redis.
type RedisSessionStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisSessionStore keeps sessions (and tombstones of ended ones) for ttl.
func NewRedisSessionStore(client redis.UniversalClient, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisSessionStore{client: client, ttl: ttl}
}

type storedSession struct {
	Identity  Identity  `json:"identity"`
	StartedAt time.Time `json:"started_at"`
}

func (s *RedisSessionStore) Start(ctx context.Context, sid string, identity Identity) error {
	if sid == "" {
		return errors.New("session: empty sid")
	}
	data, err := json.Marshal(storedSession{Identity: identity, StartedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	res, err := startSessionScript.Run(ctx, s.client,
		[]string{sessionKeyPrefix + sid, sessionEndedKeyPrefix + sid},
		string(data), s.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("session: start: %w", err)
	}
	if res == 0 {
		return ErrSessionEnded
	}
	return nil
}

func (s *RedisSessionStore) Current(ctx context.Context, sid string) (*Identity, error) {
	if sid == "" {
		return nil, nil
	}
	val, err := s.client.Get(ctx, sessionKeyPrefix+sid).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: get: %w", err)
	}
	var stored storedSession
	if err := json.Unmarshal([]byte(val), &stored); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	return &stored.Identity, nil
}

func (s *RedisSessionStore) End(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	err := endSessionScript.Run(ctx, s.client,
		[]string{sessionKeyPrefix + sid, sessionEndedKeyPrefix + sid},
		s.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("session: end: %w", err)
	}
	return nil
}
