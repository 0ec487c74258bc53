package intake

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/civicdesk/grievance-service/pkg/util/errorutil"
)

const sessionKeyPrefix = "intake:session:"

// RedisSessionStore shares sessions across service instances. Keys expire
// on their own after the TTL; the registry sweep only tidies stragglers.
type RedisSessionStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisSessionStore builds a store whose keys live for ttl after each write.
func NewRedisSessionStore(client redis.UniversalClient, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func sessionKey(sender string) string { return sessionKeyPrefix + sender }

func (r *RedisSessionStore) Load(ctx context.Context, sender string) (*Session, bool, error) {
	raw, err := r.client.Get(ctx, sessionKey(sender)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.StoreUnavailable("load session", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		// A corrupt entry is treated as absent so the sender can start over.
		return nil, false, nil
	}
	return &s, true, nil
}

func (r *RedisSessionStore) Save(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, sessionKey(s.Sender), raw, r.ttl).Err(); err != nil {
		return apperrors.StoreUnavailable("save session", err)
	}
	return nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, sender string) error {
	if err := r.client.Del(ctx, sessionKey(sender)).Err(); err != nil {
		return apperrors.StoreUnavailable("delete session", err)
	}
	return nil
}

func (r *RedisSessionStore) Senders(ctx context.Context) ([]string, error) {
	var senders []string
	iter := r.client.Scan(ctx, 0, sessionKeyPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		senders = append(senders, strings.TrimPrefix(iter.Val(), sessionKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, apperrors.StoreUnavailable("scan sessions", err)
	}
	return senders, nil
}
