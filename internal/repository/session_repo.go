package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/gema-code-review/internal/models"
)

// SessionRepository mirrors session snapshots so a restarted console can pick a session
// back up. Entries expire with the session.
type SessionRepository interface {
	Save(ctx context.Context, snapshot models.SessionSnapshot) error
	Load(ctx context.Context, sessionID string) (models.SessionSnapshot, bool, error)
	Delete(ctx context.Context, sessionID string) error
}

type sessionRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewSessionRepository constructs a Redis-backed session mirror.
func NewSessionRepository(client *redis.Client, prefix string, ttl time.Duration) SessionRepository {
	if prefix == "" {
		prefix = "codereview"
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &sessionRepository{client: client, prefix: prefix, ttl: ttl}
}

func (r *sessionRepository) Save(ctx context.Context, snapshot models.SessionSnapshot) error {
	if snapshot.SessionID == "" {
		return fmt.Errorf("session id is required")
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode session snapshot: %w", err)
	}

	return r.client.Set(ctx, r.key(snapshot.SessionID), payload, r.ttl).Err()
}

func (r *sessionRepository) Load(ctx context.Context, sessionID string) (models.SessionSnapshot, bool, error) {
	payload, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.SessionSnapshot{}, false, nil
		}
		return models.SessionSnapshot{}, false, err
	}

	var snapshot models.SessionSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return models.SessionSnapshot{}, false, fmt.Errorf("decode session snapshot: %w", err)
	}
	if snapshot.SessionID == "" {
		snapshot.SessionID = sessionID
	}

	return snapshot, true, nil
}

func (r *sessionRepository) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, r.key(sessionID)).Err()
}

func (r *sessionRepository) key(sessionID string) string {
	return r.prefix + ":session:" + sessionID
}
