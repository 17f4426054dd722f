package usagestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aiwriterpros/aiwriter/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// maxWatchRetries bounds how often Update re-runs its WATCH transaction when
// the key changes underneath it before reporting a conflict.
const maxWatchRetries = 1

// RedisStore keeps each usage record as a JSON document under
// "usage:{user_id}". Updates run inside WATCH/MULTI so the version check and
// the write are atomic.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis at url (redis://...) and verifies the
// connection.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreFromClient(client), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "usage:"}
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) key(userID uuid.UUID) string {
	return s.prefix + userID.String()
}

func (s *RedisStore) Get(ctx context.Context, userID uuid.UUID) (*domain.UsageRecord, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get usage record: %w", err)
	}
	return decodeRecord(data)
}

func (s *RedisStore) Insert(ctx context.Context, rec *domain.UsageRecord) (*domain.UsageRecord, error) {
	stored := rec.Clone()
	stored.Version = 1
	stampInsert(stored)

	data, err := encodeRecord(stored)
	if err != nil {
		return nil, err
	}

	ok, err := s.client.SetNX(ctx, s.key(rec.UserID), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to insert usage record: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyExists
	}
	return stored, nil
}

func (s *RedisStore) Update(ctx context.Context, userID uuid.UUID, expectedVersion int64, patch domain.UsagePatch) (*domain.UsageRecord, error) {
	key := s.key(userID)
	var updated *domain.UsageRecord

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}

		rec, err := decodeRecord(data)
		if err != nil {
			return err
		}
		if rec.Version != expectedVersion {
			return ErrVersionConflict
		}

		applyPatch(rec, patch)

		out, err := encodeRecord(rec)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = rec
		return nil
	}

	for attempt := 0; attempt <= maxWatchRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return updated, nil
		case errors.Is(err, redis.TxFailedErr):
			// The key changed between WATCH and EXEC; re-read decides.
			continue
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrVersionConflict):
			return nil, err
		default:
			return nil, fmt.Errorf("failed to update usage record: %w", err)
		}
	}
	return nil, ErrVersionConflict
}

// redisRecord is the JSON document stored per user.
type redisRecord struct {
	UserID             uuid.UUID       `json:"user_id"`
	Plan               domain.PlanTier `json:"plan"`
	IsTrialActive      bool            `json:"is_trial_active"`
	TrialStartedAt     *time.Time      `json:"trial_started_at,omitempty"`
	TrialEndsAt        *time.Time      `json:"trial_ends_at,omitempty"`
	WordsUsedThisMonth int64           `json:"words_used_this_month"`
	WordLimit          domain.Limit    `json:"word_limit"`
	GenerationsToday   int64           `json:"generations_today"`
	GenerationLimit    domain.Limit    `json:"generation_limit"`
	LastGenerationDate time.Time       `json:"last_generation_date"`
	LastWordReset      time.Time       `json:"last_word_reset"`
	Version            int64           `json:"version"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func encodeRecord(r *domain.UsageRecord) ([]byte, error) {
	data, err := json.Marshal(redisRecord{
		UserID:             r.UserID,
		Plan:               r.Plan,
		IsTrialActive:      r.IsTrialActive,
		TrialStartedAt:     r.TrialStartedAt,
		TrialEndsAt:        r.TrialEndsAt,
		WordsUsedThisMonth: r.WordsUsedThisMonth,
		WordLimit:          r.WordLimit,
		GenerationsToday:   r.GenerationsToday,
		GenerationLimit:    r.GenerationLimit,
		LastGenerationDate: r.LastGenerationDate,
		LastWordReset:      r.LastWordReset,
		Version:            r.Version,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal usage record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (*domain.UsageRecord, error) {
	var r redisRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal usage record: %w", err)
	}
	return &domain.UsageRecord{
		UserID:             r.UserID,
		Plan:               r.Plan,
		IsTrialActive:      r.IsTrialActive,
		TrialStartedAt:     r.TrialStartedAt,
		TrialEndsAt:        r.TrialEndsAt,
		WordsUsedThisMonth: r.WordsUsedThisMonth,
		WordLimit:          r.WordLimit,
		GenerationsToday:   r.GenerationsToday,
		GenerationLimit:    r.GenerationLimit,
		LastGenerationDate: r.LastGenerationDate.UTC(),
		LastWordReset:      r.LastWordReset.UTC(),
		Version:            r.Version,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}, nil
}
