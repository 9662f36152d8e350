package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/batyrai/backend/internal/database"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotFound = errors.New("job not found")
	ErrExists   = errors.New("job already exists")
	ErrTerminal = errors.New("job already reached a terminal state")
)

// Store keeps job status documents in Redis with a TTL. Once a
// terminal document is stored it is never overwritten.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func jobKey(jobID string) string {
	return database.KeyPrefixJob + jobID
}

// Create writes the first document of a job.
func (s *Store) Create(ctx context.Context, st Status) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, jobKey(st.JobID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", st.JobID, err)
	}
	if !ok {
		return ErrExists
	}
	return nil
}

// Update replaces the document of a job and refreshes its TTL. It
// returns ErrTerminal if the stored document is already terminal.
func (s *Store) Update(ctx context.Context, st Status) error {
	key := jobKey(st.JobID)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		var current Status
		err := database.GetJSON(ctx, tx, key, &current)
		switch {
		case err == nil:
			if current.State.Terminal() {
				return ErrTerminal
			}
		case errors.Is(err, redis.Nil):
			// Expired or never created; write anyway.
		default:
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return database.SetJSON(ctx, pipe, key, st, s.ttl)
		})
		return err
	}, key)

	if err != nil && !errors.Is(err, ErrTerminal) {
		return fmt.Errorf("failed to update job %s: %w", st.JobID, err)
	}
	return err
}

// Get returns the current document, or ErrNotFound once it expired.
func (s *Store) Get(ctx context.Context, jobID string) (*Status, error) {
	var st Status
	if err := database.GetJSON(ctx, s.rdb, jobKey(jobID), &st); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read job %s: %w", jobID, err)
	}
	return &st, nil
}
