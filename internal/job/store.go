package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces job records inside the shared Redis database,
// keeping them apart from rate-limiter counters.
const keyPrefix = "job:"

var (
	// ErrRecordNotFound is returned for ids that are absent or expired.
	// The two cases are deliberately indistinguishable.
	ErrRecordNotFound = errors.New("job record not found or expired")
)

// StoreEntry is one record key with its remaining lifetime, as seen by Scan.
type StoreEntry struct {
	ID  string
	TTL time.Duration
}

// RecordStore keeps job records in Redis with a per-key TTL. Every write is
// a whole-record replacement that resets the key's TTL, so expiry measures
// time since the last state change. Safe for concurrent use.
type RecordStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRecordStore creates a RecordStore on top of an existing Redis client.
func NewRecordStore(client *redis.Client, logger *slog.Logger) *RecordStore {
	return &RecordStore{
		client: client,
		logger: logger,
	}
}

// Put serializes the record and writes it under the job's key with the given
// TTL. The TTL is always reset, including on read-modify-write updates.
func (s *RecordStore) Put(ctx context.Context, id string, rec *Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+id, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	s.logger.Debug("Record written",
		slog.String("job_id", id),
		slog.String("status", string(rec.Status)),
		slog.Duration("ttl", ttl),
	)

	return nil
}

// Get fetches and deserializes the record for an id. Missing and expired
// keys both yield ErrRecordNotFound.
func (s *RecordStore) Get(ctx context.Context, id string) (*Record, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	return &rec, nil
}

// Delete removes the record for an id. Deleting a missing key is not an error.
func (s *RecordStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// Scan walks all record keys and reports each with its remaining TTL.
// Keys that disappear mid-scan are skipped.
func (s *RecordStore) Scan(ctx context.Context) ([]StoreEntry, error) {
	var entries []StoreEntry

	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		ttl, err := s.client.TTL(ctx, key).Result()
		if err != nil {
			s.logger.Warn("Failed to read TTL during scan",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			continue
		}

		entries = append(entries, StoreEntry{
			ID:  strings.TrimPrefix(key, keyPrefix),
			TTL: ttl,
		})
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("record scan failed: %w", err)
	}

	return entries, nil
}
