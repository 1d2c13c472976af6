// Package redis provides a deduplication ledger whose entries expire through
// key TTLs, so the periodic sweep has nothing left to delete.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"audionote-backend/entities"
	"audionote-backend/repository"
)

const keyPrefix = "dedup:"

type Ledger struct {
	client *redis.Client
	ttl    time.Duration
}

var _ repository.DeduplicationRepository = (*Ledger)(nil)

func NewLedger(client *redis.Client, ttl time.Duration) *Ledger {
	return &Ledger{client: client, ttl: ttl}
}

func signatureKey(signature string) string {
	return keyPrefix + "sig:" + signature
}

func recordingKey(recordingID string) string {
	return keyPrefix + "rec:" + recordingID
}

func (l *Ledger) FindDeduplication(ctx context.Context, signature string) (*entities.Deduplication, error) {
	raw, err := l.client.Get(ctx, signatureKey(signature)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	dedup := &entities.Deduplication{}
	if err := json.Unmarshal(raw, dedup); err != nil {
		return nil, fmt.Errorf("decode dedup entry %s: %w", signature, err)
	}
	return dedup, nil
}

func (l *Ledger) CreateDeduplication(ctx context.Context, dedup *entities.Deduplication) (bool, error) {
	raw, err := json.Marshal(dedup)
	if err != nil {
		return false, err
	}

	created, err := l.client.SetNX(ctx, signatureKey(dedup.Signature), raw, l.ttl).Result()
	if err != nil || !created {
		return false, err
	}

	pipe := l.client.TxPipeline()
	pipe.SAdd(ctx, recordingKey(dedup.RecordingID), dedup.Signature)
	pipe.Expire(ctx, recordingKey(dedup.RecordingID), l.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		// an unindexed entry could not be forgotten with its recording
		if delErr := l.client.Del(ctx, signatureKey(dedup.Signature)).Err(); delErr != nil {
			err = errors.Join(err, delErr)
		}
		return false, fmt.Errorf("index dedup entry by recording: %w", err)
	}
	return true, nil
}

// ReplaceDeduplication never replaces anything: an expired key is already
// gone, so CreateDeduplication succeeds for it instead.
func (l *Ledger) ReplaceDeduplication(ctx context.Context, dedup *entities.Deduplication, expiredBefore int64) (bool, error) {
	return false, nil
}

func (l *Ledger) DeleteDeduplication(ctx context.Context, signature string) error {
	return l.client.Del(ctx, signatureKey(signature)).Err()
}

func (l *Ledger) DeleteExpiredDeduplications(ctx context.Context, beforeMillis int64) (int64, error) {
	return 0, nil
}

func (l *Ledger) DeleteDeduplicationsByRecording(ctx context.Context, recordingID string) error {
	signatures, err := l.client.SMembers(ctx, recordingKey(recordingID)).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(signatures)+1)
	for _, signature := range signatures {
		keys = append(keys, signatureKey(signature))
	}
	keys = append(keys, recordingKey(recordingID))
	return l.client.Del(ctx, keys...).Err()
}
