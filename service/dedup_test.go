package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audionote-backend/constant"
	"audionote-backend/entities"
	"audionote-backend/service"
)

func TestSignature(t *testing.T) {
	now := time.UnixMilli(1714557600000)

	assert.Equal(t, "alice_42_57151920", service.Signature("alice", 42, now, 30*time.Second))
	assert.Equal(t,
		service.Signature("alice", 42, now, 30*time.Second),
		service.Signature("alice", 42, now.Add(29*time.Second), 30*time.Second),
	)
	assert.NotEqual(t,
		service.Signature("alice", 42, now, 30*time.Second),
		service.Signature("alice", 42, now.Add(30*time.Second), 30*time.Second),
	)
}

func TestDedupLedger(t *testing.T) {
	ctx := testContext()

	t.Run("register then duplicate", func(t *testing.T) {
		f := newFixture(t)

		first, err := f.ledger.CheckAndRegister(ctx, "alice", 10, "rec-1")
		require.NoError(t, err)
		assert.False(t, first.IsDuplicate)
		assert.Equal(t, "rec-1", first.RecordingID)

		second, err := f.ledger.CheckAndRegister(ctx, "alice", 10, "rec-2")
		require.NoError(t, err)
		assert.True(t, second.IsDuplicate)
		assert.Equal(t, "rec-1", second.RecordingID)
		assert.Equal(t, first.Signature, second.Signature)
	})

	t.Run("expired entry is replaced", func(t *testing.T) {
		f := newFixture(t)

		first, err := f.ledger.CheckAndRegister(ctx, "alice", 10, "rec-1")
		require.NoError(t, err)
		require.NoError(t, f.repo.DeleteDeduplication(ctx, first.Signature))
		_, err = f.repo.CreateDeduplication(ctx, expiredEntry(first.Signature, f.clock.Now()))
		require.NoError(t, err)

		second, err := f.ledger.CheckAndRegister(ctx, "alice", 10, "rec-2")
		require.NoError(t, err)
		assert.False(t, second.IsDuplicate)

		stored, err := f.repo.FindDeduplication(ctx, first.Signature)
		require.NoError(t, err)
		assert.Equal(t, "rec-2", stored.RecordingID)
	})

	t.Run("sweep removes only expired entries", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.ledger.CheckAndRegister(ctx, "alice", 10, "rec-1")
		require.NoError(t, err)
		f.clock.Advance(constant.DedupTTL + time.Second)
		_, err = f.ledger.CheckAndRegister(ctx, "alice", 11, "rec-2")
		require.NoError(t, err)

		deleted, err := f.sweeper.SweepDeduplications(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		deleted, err = f.sweeper.SweepDeduplications(ctx)
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})

	t.Run("release frees the signature", func(t *testing.T) {
		f := newFixture(t)

		first, err := f.ledger.CheckAndRegister(ctx, "alice", 10, "rec-1")
		require.NoError(t, err)
		f.ledger.Release(ctx, first.Signature)

		second, err := f.ledger.CheckAndRegister(ctx, "alice", 10, "rec-2")
		require.NoError(t, err)
		assert.False(t, second.IsDuplicate)
	})
}

func expiredEntry(signature string, now time.Time) *entities.Deduplication {
	return &entities.Deduplication{
		Signature:   signature,
		RecordingID: "rec-1",
		UserID:      "alice",
		Timestamp:   now.Add(-time.Minute).UnixMilli(),
	}
}
