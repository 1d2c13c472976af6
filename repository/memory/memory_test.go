package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audionote-backend/constant"
	"audionote-backend/entities"
	"audionote-backend/repository"
)

func TestRepo_StatusTransitions(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo()
	now := time.Now()

	require.NoError(t, repo.CreateRecording(ctx, &entities.Recording{
		ID:       "audio_u1_1-a.mp3",
		FilePath: "audio/u1/1-a.mp3",
		UserID:   "u1",
		Status:   constant.RecordingStatusUploaded,
	}))
	assert.ErrorIs(t, repo.CreateRecording(ctx, &entities.Recording{ID: "audio_u1_1-a.mp3"}), repository.ErrDuplicateKey)

	t.Run("guard rejects mismatched owner", func(t *testing.T) {
		err := repo.MarkProcessing(ctx, "audio_u1_1-a.mp3", "audio/u1/1-a.mp3", "u2", now)
		assert.ErrorIs(t, err, repository.ErrStatusGuard)
	})

	t.Run("processed only from processing", func(t *testing.T) {
		assert.ErrorIs(t, repo.MarkProcessed(ctx, "audio_u1_1-a.mp3", "t", "r", now), repository.ErrStatusGuard)
		require.NoError(t, repo.MarkProcessing(ctx, "audio_u1_1-a.mp3", "audio/u1/1-a.mp3", "u1", now))
		assert.ErrorIs(t, repo.MarkProcessing(ctx, "audio_u1_1-a.mp3", "audio/u1/1-a.mp3", "u1", now), repository.ErrStatusGuard)
		require.NoError(t, repo.MarkProcessed(ctx, "audio_u1_1-a.mp3", "t", "r", now))
		assert.ErrorIs(t, repo.MarkFailed(ctx, "audio_u1_1-a.mp3", "late", now), repository.ErrStatusGuard)

		found, err := repo.FindRecordingById(ctx, "audio_u1_1-a.mp3")
		require.NoError(t, err)
		assert.Equal(t, constant.RecordingStatusProcessed, found.Status)
		require.NotNil(t, found.Transcript)
		assert.Equal(t, "t", *found.Transcript)
		assert.Nil(t, found.Error)
	})
}

func TestRepo_Deduplication(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo()

	created, err := repo.CreateDeduplication(ctx, &entities.Deduplication{Signature: "s", RecordingID: "r1", Timestamp: 100})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateDeduplication(ctx, &entities.Deduplication{Signature: "s", RecordingID: "r2", Timestamp: 200})
	require.NoError(t, err)
	assert.False(t, created)

	replaced, err := repo.ReplaceDeduplication(ctx, &entities.Deduplication{Signature: "s", RecordingID: "r2", Timestamp: 200}, 100)
	require.NoError(t, err)
	assert.False(t, replaced, "entry at the cutoff is still live")

	replaced, err = repo.ReplaceDeduplication(ctx, &entities.Deduplication{Signature: "s", RecordingID: "r2", Timestamp: 200}, 101)
	require.NoError(t, err)
	assert.True(t, replaced)

	deleted, err := repo.DeleteExpiredDeduplications(ctx, 200)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	require.NoError(t, repo.DeleteDeduplicationsByRecording(ctx, "r2"))
	_, err = repo.FindDeduplication(ctx, "s")
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)
}

func TestRepo_MergeChunkConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo()
	session := &entities.ChunkSession{ID: "s1", UserID: "u1", Filename: "a.mp3", MimeType: "audio/mpeg", TotalChunks: 8}

	var wg sync.WaitGroup
	for i := 8; i >= 1; i-- {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			assert.NoError(t, repo.MergeChunk(ctx, session, &entities.UploadChunk{ChunkIndex: index, Path: "p", Size: int64(index)}))
		}(i)
	}
	wg.Wait()

	require.NoError(t, repo.MergeChunk(ctx, session, &entities.UploadChunk{ChunkIndex: 3, Path: "p3", Size: 30}))
	err := repo.MergeChunk(ctx, &entities.ChunkSession{ID: "s1", UserID: "u2"}, &entities.UploadChunk{ChunkIndex: 1})
	assert.ErrorIs(t, err, repository.ErrChunkOwnerMismatch)

	found, err := repo.FindChunkSession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, found.Chunks, 8)
	for i, chunk := range found.Chunks {
		assert.Equal(t, i+1, chunk.ChunkIndex)
	}
	assert.Equal(t, "p3", found.Chunks[2].Path)
	assert.Equal(t, int64(30), found.Chunks[2].Size)
}
