package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"audionote-backend/constant"
	"audionote-backend/entities"
	"audionote-backend/repository"
)

type ChunkUpload struct {
	OwnerID     string
	SessionID   string
	ChunkNumber int
	TotalChunks int
	Filename    string
	MimeType    string
	Body        io.Reader
}

type FinalizeInput struct {
	OwnerID     string
	SessionID   string
	TotalChunks int
}

type ChunkAssembler interface {
	AppendChunk(ctx context.Context, chunk ChunkUpload) error
	Finalize(ctx context.Context, input FinalizeInput) (*UploadResult, error)
}

type chunkAssembler struct {
	*ingestor
}

func NewChunkAssembler(opts IngestOptions) ChunkAssembler {
	return &chunkAssembler{ingestor: newIngestor(opts)}
}

func chunkKey(ownerID, sessionID string, index int) string {
	return fmt.Sprintf("%s/%s/%s/%d", constant.ChunkPrefix, ownerID, sessionID, index)
}

func validateChunk(chunk ChunkUpload) error {
	switch {
	case chunk.SessionID == "":
		return missingField("sessionId")
	case chunk.ChunkNumber < 1:
		return missingField("chunkNumber")
	case chunk.TotalChunks < 1:
		return missingField("totalChunks")
	case chunk.ChunkNumber > chunk.TotalChunks:
		return fmt.Errorf("%w: chunkNumber exceeds totalChunks", ErrValidation)
	}
	return nil
}

// AppendChunk stores one chunk and merges it into its session. Chunks for
// different indices may arrive concurrently and in any order; a repeated
// index replaces the earlier copy.
func (a *chunkAssembler) AppendChunk(ctx context.Context, chunk ChunkUpload) error {
	if chunk.OwnerID == "" {
		return ErrUnauthorized
	}
	if err := validateChunk(chunk); err != nil {
		return err
	}
	filename := cleanFilename(chunk.Filename)
	if err := validateAudio(filename, chunk.MimeType); err != nil {
		return err
	}

	logger := zerolog.Ctx(ctx).With().
		Str("session_id", chunk.SessionID).
		Int("chunk_index", chunk.ChunkNumber).
		Str("user_id", chunk.OwnerID).
		Logger()

	key := chunkKey(chunk.OwnerID, chunk.SessionID, chunk.ChunkNumber)
	if err := putCapped(ctx, a.store, key, chunk.Body, a.maxChunkBytes, chunk.MimeType); err != nil {
		logger.Error().Err(err).Msg("failed to store chunk")
		return err
	}

	info, err := a.store.Stat(ctx, key)
	if err != nil {
		deleteObjects(ctx, a.store, key)
		return upstream(err)
	}

	session := &entities.ChunkSession{
		ID:          chunk.SessionID,
		UserID:      chunk.OwnerID,
		Filename:    filename,
		MimeType:    chunk.MimeType,
		TotalChunks: chunk.TotalChunks,
		UpdatedAt:   a.now(),
	}
	err = a.repo.MergeChunk(ctx, session, &entities.UploadChunk{
		ChunkIndex: chunk.ChunkNumber,
		Path:       key,
		Size:       info.Size,
	})
	if errors.Is(err, repository.ErrChunkOwnerMismatch) {
		logger.Warn().Msg("chunk appended to another user's session")
		deleteObjects(ctx, a.store, key)
		return ErrSessionOwnerMismatch
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to merge chunk")
		return upstream(err)
	}

	logger.Debug().Int64("size", info.Size).Msg("chunk stored")
	return nil
}

// Finalize concatenates chunks 1..N of a complete session into one audio
// object and registers it exactly like a single-shot upload.
func (a *chunkAssembler) Finalize(ctx context.Context, input FinalizeInput) (*UploadResult, error) {
	if input.OwnerID == "" {
		return nil, ErrUnauthorized
	}
	if input.SessionID == "" {
		return nil, missingField("sessionId")
	}
	if input.TotalChunks < 1 {
		return nil, missingField("totalChunks")
	}

	ctx, cancel := detach(ctx, a.timeout)
	defer cancel()
	logger := zerolog.Ctx(ctx).With().Str("session_id", input.SessionID).Str("user_id", input.OwnerID).Logger()

	session, err := a.repo.FindChunkSession(ctx, input.SessionID)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, upstream(err)
	}
	if session.UserID != input.OwnerID {
		return nil, ErrSessionOwnerMismatch
	}
	if session.TotalChunks != input.TotalChunks || len(session.Chunks) != input.TotalChunks {
		return nil, fmt.Errorf("%w: received %d of %d", ErrIncompleteSession, len(session.Chunks), input.TotalChunks)
	}
	for i, chunk := range session.Chunks {
		if chunk.ChunkIndex != i+1 {
			return nil, fmt.Errorf("%w: chunk %d missing", ErrIncompleteSession, i+1)
		}
	}

	key := a.audioKey(input.OwnerID, session.Filename)
	if err := a.concatenate(ctx, session, key); err != nil {
		logger.Error().Err(err).Msg("failed to assemble chunks")
		return nil, err
	}

	result, err := a.register(ctx, input.OwnerID, key, session.Filename, session.MimeType)
	if err != nil {
		return nil, err
	}

	report := a.cleanupSession(ctx, session)
	logger.Info().
		Str("recording_id", result.RecordingID).
		Int("cleanup_attempted", report.Attempted).
		Int("cleanup_failed", report.Failed).
		Msg("chunked upload finalized")
	return result, nil
}

// concatenate streams the chunk objects in ascending index order into key.
func (a *chunkAssembler) concatenate(ctx context.Context, session *entities.ChunkSession, key string) error {
	readers := make([]io.Reader, 0, len(session.Chunks))
	for _, chunk := range session.Chunks {
		rc, err := a.store.Get(ctx, chunk.Path)
		if err != nil {
			return upstream(fmt.Errorf("open chunk %d: %w", chunk.ChunkIndex, err))
		}
		defer rc.Close()
		readers = append(readers, rc)
	}

	if err := a.store.Put(ctx, key, io.MultiReader(readers...), -1, session.MimeType); err != nil {
		return upstream(err)
	}
	return nil
}

func (a *chunkAssembler) cleanupSession(ctx context.Context, session *entities.ChunkSession) CleanupReport {
	keys := make([]string, 0, len(session.Chunks))
	for _, chunk := range session.Chunks {
		keys = append(keys, chunk.Path)
	}
	report := deleteObjects(ctx, a.store, keys...)

	err := a.repo.DeleteChunkSession(ctx, session.ID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("session_id", session.ID).Msg("failed to delete chunk session")
	}
	report.record(err)
	return report
}
