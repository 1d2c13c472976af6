// Package memory keeps every repository collection in process memory. It
// backs the test suites and the single-instance "memory" store backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"audionote-backend/constant"
	"audionote-backend/entities"
	"audionote-backend/repository"
)

type Repo struct {
	mu             sync.RWMutex
	recordings     map[string]*entities.Recording
	deduplications map[string]*entities.Deduplication
	sessions       map[string]*entities.ChunkSession
	chunks         map[string]map[int]entities.UploadChunk
	transcriptions map[string]*entities.Transcription
}

var _ repository.Repository = (*Repo)(nil)

func NewRepo() *Repo {
	return &Repo{
		recordings:     make(map[string]*entities.Recording),
		deduplications: make(map[string]*entities.Deduplication),
		sessions:       make(map[string]*entities.ChunkSession),
		chunks:         make(map[string]map[int]entities.UploadChunk),
		transcriptions: make(map[string]*entities.Transcription),
	}
}

func (r *Repo) Migrate(ctx context.Context) error {
	return nil
}

func (r *Repo) CreateRecording(ctx context.Context, recording *entities.Recording) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.recordings[recording.ID]; ok {
		return repository.ErrDuplicateKey
	}
	stored := *recording
	r.recordings[recording.ID] = &stored
	return nil
}

func (r *Repo) FindRecordingById(ctx context.Context, id string) (*entities.Recording, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recording, ok := r.recordings[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	found := *recording
	return &found, nil
}

func (r *Repo) MarkProcessing(ctx context.Context, id, filePath, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	recording, ok := r.recordings[id]
	if !ok || recording.FilePath != filePath || recording.UserID != userID || recording.Status != constant.RecordingStatusUploaded {
		return repository.ErrStatusGuard
	}
	recording.Status = constant.RecordingStatusProcessing
	recording.ProcessingStartedAt = &at
	return nil
}

func (r *Repo) MarkProcessed(ctx context.Context, id, transcript, recommendations string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	recording, ok := r.recordings[id]
	if !ok || recording.Status != constant.RecordingStatusProcessing {
		return repository.ErrStatusGuard
	}
	recording.Status = constant.RecordingStatusProcessed
	recording.Transcript = &transcript
	recording.Recommendations = &recommendations
	recording.ProcessedAt = &at
	return nil
}

func (r *Repo) MarkFailed(ctx context.Context, id, message string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	recording, ok := r.recordings[id]
	if !ok || recording.Status != constant.RecordingStatusProcessing {
		return repository.ErrStatusGuard
	}
	recording.Status = constant.RecordingStatusFailed
	recording.Error = &message
	recording.FailedAt = &at
	return nil
}

func (r *Repo) ListRecordingsByUser(ctx context.Context, userID string, limit int) ([]*entities.Recording, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recordings := make([]*entities.Recording, 0)
	for _, recording := range r.recordings {
		if recording.UserID == userID {
			found := *recording
			recordings = append(recordings, &found)
		}
	}
	sort.Slice(recordings, func(i, j int) bool {
		return recordings[i].CreatedAt.After(recordings[j].CreatedAt)
	})
	if limit > 0 && len(recordings) > limit {
		recordings = recordings[:limit]
	}
	return recordings, nil
}

func (r *Repo) DeleteRecording(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.recordings, id)
	return nil
}

func (r *Repo) FailStuckRecordings(ctx context.Context, startedBefore time.Time, message string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, recording := range r.recordings {
		if recording.Status != constant.RecordingStatusProcessing || recording.ProcessingStartedAt == nil {
			continue
		}
		if !recording.ProcessingStartedAt.Before(startedBefore) {
			continue
		}
		msg, failedAt := message, at
		recording.Status = constant.RecordingStatusFailed
		recording.Error = &msg
		recording.FailedAt = &failedAt
		count++
	}
	return count, nil
}

func (r *Repo) FindDeduplication(ctx context.Context, signature string) (*entities.Deduplication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dedup, ok := r.deduplications[signature]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	found := *dedup
	return &found, nil
}

func (r *Repo) CreateDeduplication(ctx context.Context, dedup *entities.Deduplication) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.deduplications[dedup.Signature]; ok {
		return false, nil
	}
	stored := *dedup
	r.deduplications[dedup.Signature] = &stored
	return true, nil
}

func (r *Repo) ReplaceDeduplication(ctx context.Context, dedup *entities.Deduplication, expiredBefore int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.deduplications[dedup.Signature]
	if !ok || existing.Timestamp >= expiredBefore {
		return false, nil
	}
	stored := *dedup
	r.deduplications[dedup.Signature] = &stored
	return true, nil
}

func (r *Repo) DeleteDeduplication(ctx context.Context, signature string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.deduplications, signature)
	return nil
}

func (r *Repo) DeleteExpiredDeduplications(ctx context.Context, beforeMillis int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for signature, dedup := range r.deduplications {
		if dedup.Timestamp < beforeMillis {
			delete(r.deduplications, signature)
			count++
		}
	}
	return count, nil
}

func (r *Repo) DeleteDeduplicationsByRecording(ctx context.Context, recordingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for signature, dedup := range r.deduplications {
		if dedup.RecordingID == recordingID {
			delete(r.deduplications, signature)
		}
	}
	return nil
}

func (r *Repo) MergeChunk(ctx context.Context, session *entities.ChunkSession, chunk *entities.UploadChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.sessions[session.ID]
	if !ok {
		stored = &entities.ChunkSession{
			ID:          session.ID,
			UserID:      session.UserID,
			Filename:    session.Filename,
			MimeType:    session.MimeType,
			TotalChunks: session.TotalChunks,
		}
		r.sessions[session.ID] = stored
		r.chunks[session.ID] = make(map[int]entities.UploadChunk)
	}
	if stored.UserID != session.UserID {
		return repository.ErrChunkOwnerMismatch
	}

	merged := *chunk
	merged.SessionID = session.ID
	r.chunks[session.ID][chunk.ChunkIndex] = merged
	stored.UpdatedAt = session.UpdatedAt
	return nil
}

func (r *Repo) FindChunkSession(ctx context.Context, sessionID string) (*entities.ChunkSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.sessions[sessionID]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	session := *stored
	session.Chunks = make([]entities.UploadChunk, 0, len(r.chunks[sessionID]))
	for _, chunk := range r.chunks[sessionID] {
		session.Chunks = append(session.Chunks, chunk)
	}
	sort.Slice(session.Chunks, func(i, j int) bool {
		return session.Chunks[i].ChunkIndex < session.Chunks[j].ChunkIndex
	})
	return &session, nil
}

func (r *Repo) DeleteChunkSession(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	delete(r.chunks, sessionID)
	return nil
}

func (r *Repo) FindTranscription(ctx context.Context, fileHash string) (*entities.Transcription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	transcription, ok := r.transcriptions[fileHash]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	found := *transcription
	return &found, nil
}

func (r *Repo) SaveTranscription(ctx context.Context, transcription *entities.Transcription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *transcription
	r.transcriptions[transcription.FileHash] = &stored
	return nil
}
