package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"audionote-backend/constant"
	"audionote-backend/entities"
)

var (
	ErrRecordNotFound     = errors.New("record not found")
	ErrDuplicateKey       = errors.New("record already exists")
	ErrStatusGuard        = errors.New("recording status guard rejected the update")
	ErrChunkOwnerMismatch = errors.New("chunk session belongs to another user")
)

type RecordingRepository interface {
	CreateRecording(ctx context.Context, recording *entities.Recording) error
	FindRecordingById(ctx context.Context, id string) (*entities.Recording, error)
	// MarkProcessing moves a recording from uploaded to processing only when
	// id, path and owner all match. A zero-row update yields ErrStatusGuard.
	MarkProcessing(ctx context.Context, id, filePath, userID string, at time.Time) error
	MarkProcessed(ctx context.Context, id, transcript, recommendations string, at time.Time) error
	MarkFailed(ctx context.Context, id, message string, at time.Time) error
	ListRecordingsByUser(ctx context.Context, userID string, limit int) ([]*entities.Recording, error)
	DeleteRecording(ctx context.Context, id string) error
	FailStuckRecordings(ctx context.Context, startedBefore time.Time, message string, at time.Time) (int64, error)
}

type DeduplicationRepository interface {
	FindDeduplication(ctx context.Context, signature string) (*entities.Deduplication, error)
	// CreateDeduplication inserts the entry unless the signature exists and
	// reports whether the insert happened.
	CreateDeduplication(ctx context.Context, dedup *entities.Deduplication) (bool, error)
	ReplaceDeduplication(ctx context.Context, dedup *entities.Deduplication, expiredBefore int64) (bool, error)
	DeleteDeduplication(ctx context.Context, signature string) error
	DeleteExpiredDeduplications(ctx context.Context, beforeMillis int64) (int64, error)
	DeleteDeduplicationsByRecording(ctx context.Context, recordingID string) error
}

type ChunkRepository interface {
	MergeChunk(ctx context.Context, session *entities.ChunkSession, chunk *entities.UploadChunk) error
	FindChunkSession(ctx context.Context, sessionID string) (*entities.ChunkSession, error)
	DeleteChunkSession(ctx context.Context, sessionID string) error
}

type TranscriptionRepository interface {
	FindTranscription(ctx context.Context, fileHash string) (*entities.Transcription, error)
	SaveTranscription(ctx context.Context, transcription *entities.Transcription) error
}

type Repository interface {
	Migrate(ctx context.Context) error
	RecordingRepository
	DeduplicationRepository
	ChunkRepository
	TranscriptionRepository
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB, debug bool) (Repository, error) {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger:         logger.Default.LogMode(level),
			TranslateError: true,
		},
	)
	if err != nil {
		return nil, err
	}
	return &repo{
		db: gormDB,
	}, nil
}

// Migrate creates or updates the tables backing every entity.
func (r *repo) Migrate(ctx context.Context) error {
	return r.GetDB(ctx).AutoMigrate(
		&entities.Recording{},
		&entities.Deduplication{},
		&entities.ChunkSession{},
		&entities.UploadChunk{},
		&entities.Transcription{},
	)
}

func (r *repo) GetDB(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r *repo) CreateRecording(ctx context.Context, recording *entities.Recording) error {
	err := r.GetDB(ctx).Create(recording).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	return err
}

func (r *repo) FindRecordingById(ctx context.Context, id string) (*entities.Recording, error) {
	recording := &entities.Recording{}
	err := r.GetDB(ctx).First(recording, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	return recording, nil
}

func (r *repo) MarkProcessing(ctx context.Context, id, filePath, userID string, at time.Time) error {
	result := r.GetDB(ctx).Model(&entities.Recording{}).
		Where("id = ? AND file_path = ? AND user_id = ? AND status = ?", id, filePath, userID, constant.RecordingStatusUploaded).
		Updates(map[string]interface{}{
			"status":                constant.RecordingStatusProcessing,
			"processing_started_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusGuard
	}
	return nil
}

func (r *repo) MarkProcessed(ctx context.Context, id, transcript, recommendations string, at time.Time) error {
	return r.finishProcessing(ctx, id, map[string]interface{}{
		"status":          constant.RecordingStatusProcessed,
		"transcript":      transcript,
		"recommendations": recommendations,
		"processed_at":    at,
	})
}

func (r *repo) MarkFailed(ctx context.Context, id, message string, at time.Time) error {
	return r.finishProcessing(ctx, id, map[string]interface{}{
		"status":    constant.RecordingStatusFailed,
		"error":     message,
		"failed_at": at,
	})
}

func (r *repo) finishProcessing(ctx context.Context, id string, updates map[string]interface{}) error {
	result := r.GetDB(ctx).Model(&entities.Recording{}).
		Where("id = ? AND status = ?", id, constant.RecordingStatusProcessing).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusGuard
	}
	return nil
}

func (r *repo) ListRecordingsByUser(ctx context.Context, userID string, limit int) ([]*entities.Recording, error) {
	var recordings []*entities.Recording
	query := r.GetDB(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&recordings).Error
	if err != nil {
		return nil, err
	}
	return recordings, nil
}

func (r *repo) DeleteRecording(ctx context.Context, id string) error {
	return r.GetDB(ctx).Delete(&entities.Recording{}, "id = ?", id).Error
}

func (r *repo) FailStuckRecordings(ctx context.Context, startedBefore time.Time, message string, at time.Time) (int64, error) {
	result := r.GetDB(ctx).Model(&entities.Recording{}).
		Where("status = ? AND processing_started_at < ?", constant.RecordingStatusProcessing, startedBefore).
		Updates(map[string]interface{}{
			"status":    constant.RecordingStatusFailed,
			"error":     message,
			"failed_at": at,
		})
	return result.RowsAffected, result.Error
}

func (r *repo) FindDeduplication(ctx context.Context, signature string) (*entities.Deduplication, error) {
	dedup := &entities.Deduplication{}
	err := r.GetDB(ctx).First(dedup, "signature = ?", signature).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return dedup, nil
}

func (r *repo) CreateDeduplication(ctx context.Context, dedup *entities.Deduplication) (bool, error) {
	result := r.GetDB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(dedup)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReplaceDeduplication overwrites an entry only if the stored one is older
// than expiredBefore.
func (r *repo) ReplaceDeduplication(ctx context.Context, dedup *entities.Deduplication, expiredBefore int64) (bool, error) {
	result := r.GetDB(ctx).Model(&entities.Deduplication{}).
		Where("signature = ? AND timestamp < ?", dedup.Signature, expiredBefore).
		Updates(map[string]interface{}{
			"recording_id": dedup.RecordingID,
			"user_id":      dedup.UserID,
			"timestamp":    dedup.Timestamp,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) DeleteDeduplication(ctx context.Context, signature string) error {
	return r.GetDB(ctx).Delete(&entities.Deduplication{}, "signature = ?", signature).Error
}

func (r *repo) DeleteExpiredDeduplications(ctx context.Context, beforeMillis int64) (int64, error) {
	result := r.GetDB(ctx).Where("timestamp < ?", beforeMillis).Delete(&entities.Deduplication{})
	return result.RowsAffected, result.Error
}

func (r *repo) DeleteDeduplicationsByRecording(ctx context.Context, recordingID string) error {
	return r.GetDB(ctx).Where("recording_id = ?", recordingID).Delete(&entities.Deduplication{}).Error
}

// MergeChunk registers the session if it is new and upserts the chunk keyed
// by (session, index), so concurrent appends never overwrite each other.
func (r *repo) MergeChunk(ctx context.Context, session *entities.ChunkSession, chunk *entities.UploadChunk) error {
	return r.GetDB(ctx).Transaction(func(tx *gorm.DB) error {
		header := &entities.ChunkSession{
			ID:          session.ID,
			UserID:      session.UserID,
			Filename:    session.Filename,
			MimeType:    session.MimeType,
			TotalChunks: session.TotalChunks,
			UpdatedAt:   session.UpdatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit("Chunks").Create(header).Error; err != nil {
			return err
		}

		// appends to one session serialize on its row
		stored := &entities.ChunkSession{}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(stored, "id = ?", session.ID).Error; err != nil {
			return err
		}
		if stored.UserID != session.UserID {
			return ErrChunkOwnerMismatch
		}

		chunk.SessionID = session.ID
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "chunk_index"}},
			DoUpdates: clause.AssignmentColumns([]string{"path", "size"}),
		}).Create(chunk).Error
		if err != nil {
			return err
		}

		return tx.Model(&entities.ChunkSession{}).Where("id = ?", session.ID).Update("updated_at", session.UpdatedAt).Error
	})
}

func (r *repo) FindChunkSession(ctx context.Context, sessionID string) (*entities.ChunkSession, error) {
	session := &entities.ChunkSession{}
	err := r.GetDB(ctx).Preload("Chunks", func(db *gorm.DB) *gorm.DB {
		return db.Order("chunk_index ASC")
	}).First(session, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (r *repo) DeleteChunkSession(ctx context.Context, sessionID string) error {
	return r.GetDB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&entities.UploadChunk{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entities.ChunkSession{}, "id = ?", sessionID).Error
	})
}

func (r *repo) FindTranscription(ctx context.Context, fileHash string) (*entities.Transcription, error) {
	transcription := &entities.Transcription{}
	err := r.GetDB(ctx).First(transcription, "file_hash = ?", fileHash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return transcription, nil
}

func (r *repo) SaveTranscription(ctx context.Context, transcription *entities.Transcription) error {
	return r.GetDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "file_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"transcript", "created_at"}),
	}).Create(transcription).Error
}
