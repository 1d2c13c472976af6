package entities

import (
	"strings"
	"time"

	"audionote-backend/constant"
)

type Recording struct {
	ID                  string                   `json:"recordingId" gorm:"type:varchar(500);primary_key"`
	FilePath            string                   `json:"filePath" gorm:"type:varchar(500);not null;uniqueIndex:unique_recordings_file_path"`
	Filename            string                   `json:"filename" gorm:"type:varchar(255);not null"`
	MimeType            string                   `json:"mimeType" gorm:"type:varchar(50);not null"`
	Size                int64                    `json:"size" gorm:"type:bigint;not null"`
	FileHash            string                   `json:"fileHash" gorm:"type:varchar(64);not null;index:idx_recordings_file_hash"`
	UserID              string                   `json:"userId" gorm:"type:varchar(128);not null;index:idx_recordings_user_created,priority:1"`
	Status              constant.RecordingStatus `json:"status" gorm:"type:varchar(20);not null;default:'uploaded';index:idx_recordings_status"`
	CreatedAt           time.Time                `json:"createdAt" gorm:"type:timestamptz;not null;index:idx_recordings_user_created,priority:2,sort:desc"`
	Transcript          *string                  `json:"transcript,omitempty" gorm:"type:text"`
	Recommendations     *string                  `json:"recommendations,omitempty" gorm:"type:text"`
	Error               *string                  `json:"error,omitempty" gorm:"type:text"`
	ProcessingStartedAt *time.Time               `json:"processingStartedAt,omitempty" gorm:"type:timestamptz"`
	ProcessedAt         *time.Time               `json:"processedAt,omitempty" gorm:"type:timestamptz"`
	FailedAt            *time.Time               `json:"failedAt,omitempty" gorm:"type:timestamptz"`
}

func (Recording) TableName() string {
	return "recordings"
}

// RecordingID derives the document id from the storage path so that a path
// maps to at most one recording.
func RecordingID(filePath string) string {
	return strings.ReplaceAll(filePath, "/", "_")
}
