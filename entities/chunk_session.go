package entities

import "time"

type ChunkSession struct {
	ID          string        `json:"sessionId" gorm:"type:varchar(255);primary_key"`
	UserID      string        `json:"userId" gorm:"type:varchar(128);not null"`
	Filename    string        `json:"filename" gorm:"type:varchar(255);not null"`
	MimeType    string        `json:"mimeType" gorm:"type:varchar(50);not null"`
	TotalChunks int           `json:"totalChunks" gorm:"type:integer;not null"`
	UpdatedAt   time.Time     `json:"updatedAt" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	Chunks      []UploadChunk `json:"chunks" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

func (ChunkSession) TableName() string {
	return "chunk_sessions"
}

// UploadChunk is one received part of a chunk session. The composite key
// makes a repeated upload of the same index replace the earlier entry.
type UploadChunk struct {
	SessionID  string `json:"-" gorm:"type:varchar(255);primaryKey"`
	ChunkIndex int    `json:"index" gorm:"primaryKey;autoIncrement:false"`
	Path       string `json:"path" gorm:"type:varchar(500);not null"`
	Size       int64  `json:"size" gorm:"type:bigint;not null"`
}

func (UploadChunk) TableName() string {
	return "upload_chunks"
}
