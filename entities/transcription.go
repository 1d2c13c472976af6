package entities

import "time"

// Transcription is the transcript cache entry keyed by content hash.
type Transcription struct {
	FileHash   string    `json:"fileHash" gorm:"type:varchar(64);primary_key"`
	Transcript string    `json:"transcript" gorm:"type:text;not null"`
	CreatedAt  time.Time `json:"createdAt" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Transcription) TableName() string {
	return "transcriptions"
}
