package entities

type Deduplication struct {
	Signature   string `json:"signature" gorm:"type:varchar(255);primary_key"`
	RecordingID string `json:"recordingId" gorm:"type:varchar(500);not null;index:idx_deduplications_recording_id"`
	UserID      string `json:"userId" gorm:"type:varchar(128);not null"`
	// Timestamp is the creation time in epoch milliseconds.
	Timestamp int64 `json:"timestamp" gorm:"type:bigint;not null;index:idx_deduplications_timestamp"`
}

func (Deduplication) TableName() string {
	return "deduplications"
}
