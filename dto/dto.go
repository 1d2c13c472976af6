package dto

import "audionote-backend/entities"

// ProcessMessage is the body of POST /processAudio and of every message on the
// processing queue.
type ProcessMessage struct {
	FilePath    string `json:"filePath"`
	RecordingID string `json:"recordingId"`
	UserID      string `json:"userId"`
	FileHash    string `json:"fileHash"`
}

type ProcessResult struct {
	Transcript      string `json:"transcript"`
	Recommendations string `json:"recommendations"`
}

type FinalizeRequest struct {
	SessionID   string `json:"sessionId" binding:"required"`
	TotalChunks int    `json:"totalChunks" binding:"required,min=1"`
}

type APIResponse struct {
	Success         bool                  `json:"success"`
	Message         string                `json:"message,omitempty"`
	Recordings      []*entities.Recording `json:"recordings,omitempty"`
	Count           *int                  `json:"count,omitempty"`
	Recording       *entities.Recording   `json:"recording,omitempty"`
	RecordingID     string                `json:"recordingId,omitempty"`
	FilePath        string                `json:"filePath,omitempty"`
	SessionID       string                `json:"sessionId,omitempty"`
	ChunkNumber     int                   `json:"chunkNumber,omitempty"`
	IsDuplicate     bool                  `json:"isDuplicate,omitempty"`
	Transcript      string                `json:"transcript,omitempty"`
	Recommendations string                `json:"recommendations,omitempty"`
}

type ListRecordingsResponse struct {
	Success    bool                  `json:"success"`
	Recordings []*entities.Recording `json:"recordings"`
	Count      int                   `json:"count"`
}
