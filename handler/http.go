package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"audionote-backend/dto"
	"audionote-backend/middleware"
	"audionote-backend/service"
)

var (
	chunkFields = []string{"sessionId", "chunkNumber", "totalChunks", "filename"}
	// the audio part is streamed only once these have arrived
	chunkStreamFields = []string{"sessionId", "chunkNumber", "totalChunks", "filename", "mimeType"}
)

type HTTPHandler struct {
	deps ServiceDependencies
}

func NewHTTPHandler(deps ServiceDependencies) *HTTPHandler {
	return &HTTPHandler{deps: deps}
}

func (h *HTTPHandler) Test(c *gin.Context) {
	c.String(http.StatusOK, "API is running")
}

func (h *HTTPHandler) UploadAudio(c *gin.Context) {
	ownerID := c.GetString(middleware.UserIDKey)

	var result *service.UploadResult
	err := streamAudioForm(c, h.deps.MaxFileBytes, nil, func(_ map[string]string, audio audioPart) error {
		var err error
		result, err = h.deps.Ingestor.Upload(c.Request.Context(), service.AudioUpload{
			OwnerID:  ownerID,
			Filename: audio.Filename,
			MimeType: audio.ContentType,
			Body:     audio.Body,
		})
		return err
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, uploadResponse(result))
}

func (h *HTTPHandler) UploadAudioChunk(c *gin.Context) {
	ownerID := c.GetString(middleware.UserIDKey)

	var chunk service.ChunkUpload
	err := streamAudioForm(c, h.deps.MaxChunkBytes, chunkStreamFields, func(fields map[string]string, audio audioPart) error {
		var err error
		chunk, err = chunkFromForm(ownerID, fields, audio)
		if err != nil {
			return err
		}
		return h.deps.ChunkAssembler.AppendChunk(c.Request.Context(), chunk)
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.APIResponse{
		Success:     true,
		Message:     fmt.Sprintf("Chunk %d uploaded successfully", chunk.ChunkNumber),
		SessionID:   chunk.SessionID,
		ChunkNumber: chunk.ChunkNumber,
	})
}

func chunkFromForm(ownerID string, fields map[string]string, audio audioPart) (service.ChunkUpload, error) {
	for _, name := range chunkFields {
		if fields[name] == "" {
			return service.ChunkUpload{}, fmt.Errorf("%w: %s", service.ErrMissingField, name)
		}
	}
	chunkNumber, err := strconv.Atoi(fields["chunkNumber"])
	if err != nil {
		return service.ChunkUpload{}, fmt.Errorf("%w: chunkNumber must be an integer", service.ErrValidation)
	}
	totalChunks, err := strconv.Atoi(fields["totalChunks"])
	if err != nil {
		return service.ChunkUpload{}, fmt.Errorf("%w: totalChunks must be an integer", service.ErrValidation)
	}

	mimeType := audio.ContentType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = fields["mimeType"]
	}

	return service.ChunkUpload{
		OwnerID:     ownerID,
		SessionID:   fields["sessionId"],
		ChunkNumber: chunkNumber,
		TotalChunks: totalChunks,
		Filename:    fields["filename"],
		MimeType:    mimeType,
		Body:        audio.Body,
	}, nil
}

func (h *HTTPHandler) FinalizeChunkedUpload(c *gin.Context) {
	var req dto.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: sessionId and totalChunks are required", service.ErrMissingField))
		return
	}

	result, err := h.deps.ChunkAssembler.Finalize(c.Request.Context(), service.FinalizeInput{
		OwnerID:     c.GetString(middleware.UserIDKey),
		SessionID:   req.SessionID,
		TotalChunks: req.TotalChunks,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, uploadResponse(result))
}

func uploadResponse(result *service.UploadResult) dto.APIResponse {
	resp := dto.APIResponse{
		Success:     true,
		RecordingID: result.RecordingID,
		FilePath:    result.FilePath,
		IsDuplicate: result.IsDuplicate,
	}
	switch {
	case result.IsDuplicate:
		resp.Message = "Duplicate upload detected"
	case result.ProcessingErr != nil:
		resp.Success = false
		resp.Message = messageFor(result.ProcessingErr)
	case result.Processed != nil:
		resp.Message = "File uploaded and processed successfully"
		resp.Transcript = result.Processed.Transcript
		resp.Recommendations = result.Processed.Recommendations
	default:
		resp.Message = "File uploaded successfully, processing queued"
	}
	return resp
}

func (h *HTTPHandler) ProcessAudio(c *gin.Context) {
	var msg dto.ProcessMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		abortWithError(c, fmt.Errorf("%w: invalid request body", service.ErrValidation))
		return
	}
	if msg.UserID != "" && msg.UserID != c.GetString(middleware.UserIDKey) {
		abortWithError(c, service.ErrInvalidOrAlreadyProcessed)
		return
	}

	result, err := h.deps.Pipeline.Process(c.Request.Context(), msg)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.APIResponse{
		Success:         true,
		Message:         "Processing completed",
		RecordingID:     msg.RecordingID,
		FilePath:        msg.FilePath,
		Transcript:      result.Transcript,
		Recommendations: result.Recommendations,
	})
}

func (h *HTTPHandler) ListRecordings(c *gin.Context) {
	recordings, err := h.deps.Directory.List(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListRecordingsResponse{
		Success:    true,
		Recordings: recordings,
		Count:      len(recordings),
	})
}

func (h *HTTPHandler) GetRecording(c *gin.Context) {
	recording, err := h.deps.Directory.Get(c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.APIResponse{
		Success:   true,
		Recording: recording,
	})
}

func (h *HTTPHandler) DeleteRecording(c *gin.Context) {
	_, err := h.deps.Directory.Delete(c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.APIResponse{
		Success: true,
		Message: "Recording deleted successfully",
	})
}

func (h *HTTPHandler) DeleteAllRecordings(c *gin.Context) {
	count, _, err := h.deps.Directory.DeleteAll(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.APIResponse{
		Success: true,
		Message: fmt.Sprintf("Deleted %d recordings", count),
		Count:   &count,
	})
}
