package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"audionote-backend/constant"
	"audionote-backend/service"
)

const (
	// formOverhead is the body allowance on top of the audio limit for
	// boundaries, part headers and text fields.
	formOverhead int64 = 1 << 20
	maxFieldBytes      = 4096
)

type audioPart struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// streamAudioForm walks a multipart body without buffering it. Text fields
// are collected first; the audio part is handed to consume as a live stream
// when every field in required has already been seen, and is otherwise
// buffered up to limit bytes and consumed after the last part. Once consume
// succeeds the rest of the body is discarded unread, so trailing parts can
// no longer fail the request.
func streamAudioForm(c *gin.Context, limit int64, required []string, consume func(fields map[string]string, audio audioPart) error) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+formOverhead)
	reader, err := c.Request.MultipartReader()
	if err != nil {
		return fmt.Errorf("%w: no file uploaded", service.ErrValidation)
	}

	fields := make(map[string]string)
	var buffered *audioPart

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return readError(err)
		}

		if !isAudioPart(part) {
			if err := readField(part, fields); err != nil {
				return err
			}
			continue
		}

		if buffered != nil {
			if _, err := io.Copy(io.Discard, part); err != nil {
				return readError(err)
			}
			continue
		}

		audio := audioPart{Filename: part.FileName(), ContentType: part.Header.Get("Content-Type"), Body: part}
		if hasAll(fields, required) {
			if err := consume(fields, audio); err != nil {
				return err
			}
			_, _ = io.Copy(io.Discard, c.Request.Body)
			return nil
		}

		var buf bytes.Buffer
		if _, err := io.Copy(&buf, io.LimitReader(part, limit+1)); err != nil {
			return readError(err)
		}
		if int64(buf.Len()) > limit {
			return service.ErrPayloadTooLarge
		}
		audio.Body = &buf
		buffered = &audio
	}

	if buffered == nil {
		return fmt.Errorf("%w: no file uploaded", service.ErrMissingField)
	}
	return consume(fields, *buffered)
}

func isAudioPart(part *multipart.Part) bool {
	if part.FormName() != constant.AudioFieldName {
		return false
	}
	return part.FileName() != "" || part.Header.Get("Content-Type") != ""
}

func readField(part *multipart.Part, fields map[string]string) error {
	value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return readError(err)
	}
	if len(value) > maxFieldBytes {
		return fmt.Errorf("%w: field %s too long", service.ErrValidation, part.FormName())
	}
	fields[part.FormName()] = string(value)
	return nil
}

func hasAll(fields map[string]string, required []string) bool {
	for _, name := range required {
		if _, ok := fields[name]; !ok {
			return false
		}
	}
	return true
}

func readError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return service.ErrPayloadTooLarge
	}
	return fmt.Errorf("%w: malformed multipart body: %v", service.ErrValidation, err)
}
