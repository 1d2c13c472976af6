package service_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audionote-backend/pkg/storage"
	"audionote-backend/service"
)

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestComputeHash(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a, err := service.ComputeHash(strings.NewReader("hello world"))
		require.NoError(t, err)
		b, err := service.ComputeHash(strings.NewReader("hello world"))
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", a)
	})

	t.Run("memory and stored copy agree", func(t *testing.T) {
		ctx := testContext()
		store := storage.NewMemoryStore()
		payload := strings.Repeat("audio", 10000)
		require.NoError(t, store.Put(ctx, "k", strings.NewReader(payload), -1, "audio/mpeg"))

		fromMemory, err := service.ComputeHash(strings.NewReader(payload))
		require.NoError(t, err)
		size, fromStore, err := service.HashObject(ctx, store, "k")
		require.NoError(t, err)
		assert.Equal(t, fromMemory, fromStore)
		assert.Equal(t, int64(len(payload)), size)
	})

	t.Run("stream error", func(t *testing.T) {
		_, err := service.ComputeHash(io.MultiReader(strings.NewReader("x"), failingReader{}))
		assert.ErrorIs(t, err, service.ErrHashingFailed)
		assert.ErrorIs(t, err, service.ErrInternal)
	})
}
