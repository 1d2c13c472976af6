package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"

	"audionote-backend/pkg/storage"
)

// ComputeHash returns the hex MD5 digest of everything read from r. The
// digest only keys caches and is not an integrity check.
func ComputeHash(r io.Reader) (string, error) {
	_, sum, err := hashStream(r)
	return sum, err
}

// HashObject re-reads a persisted object and returns its size and digest, so
// both describe exactly what the store holds.
func HashObject(ctx context.Context, store storage.ObjectStore, key string) (int64, string, error) {
	rc, err := store.Get(ctx, key)
	if err != nil {
		return 0, "", upstream(err)
	}
	defer rc.Close()

	return hashStream(rc)
}

func hashStream(r io.Reader) (int64, string, error) {
	h := md5.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrHashingFailed, err)
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}
