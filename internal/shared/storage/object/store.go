package object

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a storage key has no object behind it.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidKey rejects empty, absolute or escaping storage keys.
	ErrInvalidKey = errors.New("invalid storage key")
)

// ObjectStore holds uploaded documents and their derived text.
// Storage keys are slash separated and relative.
type ObjectStore interface {
	// Save stores r under a fresh key in the user's namespace and reports the
	// key, the byte count and the sniffed MIME type.
	Save(ctx context.Context, userId string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	// Delete succeeds when the key is already absent.
	Delete(ctx context.Context, storageKey string) error
	SignURL(ctx context.Context, storageKey string, ttl time.Duration) (string, error)
}

const sniffLen = 512

// Sniff detects the content type from the first bytes of r and returns a
// reader that still yields the whole stream.
func Sniff(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, fmt.Errorf("read sniff: %w", err)
	}
	head = head[:n]
	return http.DetectContentType(head), io.MultiReader(bytes.NewReader(head), r), nil
}

// CleanKey normalizes a storage key and rejects anything that would leave the
// store's root.
func CleanKey(storageKey string) (string, error) {
	key := strings.ReplaceAll(strings.TrimSpace(storageKey), "\\", "/")
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return clean, nil
}
