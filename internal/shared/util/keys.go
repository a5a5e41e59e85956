package util

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const maxFileNameBytes = 200

var ErrInvalidFileName = errors.New("invalid file name")

// HashUserKey returns a filesystem-safe identifier for a user ID.
func HashUserKey(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}

// SanitizeFileName flattens path separators, drops control characters and
// rejects traversal. Long names are cut from the stem so the extension
// survives.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	s := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidFileName
	}
	if len(s) > maxFileNameBytes {
		ext := path.Ext(s)
		if len(ext) > 16 {
			ext = ""
		}
		stem := strings.ToValidUTF8(s[:maxFileNameBytes-len(ext)], "")
		s = stem + ext
	}
	return s, nil
}

// StorageKey names a new object as <hashed user>/<unique id>_<file name>.
func StorageKey(userID, fileName string) (string, error) {
	name, err := SanitizeFileName(fileName)
	if err != nil {
		return "", err
	}
	return path.Join(HashUserKey(userID), uuid.NewString()+"_"+name), nil
}
