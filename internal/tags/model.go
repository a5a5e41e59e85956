package tags

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("tag not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicate is returned when the user already has a tag with the
	// same name, compared case-insensitively.
	ErrDuplicate = errors.New("tag already exists")
)

const maxNameLength = 64

type Tag struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
