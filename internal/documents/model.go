package documents

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a document.
type Status string

const (
	StatusUploading  Status = "uploading"
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, bool) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusUploading, StatusUploaded, StatusProcessing, StatusReady, StatusFailed:
		return s, true
	default:
		return "", false
	}
}

// Document represents an uploaded document owned by a user.
type Document struct {
	ID               string
	UserID           string
	Filename         string
	OriginalFilename string
	FileType         string
	FileSize         int64
	StoragePath      string
	Status           Status
	UploadProgress   int
	ParsedText       *string
	Title            *string
	Summary          *string
	KeyPoints        []string
	Metadata         map[string]any
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasSummary reports whether title, summary and key points are all present.
func (d Document) HasSummary() bool {
	return d.Title != nil && strings.TrimSpace(*d.Title) != "" &&
		d.Summary != nil && strings.TrimSpace(*d.Summary) != "" &&
		d.KeyPoints != nil
}

// Text returns the parsed text or an empty string.
func (d Document) Text() string {
	if d.ParsedText == nil {
		return ""
	}
	return *d.ParsedText
}

func (d Document) clone() Document {
	out := d
	if d.ParsedText != nil {
		v := *d.ParsedText
		out.ParsedText = &v
	}
	if d.Title != nil {
		v := *d.Title
		out.Title = &v
	}
	if d.Summary != nil {
		v := *d.Summary
		out.Summary = &v
	}
	if d.KeyPoints != nil {
		out.KeyPoints = append([]string{}, d.KeyPoints...)
	}
	out.Metadata = make(map[string]any, len(d.Metadata))
	for k, v := range d.Metadata {
		out.Metadata[k] = v
	}
	return out
}
