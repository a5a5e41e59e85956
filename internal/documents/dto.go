package documents

import "time"

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	ID               string         `json:"id"`
	UserID           string         `json:"userId"`
	Filename         string         `json:"filename"`
	OriginalFilename string         `json:"originalFilename"`
	FileType         string         `json:"fileType"`
	FileSize         int64          `json:"fileSize"`
	StoragePath      string         `json:"storagePath"`
	Status           Status         `json:"status"`
	UploadProgress   int            `json:"uploadProgress"`
	HasParsedText    bool           `json:"hasParsedText"`
	Title            *string        `json:"title"`
	Summary          *string        `json:"summary"`
	KeyPoints        []string       `json:"keyPoints"`
	Metadata         map[string]any `json:"metadata"`
	Version          int64          `json:"version"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// ToResponse converts a document for JSON output. Parsed text is omitted.
func ToResponse(doc Document) DocumentResponse {
	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return DocumentResponse{
		ID:               doc.ID,
		UserID:           doc.UserID,
		Filename:         doc.Filename,
		OriginalFilename: doc.OriginalFilename,
		FileType:         doc.FileType,
		FileSize:         doc.FileSize,
		StoragePath:      doc.StoragePath,
		Status:           doc.Status,
		UploadProgress:   doc.UploadProgress,
		HasParsedText:    doc.Text() != "",
		Title:            doc.Title,
		Summary:          doc.Summary,
		KeyPoints:        doc.KeyPoints,
		Metadata:         metadata,
		Version:          doc.Version,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
}
