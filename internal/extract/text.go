package extract

import (
	"path/filepath"
	"strings"
)

func baseMime(mimeType string) string {
	mt, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

func isPlainText(mimeType, fileName string) bool {
	mt := baseMime(mimeType)
	switch mt {
	case mimeText, "text/markdown", "text/csv":
		return true
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".txt", ".md", ".csv":
		return mt == "" || mt == "application/octet-stream"
	}
	return false
}

// normalizeWhitespace collapses spaces within lines and keeps at most one
// blank line between paragraphs.
func normalizeWhitespace(s string) string {
	var b strings.Builder
	pendingBlank := false
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			pendingBlank = b.Len() > 0
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
			if pendingBlank {
				b.WriteByte('\n')
			}
		}
		pendingBlank = false
		b.WriteString(line)
	}
	return b.String()
}

// normalizeMimeType resolves generic zip uploads to the Office format they
// contain, falling back to the file extension.
func normalizeMimeType(mimeType string, fileName string, data []byte) string {
	mt := baseMime(mimeType)
	if mt != "application/zip" && mt != "application/octet-stream" {
		return mt
	}
	if detected := detectOOXML(data); detected != "" {
		return detected
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".docx":
		return mimeDOCX
	case ".pptx":
		return mimePPTX
	case ".xlsx":
		return mimeXLSX
	case ".pdf":
		return mimePDF
	}
	return mt
}
