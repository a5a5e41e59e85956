// Package extract turns uploaded study material into plain text for the
// summarizer and chat.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"studyhub-backend/internal/shared/storage/object"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeText = "text/plain"

	// DerivedSuffix names the plain-text copy stored next to the original.
	DerivedSuffix = ".extracted.txt"

	maxSourceBytes = 50 << 20
)

var (
	// ErrUnsupported is returned for formats text cannot be pulled from.
	ErrUnsupported = errors.New("unsupported mime type")
	// ErrEmpty is returned when a file yields no text.
	ErrEmpty    = errors.New("no text extracted")
	ErrTooLarge = errors.New("source file too large to extract")
)

type extractor func(data []byte) (string, error)

var extractors = map[string]extractor{
	mimePDF:  extractPDF,
	mimeDOCX: extractDOCX,
	mimePPTX: extractPPTX,
}

// Supported reports whether text can be extracted from a file of this type.
func Supported(mimeType, fileName string) bool {
	if _, ok := extractors[normalizeMimeType(mimeType, fileName, nil)]; ok {
		return true
	}
	return isPlainText(mimeType, fileName)
}

// ExtractText reads a stored object, extracts its text and saves the text
// next to it under fileKey+DerivedSuffix.
func ExtractText(ctx context.Context, store object.ObjectStore, fileKey string, mimeType string, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	wrap := func(err error) error {
		return fmt.Errorf("extract %s (%s): %w", fileKey, mimeType, err)
	}

	body, err := store.Open(ctx, fileKey)
	if err != nil {
		return "", wrap(err)
	}
	defer body.Close()

	raw, err := io.ReadAll(io.LimitReader(body, maxSourceBytes+1))
	if err != nil {
		return "", wrap(err)
	}
	if len(raw) > maxSourceBytes {
		return "", wrap(ErrTooLarge)
	}

	text, err := ExtractTextFromBytes(ctx, raw, mimeType, fileName)
	if err != nil {
		return "", wrap(err)
	}
	if _, err := store.SaveWithKey(ctx, fileKey+DerivedSuffix, "text/plain; charset=utf-8", strings.NewReader(text)); err != nil {
		return "", wrap(fmt.Errorf("save derived text: %w", err))
	}
	return text, nil
}

// ExtractTextFromBytes extracts and whitespace-normalizes text from data.
func ExtractTextFromBytes(ctx context.Context, data []byte, mimeType string, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	mt := normalizeMimeType(mimeType, fileName, data)

	var (
		text string
		err  error
	)
	if fn, ok := extractors[mt]; ok {
		text, err = fn(data)
	} else if isPlainText(mt, fileName) {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: %s is not valid utf-8", ErrUnsupported, mt)
		}
		text = string(data)
	} else {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, mt)
	}
	if err != nil {
		return "", err
	}

	if text = normalizeWhitespace(text); text == "" {
		return "", ErrEmpty
	}
	return text, nil
}
