package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

const maxXMLPartBytes = 20 << 20

func openZip(data []byte) (*zip.Reader, error) {
	if len(data) == 0 {
		return nil, errors.New("empty archive")
	}
	return zip.NewReader(bytes.NewReader(data), int64(len(data)))
}

func detectOOXML(data []byte) string {
	zr, err := openZip(data)
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		switch strings.ReplaceAll(f.Name, "\\", "/") {
		case "word/document.xml":
			return mimeDOCX
		case "ppt/presentation.xml":
			return mimePPTX
		case "xl/workbook.xml":
			return mimeXLSX
		}
	}
	return ""
}

func extractDOCX(data []byte) (string, error) {
	zr, err := openZip(data)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			return xmlText(f, "p", "br")
		}
	}
	return "", errors.New("docx: word/document.xml not found")
}

// extractPPTX returns slide text in slide order, one blank line between slides.
func extractPPTX(data []byte) (string, error) {
	zr, err := openZip(data)
	if err != nil {
		return "", fmt.Errorf("open pptx: %w", err)
	}
	type slide struct {
		n int
		f *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		num, ok := strings.CutPrefix(name, "ppt/slides/slide")
		if !ok || !strings.HasSuffix(num, ".xml") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(num, ".xml"))
		if err != nil {
			continue
		}
		slides = append(slides, slide{n: n, f: f})
	}
	if len(slides) == 0 {
		return "", errors.New("pptx: no slides found")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	parts := make([]string, 0, len(slides))
	for _, s := range slides {
		text, err := xmlText(s.f, "p", "br")
		if err != nil {
			return "", fmt.Errorf("pptx slide %d: %w", s.n, err)
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// xmlText concatenates character data of an XML part, breaking lines after
// the named elements.
func xmlText(f *zip.File, lineBreakAfter ...string) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	breaks := make(map[string]bool, len(lineBreakAfter))
	for _, name := range lineBreakAfter {
		breaks[name] = true
	}

	dec := xml.NewDecoder(io.LimitReader(rc, maxXMLPartBytes))
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", f.Name, err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.EndElement:
			if breaks[t.Name.Local] && b.Len() > 0 {
				b.WriteByte('\n')
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
