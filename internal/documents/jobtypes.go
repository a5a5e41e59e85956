package documents

import "strings"

// JobType names a processing step run against an uploaded document.
type JobType string

const (
	JobOCR            JobType = "ocr"
	JobTextExtraction JobType = "text_extraction"
	JobTranscription  JobType = "transcription"
	JobThumbnail      JobType = "thumbnail"
)

// ParseJobType validates a raw job type string.
func ParseJobType(raw string) (JobType, bool) {
	switch t := JobType(strings.TrimSpace(raw)); t {
	case JobOCR, JobTextExtraction, JobTranscription, JobThumbnail:
		return t, true
	default:
		return "", false
	}
}

// AllJobTypes lists the accepted job types.
func AllJobTypes() []JobType {
	return []JobType{JobOCR, JobTextExtraction, JobTranscription, JobThumbnail}
}

// JobTypesFor selects the jobs to run for a MIME type. Categories are
// matched by substring and evaluated in a fixed order, so the result holds
// between zero and three job types.
func JobTypesFor(mimeType string) []JobType {
	m := strings.ToLower(mimeType)
	has := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(m, s) {
				return true
			}
		}
		return false
	}

	var out []JobType
	if has("pdf", "image") {
		out = append(out, JobOCR)
	}
	if has("word", "powerpoint", "text") {
		out = append(out, JobTextExtraction)
	}
	if has("video", "audio") {
		out = append(out, JobTranscription)
	}
	if has("image", "pdf", "video") {
		out = append(out, JobThumbnail)
	}
	return out
}

// PrimaryJobType is the single job run on reprocess: the first
// text-producing job for the MIME type, or text extraction.
func PrimaryJobType(mimeType string) JobType {
	for _, t := range JobTypesFor(mimeType) {
		if t != JobThumbnail {
			return t
		}
	}
	return JobTextExtraction
}
