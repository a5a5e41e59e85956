package documents

import (
	"reflect"
	"strings"
	"testing"
)

func TestJobTypesFor(t *testing.T) {
	cases := []struct {
		mime string
		want []JobType
	}{
		{"application/pdf", []JobType{JobOCR, JobThumbnail}},
		{"image/png", []JobType{JobOCR, JobThumbnail}},
		{"text/plain; charset=utf-8", []JobType{JobTextExtraction}},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", []JobType{JobTextExtraction}},
		{"application/vnd.ms-powerpoint", []JobType{JobTextExtraction}},
		{"video/mp4", []JobType{JobTranscription, JobThumbnail}},
		{"audio/mpeg", []JobType{JobTranscription}},
		{"application/zip", nil},
		{"", nil},
	}
	for _, tc := range cases {
		got := JobTypesFor(tc.mime)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("JobTypesFor(%q) = %v, want %v", tc.mime, got, tc.want)
		}
	}
}

func TestPrimaryJobType(t *testing.T) {
	cases := map[string]JobType{
		"application/pdf": JobOCR,
		"text/markdown":   JobTextExtraction,
		"video/webm":      JobTranscription,
		"application/zip": JobTextExtraction,
	}
	for mime, want := range cases {
		if got := PrimaryJobType(mime); got != want {
			t.Fatalf("PrimaryJobType(%q) = %s, want %s", mime, got, want)
		}
	}
}

func TestParseJobType(t *testing.T) {
	if _, ok := ParseJobType("ocr"); !ok {
		t.Fatalf("expected ocr to be valid")
	}
	if _, ok := ParseJobType("summarize"); ok {
		t.Fatalf("expected summarize to be rejected")
	}
}

func TestIsPlaceholderText(t *testing.T) {
	long := strings.Repeat("real lecture content ", 20)
	cases := []struct {
		text string
		want bool
	}{
		{text: "", want: true},
		{text: "short", want: true},
		{text: SimulatedMarker + " " + long, want: true},
		{text: "Lorem ipsum dolor sit amet " + long, want: true},
		{text: long, want: false},
	}
	for _, tc := range cases {
		if got := IsPlaceholderText(tc.text); got != tc.want {
			t.Fatalf("IsPlaceholderText(%.30q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
