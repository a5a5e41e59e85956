package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashUserKey(t *testing.T) {
	got := HashUserKey("user-12345")
	assert.Equal(t, got, HashUserKey("user-12345"))
	assert.Len(t, got, 64)
	assert.NotEqual(t, got, HashUserKey("user-12346"))
	for _, ch := range got {
		assert.True(t, (ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9'), "non-hex %c", ch)
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "notes.pdf", want: "notes.pdf"},
		{in: " lecture 1.docx ", want: "lecture 1.docx"},
		{in: "a/b\\c.txt", want: "a_b_c.txt"},
		{in: "tab\there.txt", want: "tabhere.txt"},
		{in: "../etc/passwd", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "\x00\x01", wantErr: true},
	}
	for _, tc := range cases {
		got, err := SanitizeFileName(tc.in)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrInvalidFileName, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestSanitizeFileNameKeepsExtensionWhenTruncating(t *testing.T) {
	got, err := SanitizeFileName(strings.Repeat("a", 300) + ".pdf")
	require.NoError(t, err)
	assert.Len(t, got, maxFileNameBytes)
	assert.True(t, strings.HasSuffix(got, ".pdf"))
}

func TestStorageKey(t *testing.T) {
	key, err := StorageKey("user-1", "Week 3/notes.pdf")
	require.NoError(t, err)

	dir, name, ok := strings.Cut(key, "/")
	require.True(t, ok)
	assert.Equal(t, HashUserKey("user-1"), dir)
	assert.True(t, strings.HasSuffix(name, "_Week 3_notes.pdf"), name)

	other, err := StorageKey("user-1", "Week 3/notes.pdf")
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	_, err = StorageKey("user-1", "../x")
	assert.ErrorIs(t, err, ErrInvalidFileName)
}
