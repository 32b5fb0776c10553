package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/helpdesk/internal/models"
	"github.com/BradenHooton/helpdesk/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"My Report (final).pdf", "My_Report_final.pdf"},
		{"../../etc/passwd", "etc_passwd"},
		{`C:\Users\bob\notes.txt`, "C_Users_bob_notes.txt"},
		{"résumé.docx", "resume.docx"},
		{".hidden.log", "hidden.log"},
		{"日本語", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SecureFilename(tt.in))
		})
	}
}

func TestAttachmentFilename(t *testing.T) {
	at := time.Date(2024, 12, 31, 23, 59, 58, 0, time.UTC)

	assert.Equal(t, "17_20241231_235958_scan_1.jpg", AttachmentFilename(17, at, "scan 1.jpg"))
}

func TestSecureFilename_TruncatesLongNames(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantExt string
	}{
		{"ascii", strings.Repeat("a", 300) + ".pdf", ".pdf"},
		{"accented", strings.Repeat("é", 200) + ".png", ".png"},
		{"cut lands on separator", strings.Repeat("ab_", 100) + ".txt", ".txt"},
		{"oversized extension", "x." + strings.Repeat("y", 200), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SecureFilename(tt.in)
			assert.LessOrEqual(t, len(got), maxSecureFilenameLen)
			assert.NotEmpty(t, got)
			assert.False(t, strings.HasSuffix(strings.TrimSuffix(got, tt.wantExt), "_"))
			if tt.wantExt != "" {
				assert.True(t, strings.HasSuffix(got, tt.wantExt), got)
			}
		})
	}
}

func TestAttachmentFilename_LongNameFitsLocalStore(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	at := time.Date(2024, 12, 31, 23, 59, 58, 0, time.UTC)

	name := uniqueName(AttachmentFilename(9223372036854775807, at, strings.Repeat("long name ", 40)+".pdf"), map[string]bool{})

	assert.Less(t, len(name), 255)
	assert.True(t, strings.HasSuffix(name, ".pdf"))
	require.NoError(t, store.Save(context.Background(), name, strings.NewReader("%PDF-1.4")))
}

func TestAttachmentPolicy_Validate(t *testing.T) {
	policy := DefaultAttachmentPolicy()

	tests := []struct {
		name    string
		uploads []Upload
		wantErr bool
	}{
		{"none", nil, false},
		{"allowed types", []Upload{{Filename: "a.PNG", Size: 10}, {Filename: "b.log", Size: 10}}, false},
		{"no extension", []Upload{{Filename: "Makefile", Size: 10}}, true},
		{"executable", []Upload{{Filename: "setup.exe", Size: 10}}, true},
		{"double extension", []Upload{{Filename: "invoice.pdf.exe", Size: 10}}, true},
		{"too large", []Upload{{Filename: "big.pdf", Size: policy.MaxFileSize + 1}}, true},
		{"unusable name", []Upload{{Filename: "???", Size: 1}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Validate(tt.uploads)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, "attachments")
		})
	}
}

func TestAttachmentPolicy_Validate_TooManyFiles(t *testing.T) {
	policy := DefaultAttachmentPolicy()
	uploads := make([]Upload, policy.MaxFiles+1)
	for i := range uploads {
		uploads[i] = Upload{Filename: "a.txt", Size: 1}
	}

	err := policy.Validate(uploads)

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields["attachments"], "at most 10")
}

func TestUniqueName(t *testing.T) {
	seen := map[string]bool{}

	assert.Equal(t, "a.txt", uniqueName("a.txt", seen))
	assert.Equal(t, "a_2.txt", uniqueName("a.txt", seen))
	assert.Equal(t, "a_3.txt", uniqueName("a.txt", seen))
	assert.Equal(t, "b.txt", uniqueName("b.txt", seen))
}

func TestCapReader(t *testing.T) {
	data, err := io.ReadAll(&capReader{r: strings.NewReader("12345"), max: 5})
	require.NoError(t, err)
	assert.Equal(t, "12345", string(data))

	_, err = io.ReadAll(&capReader{r: strings.NewReader("123456"), max: 5})
	assert.True(t, errors.Is(err, ErrFileTooLarge))
}
