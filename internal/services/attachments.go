package services

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/BradenHooton/helpdesk/internal/models"
	"golang.org/x/text/unicode/norm"
)

// ErrFileTooLarge is returned while streaming an upload past the size cap
var ErrFileTooLarge = errors.New("file exceeds maximum size")

// Upload is one file received with a submission
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// AttachmentPolicy bounds what a submission may carry
type AttachmentPolicy struct {
	AllowedExtensions []string
	MaxFileSize       int64
	MaxFiles          int
}

// DefaultAttachmentPolicy matches the stock upload settings
func DefaultAttachmentPolicy() AttachmentPolicy {
	return AttachmentPolicy{
		AllowedExtensions: []string{"png", "jpg", "jpeg", "gif", "pdf", "doc", "docx", "txt", "log"},
		MaxFileSize:       16 << 20,
		MaxFiles:          10,
	}
}

// Validate rejects the whole batch when any file breaks the policy
func (p AttachmentPolicy) Validate(uploads []Upload) error {
	verr := models.NewValidationError()

	if p.MaxFiles > 0 && len(uploads) > p.MaxFiles {
		verr.Add("attachments", fmt.Sprintf("at most %d files may be attached", p.MaxFiles))
		return verr
	}

	for _, u := range uploads {
		name := SecureFilename(u.Filename)
		if name == "" {
			verr.Add("attachments", fmt.Sprintf("%q is not a usable filename", u.Filename))
			continue
		}
		if !p.allowed(name) {
			verr.Add("attachments", fmt.Sprintf("%q has a disallowed file type; allowed: %s",
				u.Filename, strings.Join(p.AllowedExtensions, ", ")))
			continue
		}
		if p.MaxFileSize > 0 && u.Size > p.MaxFileSize {
			verr.Add("attachments", fmt.Sprintf("%q exceeds the %d MB limit", u.Filename, p.MaxFileSize>>20))
		}
	}

	return verr.OrNil()
}

func (p AttachmentPolicy) allowed(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return ext != "" && slices.Contains(p.AllowedExtensions, ext)
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// maxSecureFilenameLen leaves room in a 255-byte path component for the
// AttachmentFilename prefix and a uniqueness suffix
const maxSecureFilenameLen = 120

// SecureFilename reduces name to a plain ASCII basename. It folds accents,
// turns whitespace and path separators into underscores and drops anything
// else outside [A-Za-z0-9_.-]. Long names are cut to maxSecureFilenameLen
// bytes, keeping the extension. The result may be empty.
func SecureFilename(name string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(name) {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}

	cleaned := strings.NewReplacer("/", " ", `\`, " ").Replace(b.String())
	cleaned = strings.Join(strings.Fields(cleaned), "_")
	cleaned = unsafeFilenameChars.ReplaceAllString(cleaned, "")
	cleaned = strings.Trim(cleaned, "._")
	if len(cleaned) <= maxSecureFilenameLen {
		return cleaned
	}

	ext := filepath.Ext(cleaned)
	if len(ext) > maxSecureFilenameLen/2 {
		ext = ""
	}
	base := strings.TrimRight(cleaned[:maxSecureFilenameLen-len(ext)], "._")
	return base + ext
}

// AttachmentFilename is the stored name: {id}_{YYYYmmdd_HHMMSS}_{secure name}
func AttachmentFilename(requestID int64, at time.Time, original string) string {
	return fmt.Sprintf("%d_%s_%s", requestID, at.Format("20060102_150405"), SecureFilename(original))
}

// uniqueName suffixes name with a counter until it is not in seen
func uniqueName(name string, seen map[string]bool) string {
	candidate := name
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 2; seen[candidate]; i++ {
		candidate = base + "_" + strconv.Itoa(i) + ext
	}
	seen[candidate] = true
	return candidate
}

// capReader fails with ErrFileTooLarge once more than max bytes are read
type capReader struct {
	r   io.Reader
	max int64
	n   int64
}

func (c *capReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.max > 0 && c.n > c.max {
		return n, ErrFileTooLarge
	}
	return n, err
}
