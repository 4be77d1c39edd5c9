package certificate

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/blake2b"
)

// maxTitleBytes keeps "<title>_<licenseId>.md" under common filename limits.
const maxTitleBytes = 100

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	pathSeparator = strings.NewReplacer("/", "_", "\\", "_")
)

// ErrExists is returned when a certificate document already exists at the target path.
var ErrExists = errors.New("certificate document already exists")

// Storage writes certificate documents into a single directory.
// Documents are append-only: an existing file is never overwritten.
type Storage struct {
	dir string
}

// NewStorage creates the certificates directory if needed.
func NewStorage(dir string) (*Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("certificates directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create certificates directory: %w", err)
	}
	return &Storage{dir: dir}, nil
}

// Dir returns the directory documents are written to.
func (s *Storage) Dir() string {
	return s.dir
}

// SanitizeTitle collapses whitespace runs to "_" and replaces path separators.
// Nothing else is stripped. Distinct titles may share a sanitized form; the
// license ID suffix keeps file names unique.
func SanitizeTitle(title string) string {
	s := whitespaceRun.ReplaceAllString(strings.TrimSpace(title), "_")
	s = pathSeparator.Replace(s)
	if len(s) > maxTitleBytes {
		s = s[:maxTitleBytes]
		for !utf8.ValidString(s) {
			s = s[:len(s)-1]
		}
	}
	return s
}

// PathFor returns the document path for a title and license ID.
func (s *Storage) PathFor(title, licenseID string) string {
	return filepath.Join(s.dir, SanitizeTitle(title)+"_"+licenseID+".md")
}

// Write stores body as a new document and returns its path and fingerprint.
// It fails with ErrExists rather than overwrite, and removes a partially written file.
func (s *Storage) Write(title, licenseID string, body []byte) (path, fingerprint string, err error) {
	path = s.PathFor(title, licenseID)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //#nosec G304 -- path is built from a sanitized title inside the certificates dir
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", "", fmt.Errorf("%w: %s", ErrExists, path)
		}
		return "", "", fmt.Errorf("create certificate: %w", err)
	}

	if _, err = f.Write(body); err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", "", fmt.Errorf("write certificate: %w", err)
	}

	return path, Fingerprint(body), nil
}

// Read returns the document at path. Paths outside the certificates directory are refused.
func (s *Storage) Read(path string) ([]byte, error) {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return nil, fmt.Errorf("path %s is outside the certificates directory", path)
	}
	return os.ReadFile(path) //#nosec G304 -- checked to be inside the certificates dir
}

// Verify re-hashes the document at path and compares it with fingerprint.
func (s *Storage) Verify(path, fingerprint string) (bool, error) {
	body, err := s.Read(path)
	if err != nil {
		return false, err
	}
	return Fingerprint(body) == fingerprint, nil
}

// Fingerprint is the hex BLAKE2b-256 digest of a document.
func Fingerprint(body []byte) string {
	sum := blake2b.Sum256(body)
	return hex.EncodeToString(sum[:])
}
