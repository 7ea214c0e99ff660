package identity

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"reelsync/internal/media"
	"reelsync/internal/services"
)

// DefaultPrefixBytes is the leading byte range hashed for a fingerprint.
const DefaultPrefixBytes int64 = 2 * 1024 * 1024

// Fingerprint hashes the first DefaultPrefixBytes of the file at path.
func Fingerprint(path string) (string, error) {
	return FingerprintPrefix(path, DefaultPrefixBytes)
}

// FingerprintPrefix hashes at most limit leading bytes of the file at path.
// Open and read failures are reported as transient: the file may still be
// copying or locked, and callers must retry rather than treat it as deleted.
func FingerprintPrefix(path string, limit int64) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", services.Wrap(services.ErrValidation, "identity", "fingerprint", "empty path", nil)
	}
	if limit <= 0 {
		limit = DefaultPrefixBytes
	}

	file, err := os.Open(path)
	if err != nil {
		marker := services.ErrTransient
		if errors.Is(err, fs.ErrNotExist) {
			marker = services.ErrNotFound
		}
		return "", services.Wrap(marker, "identity", "fingerprint", path, err)
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, io.LimitReader(file, limit)); err != nil {
		return "", services.Wrap(services.ErrTransient, "identity", "fingerprint", path, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// TitleKey derives the catalog identity of a title from its category and
// normalized title text.
func TitleKey(category media.Category, title string) string {
	sum := md5.Sum([]byte(string(category) + title))
	return hex.EncodeToString(sum[:])
}

// Hasher fingerprints files with a fixed prefix length.
type Hasher struct {
	PrefixBytes int64
}

// NewHasher returns a Hasher reading limit bytes; non-positive limits use the default.
func NewHasher(limit int64) Hasher {
	if limit <= 0 {
		limit = DefaultPrefixBytes
	}
	return Hasher{PrefixBytes: limit}
}

// Fingerprint hashes the configured prefix of path.
func (h Hasher) Fingerprint(path string) (string, error) {
	return FingerprintPrefix(path, h.PrefixBytes)
}

func (h Hasher) String() string {
	return fmt.Sprintf("md5/%d", h.PrefixBytes)
}
