package transcode

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const collisionSuffixLayout = "20060102150405"

// OutputPath returns where the transcoded rendition of source is written:
// the same directory and stem with the target container extension. When
// that path is taken (including when it is the source itself) a
// _YYYYmmddHHMMSS suffix from now is appended to the stem.
func OutputPath(source, container string, now time.Time) string {
	container = strings.TrimPrefix(strings.ToLower(container), ".")
	stem := strings.TrimSuffix(source, filepath.Ext(source))
	candidate := stem + "." + container
	if filepath.Clean(candidate) != filepath.Clean(source) {
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
	return stem + "_" + now.Format(collisionSuffixLayout) + "." + container
}
