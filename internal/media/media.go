package media

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Category identifies which library a file belongs to.
type Category string

const (
	CategoryMovie  Category = "movie"
	CategorySeries Category = "series"
)

// Categories lists every supported category in a stable order.
func Categories() []Category {
	return []Category{CategoryMovie, CategorySeries}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryMovie || c == CategorySeries
}

func (c Category) String() string { return string(c) }

// ParseCategory accepts the canonical names plus the plural and "tv" aliases
// used in library configuration.
func ParseCategory(value string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "movie", "movies":
		return CategoryMovie, nil
	case "series", "tv", "show", "shows":
		return CategorySeries, nil
	default:
		return "", fmt.Errorf("unknown category %q", value)
	}
}

// Root is a configured library directory and the category of everything under it.
type Root struct {
	Category Category
	Path     string
}

// File is a candidate media file discovered by the scanner or the watcher.
// It only lives for the duration of one pipeline pass.
type File struct {
	Category Category
	Filename string
	Dir      string
	Root     string
}

// Path returns the absolute path of the file.
func (f File) Path() string {
	return filepath.Join(f.Dir, f.Filename)
}

// Extension returns the lowercase extension without the leading dot.
func (f File) Extension() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Filename)), ".")
}

// Stem returns the filename without its extension.
func (f File) Stem() string {
	return strings.TrimSuffix(f.Filename, filepath.Ext(f.Filename))
}

// NewFile builds a File from an absolute path and the root it belongs to.
func NewFile(root Root, path string) File {
	cleaned := filepath.Clean(path)
	return File{
		Category: root.Category,
		Filename: filepath.Base(cleaned),
		Dir:      filepath.Dir(cleaned),
		Root:     filepath.Clean(root.Path),
	}
}

// DefaultExtensions are the container extensions treated as media when the
// configuration does not override them.
var DefaultExtensions = []string{".mp4", ".mkv", ".avi", ".mov", ".flv", ".wmv", ".webm"}

// ExtensionSet normalizes a list of extensions into a lookup set keyed by
// lowercase ".ext".
func ExtensionSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}

// HasExtension reports whether name carries one of the extensions in set.
func HasExtension(name string, set map[string]struct{}) bool {
	_, ok := set[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ResolveRoot returns the root that owns path by longest-prefix match on
// whole path components.
func ResolveRoot(roots []Root, path string) (Root, bool) {
	cleaned := filepath.Clean(path)
	var (
		best  Root
		found bool
	)
	for _, root := range roots {
		rootPath := filepath.Clean(root.Path)
		if cleaned != rootPath && !strings.HasPrefix(cleaned, rootPath+string(filepath.Separator)) {
			continue
		}
		if !found || len(rootPath) > len(filepath.Clean(best.Path)) {
			best, found = root, true
		}
	}
	return best, found
}
