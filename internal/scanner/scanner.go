package scanner

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"reelsync/internal/logging"
	"reelsync/internal/media"
)

// Scanner lists candidate media files under the configured library roots.
type Scanner struct {
	roots      []media.Root
	extensions map[string]struct{}
	logger     *slog.Logger
}

// New constructs a Scanner. An empty extension list uses media.DefaultExtensions.
func New(roots []media.Root, extensions []string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scanner{
		roots:      append([]media.Root(nil), roots...),
		extensions: media.ExtensionSet(extensions),
		logger:     logging.NewComponentLogger(logger, "scanner"),
	}
}

// Result is the outcome of one walk over every root.
type Result struct {
	Files        []media.File
	MissingRoots []media.Root
	// Skipped lists directories that could not be read, including a root
	// whose walk aborted. Their contents are unknown, not absent.
	Skipped []string
}

// Scan walks every root. Missing roots are logged and treated as empty;
// unreadable subdirectories are skipped and reported in Result.Skipped.
// Only context cancellation aborts the walk. Repeated calls are independent.
func (s *Scanner) Scan(ctx context.Context) (Result, error) {
	var result Result
	for _, root := range s.roots {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		info, err := os.Stat(root.Path)
		if err != nil || !info.IsDir() {
			result.MissingRoots = append(result.MissingRoots, root)
			logging.WarnWithContext(s.logger, "library root unavailable; treating as empty", "scan_root_missing",
				logging.String(logging.FieldPath, root.Path),
				logging.String(logging.FieldCategory, root.Category.String()),
				logging.String(logging.FieldErrorHint, "check the mount or the [library] section of the config"),
				logging.String(logging.FieldImpact, "files under this root are not synchronized"),
			)
			continue
		}
		files, skipped, err := s.walkRoot(ctx, root)
		result.Files = append(result.Files, files...)
		result.Skipped = append(result.Skipped, skipped...)
		if err != nil {
			return result, err
		}
	}
	s.logger.Debug("scan complete",
		logging.Int("files", len(result.Files)),
		logging.Int("missing_roots", len(result.MissingRoots)),
		logging.Int("skipped_dirs", len(result.Skipped)),
	)
	return result, nil
}

func (s *Scanner) walkRoot(ctx context.Context, root media.Root) ([]media.File, []string, error) {
	var (
		files   []media.File
		skipped []string
	)
	err := filepath.WalkDir(root.Path, func(path string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root.Path {
				return err
			}
			if entry != nil && entry.IsDir() {
				skipped = append(skipped, path)
				logging.WarnWithContext(s.logger, "unreadable directory skipped", "scan_dir_unreadable",
					logging.String(logging.FieldPath, path),
					logging.Error(err),
					logging.String(logging.FieldImpact, "catalogued files below it are kept until it is readable again"),
					logging.String(logging.FieldErrorHint, "check directory permissions"),
				)
				return fs.SkipDir
			}
			s.logger.Debug("skipping unreadable entry", logging.String(logging.FieldPath, path), logging.Error(err))
			return nil
		}
		if Hidden(entry.Name()) && path != root.Path {
			if entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() || !entry.Type().IsRegular() {
			return nil
		}
		if !media.HasExtension(entry.Name(), s.extensions) {
			return nil
		}
		files = append(files, media.NewFile(root, path))
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		logging.WarnWithContext(s.logger, "library walk aborted", "scan_walk_failed",
			logging.String(logging.FieldPath, root.Path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "catalogued files under this root are kept this pass"),
		)
		return files, []string{root.Path}, nil
	}
	return files, skipped, err
}

// Accepts reports whether name has a recognized media extension and is not
// a hidden or partial download file.
func (s *Scanner) Accepts(name string) bool {
	base := filepath.Base(name)
	return !Hidden(base) && !Partial(base) && media.HasExtension(base, s.extensions)
}

// Hidden reports whether a file or directory name is a dotfile.
func Hidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// Partial reports whether name looks like an in-progress download or temp file.
func Partial(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".tmp") || strings.HasSuffix(lower, ".part") || strings.HasSuffix(lower, ".crdownload")
}
