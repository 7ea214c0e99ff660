package parser

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reelsync/internal/media"
)

const (
	// UnknownTitle is returned when neither the filename nor the directory layout yields a title.
	UnknownTitle = "Unknown"
	// UnknownNumber marks a season or episode that could not be parsed.
	UnknownNumber = 999
)

var (
	whitespacePattern   = regexp.MustCompile(`\s+`)
	movieTitlePattern   = regexp.MustCompile(`^(.+?)\s*(?:\b\d{4}\b|\d{3,4}p)`)
	seriesTitlePattern  = regexp.MustCompile(`^(.+?)\s*(?:[sS]\d{1,3}[eE]\d{1,3}|\b\d{4}\b|\d{3,4}p)`)
	fallbackPattern     = regexp.MustCompile(`^(.+?)\s*(?:[sS]eason|[sS]\d{1,3}|\b\d{4}\b|\d{3,4}p|$)`)
	seasonPattern       = regexp.MustCompile(`[sS](\d{1,3})`)
	episodePattern      = regexp.MustCompile(`(?:s\d{1,3}e|e|part|episode)\s?(\d{1,3})`)
	digitsPattern       = regexp.MustCompile(`\d{1,3}`)
	yearPattern         = regexp.MustCompile(`\b\d{4}\b`)
	resolutionPattern   = regexp.MustCompile(`\d{3,4}p`)
	episodeTitlePattern = regexp.MustCompile(`(?:s\d{1,3}e\d{1,3}(?:\s+e\d{1,3})?|part\s\d{1,3}|episode\s\d{1,3})(.*?)\s*(?:2160|1080|720|repack|webrip|$)`)
)

var titleCaser = cases.Title(language.Und)

// Result is the structured identity derived from a filename and its location.
// Season and Episode are only meaningful for series.
type Result struct {
	Title        string
	Year         string
	Resolution   string
	Season       int
	Episode      int
	EpisodeTitle string
	// Tiebreaker is set when the episode number fell back to UnknownNumber.
	Tiebreaker int64
}

// Parser applies the filename rules. Now supplies the episode tiebreaker and
// defaults to time.Now.
type Parser struct {
	Now func() time.Time
}

// New returns a Parser using the wall clock.
func New() Parser {
	return Parser{Now: time.Now}
}

// Parse derives identity for a discovered file according to its category.
func (p Parser) Parse(file media.File) Result {
	if file.Category == media.CategorySeries {
		return p.ParseSeries(file.Filename, file.Dir, file.Root)
	}
	return ParseMovie(file.Filename, relativeDir(file.Dir, file.Root))
}

// ParseMovie derives a movie identity from its filename and containing directory.
func ParseMovie(filename, dir string) Result {
	return Result{
		Title:      MovieTitle(filename),
		Year:       Year(filename, dir),
		Resolution: Resolution(filename),
	}
}

// ParseSeries derives a series identity. The root is the library root the
// file was found under and drives the directory fallback for titles.
func (p Parser) ParseSeries(filename, dir, root string) Result {
	result := Result{
		Title:        SeriesTitle(filename, dir, root),
		Year:         Year(filename, relativeDir(dir, root)),
		Resolution:   Resolution(filename),
		Season:       Season(filename),
		EpisodeTitle: EpisodeTitle(filename),
	}
	if episode, ok := Episode(filename); ok {
		result.Episode = episode
	} else {
		result.Episode = UnknownNumber
		now := p.Now
		if now == nil {
			now = time.Now
		}
		result.Tiebreaker = now().Unix()
	}
	return result
}

// Clean strips parentheses, turns dot and underscore separators into spaces
// and collapses whitespace. Series names also drop hyphens.
func Clean(value string, dropHyphens bool) string {
	replacer := strings.NewReplacer("(", "", ")", "", ".", " ", "_", " ")
	value = replacer.Replace(value)
	if dropHyphens {
		value = strings.ReplaceAll(value, "-", "")
	}
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(value, " "))
}

// TitleCase capitalizes each word and lowercases the rest.
func TitleCase(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return strings.ReplaceAll(titleCaser.String(value), "'S", "'s")
}

// MovieTitle is everything before the first year or resolution marker.
func MovieTitle(filename string) string {
	cleaned := Clean(stem(filename), false)
	title := cleaned
	if match := movieTitlePattern.FindStringSubmatch(cleaned); match != nil {
		title = match[1]
	}
	if title = TitleCase(title); title == "" {
		return UnknownTitle
	}
	return title
}

// SeriesTitle is everything before the first SxxEyy, year or resolution
// marker. Unstructured names fall back to the directory layout under root:
// the top-level folder below the root names the series, which covers both a
// series folder and a season subfolder inside it.
func SeriesTitle(filename, dir, root string) string {
	cleaned := Clean(stem(filename), true)
	if match := seriesTitlePattern.FindStringSubmatch(cleaned); match != nil {
		if title := TitleCase(match[1]); title != "" {
			return title
		}
	}

	candidate := cleaned
	if parts := relativeParts(dir, root); len(parts) > 0 {
		candidate = Clean(parts[0], true)
	}
	if match := fallbackPattern.FindStringSubmatch(candidate); match != nil {
		if title := TitleCase(match[1]); title != "" {
			return title
		}
	}
	return UnknownTitle
}

// Season returns the first S<digits> number, or UnknownNumber.
func Season(filename string) int {
	if match := seasonPattern.FindStringSubmatch(stem(filename)); match != nil {
		if n, err := strconv.Atoi(match[1]); err == nil {
			return n
		}
	}
	return UnknownNumber
}

// Episode returns the episode number from an SxxEyy, Eyy, "part N" or
// "episode N" marker, falling back to the first run of digits in the stem.
// ok is false when the name has no digits at all.
func Episode(filename string) (int, bool) {
	name := stem(filename)
	if match := episodePattern.FindStringSubmatch(strings.ToLower(name)); match != nil {
		if n, err := strconv.Atoi(match[1]); err == nil {
			return n, true
		}
	}
	if digits := digitsPattern.FindString(name); digits != "" {
		if n, err := strconv.Atoi(digits); err == nil {
			return n, true
		}
	}
	return 0, false
}

// EpisodeTitle returns the text between the episode marker and the first
// quality marker, or UnknownTitle when the name carries none.
func EpisodeTitle(filename string) string {
	cleaned := strings.ToLower(Clean(stem(filename), true))
	match := episodeTitlePattern.FindStringSubmatch(cleaned)
	if match == nil {
		return UnknownTitle
	}
	if title := TitleCase(match[1]); title != "" {
		return title
	}
	return UnknownTitle
}

// Year returns the first four-digit token in the filename, else in dir.
func Year(filename, dir string) string {
	if year := yearPattern.FindString(Clean(stem(filename), false)); year != "" {
		return year
	}
	if dir == "" || dir == "." {
		return ""
	}
	return yearPattern.FindString(Clean(filepath.ToSlash(dir), false))
}

// Resolution returns the first NNNp marker in the filename.
func Resolution(filename string) string {
	return resolutionPattern.FindString(strings.ToLower(filename))
}

func stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func relativeDir(dir, root string) string {
	if root == "" {
		return dir
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return dir
	}
	return rel
}

func relativeParts(dir, root string) []string {
	if dir == "" || root == "" {
		return nil
	}
	rel := relativeDir(dir, root)
	if rel == "." || rel == dir {
		return nil
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" && part != "." {
			out = append(out, part)
		}
	}
	return out
}
