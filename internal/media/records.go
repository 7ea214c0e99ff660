package media

import "fmt"

// Technical holds the normalized facts reported by the media inspector.
type Technical struct {
	Resolution      string
	Duration        string
	DurationSeconds float64
	AudioCodec      string
	VideoCodec      string
	Bitrate         string
	BitrateKbps     float64
	FrameRate       string
	Width           int
	Height          int
	AspectRatio     float64
}

// Instance describes one physical file as stored in the catalog.
type Instance struct {
	Fingerprint string
	Path        string
	Extension   string
	SizeBytes   int64
	FileSize    string
	Technical   Technical
	KeyFrame    string
	Subtitles   []string
}

// Record is implemented by MovieRecord and SeriesRecord only.
type Record interface {
	Category() Category
	Key() string
	DisplayTitle() string
	ReleaseYear() string
	File() Instance
	isRecord()
}

// MovieRecord is the ingestion payload for a movie file.
type MovieRecord struct {
	Title    string
	TitleKey string
	Year     string
	Instance Instance
}

func (MovieRecord) Category() Category     { return CategoryMovie }
func (r MovieRecord) Key() string          { return r.TitleKey }
func (r MovieRecord) DisplayTitle() string { return r.Title }
func (r MovieRecord) ReleaseYear() string  { return r.Year }
func (r MovieRecord) File() Instance       { return r.Instance }
func (MovieRecord) isRecord()              {}

// SeriesRecord is the ingestion payload for an episode file.
type SeriesRecord struct {
	Title        string
	TitleKey     string
	Year         string
	Season       int
	Episode      int
	EpisodeTitle string
	// Tiebreaker orders episodes whose number could not be parsed.
	Tiebreaker int64
	Instance   Instance
}

func (SeriesRecord) Category() Category     { return CategorySeries }
func (r SeriesRecord) Key() string          { return r.TitleKey }
func (r SeriesRecord) DisplayTitle() string { return r.Title }
func (r SeriesRecord) ReleaseYear() string  { return r.Year }
func (r SeriesRecord) File() Instance       { return r.Instance }
func (SeriesRecord) isRecord()              {}

var (
	_ Record = MovieRecord{}
	_ Record = SeriesRecord{}
)

// HumanSize renders a byte count in megabytes below one gigabyte and in
// gigabytes above it.
func HumanSize(bytes int64) string {
	const (
		mb = 1024 * 1024
		gb = 1024 * mb
	)
	if bytes < gb {
		return fmt.Sprintf("%.2f MB", float64(bytes)/mb)
	}
	return fmt.Sprintf("%.2f GB", float64(bytes)/gb)
}
