package catalog

import (
	"time"

	"reelsync/internal/media"
)

// Entry is one logical title (CatalogEntry), keyed by its TitleKey.
type Entry struct {
	ID           int64
	Category     media.Category
	Title        string
	TitleKey     string
	ReleaseDate  string
	TMDBID       string
	EntryUpdated time.Time
	APIUpdated   *time.Time
	Instances    int
}

// Enriched reports whether provider metadata has been written for the entry.
func (e Entry) Enriched() bool {
	return e.APIUpdated != nil
}

// Instance is one physical file (MediaInstance), keyed by its fingerprint.
type Instance struct {
	ID          int64
	EntryID     int64
	Fingerprint string
	Path        string
	Season      *int
	Episode     *int
	Extension   string
	Resolution  string
	VideoCodec  string
	AudioCodec  string
	Duration    string
	FileSize    string
	KeyFrame    string
}

// Season is the per-series, per-season aggregate used by the staleness policy.
type Season struct {
	Number             int
	LatestEpisodeEntry *time.Time
	AirDate            string
	EpisodeCount       int
}

// IngestResult describes what an ingestion unit wrote.
type IngestResult struct {
	EntryID      int64
	InstanceID   int64
	EntryCreated bool
	// Duplicate is set when the fingerprint was already catalogued and
	// nothing was written.
	Duplicate bool
	// Replaced is the fingerprint of a stale instance that occupied the
	// same path and was removed.
	Replaced string
}

// Stats summarizes catalog contents.
type Stats struct {
	Entries    int
	Instances  int
	Enriched   int
	ByCategory map[media.Category]int
}

// Enrichment is the provider metadata written onto an entry.
type Enrichment struct {
	ReleaseDate         string
	Overview            string
	Tagline             string
	OriginCountry       string
	SpokenLanguages     string
	Studio              string
	ProductionCountries string
	Popularity          float64
	VoteAverage         float64
	VoteCount           int
	Status              string
	PosterPath          string
	BackdropPath        string
	TMDBID              string
	IMDbID              string
	Genres              []string
	Movie               *MovieDetails
	Series              *SeriesDetails
	Seasons             []SeasonDetails
}

// MovieDetails holds movie-only provider fields.
type MovieDetails struct {
	Budget  int64
	Revenue int64
	Runtime int
}

// SeriesDetails holds series-only provider fields.
type SeriesDetails struct {
	CreatedBy        []string
	FirstAirDate     string
	LastAirDate      string
	NextEpisodeToAir string
	NumberOfEpisodes int
	NumberOfSeasons  int
	InProduction     bool
}

// SeasonDetails is provider data for one season.
type SeasonDetails struct {
	Number       int
	AirDate      string
	EpisodeCount int
	TMDBID       int64
	Name         string
	Overview     string
	PosterPath   string
}
