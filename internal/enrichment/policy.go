package enrichment

import (
	"strconv"
	"strings"
	"time"

	"reelsync/internal/catalog"
	"reelsync/internal/enrichment/tmdb"
	"reelsync/internal/media"
)

// Decision is the staleness verdict for one entry.
type Decision struct {
	Skip   bool
	Reason string
}

// Decide reports whether entry needs provider metadata. Seasons are only
// consulted for series.
func Decide(entry catalog.Entry, seasons []catalog.Season, window time.Duration, now time.Time) Decision {
	if entry.APIUpdated == nil {
		return Decision{Reason: "never enriched"}
	}
	if entry.Category != media.CategorySeries {
		return Decision{Skip: true, Reason: "already enriched"}
	}
	if len(seasons) == 0 {
		return Decision{Reason: "no season records"}
	}

	newest := seasons[0]
	for _, season := range seasons {
		if season.LatestEpisodeEntry == nil {
			return Decision{Reason: "season " + strconv.Itoa(season.Number) + " never enriched"}
		}
		if season.Number > newest.Number {
			newest = season
		}
	}
	if now.Sub(*newest.LatestEpisodeEntry) > window {
		return Decision{Reason: "newest season " + strconv.Itoa(newest.Number) + " stale"}
	}
	return Decision{Skip: true, Reason: "seasons fresh"}
}

// Convert maps provider details onto the catalog enrichment payload.
func Convert(details *tmdb.Details, category media.Category, fallbackYear string) catalog.Enrichment {
	out := catalog.Enrichment{
		Overview:            details.Overview,
		Tagline:             details.Tagline,
		OriginCountry:       strings.Join(details.OriginCountry, ", "),
		SpokenLanguages:     joinNames(details.SpokenLanguages),
		ProductionCountries: joinNames(details.ProductionCountries),
		Popularity:          details.Popularity,
		VoteAverage:         details.VoteAverage,
		VoteCount:           details.VoteCount,
		Status:              details.Status,
		PosterPath:          details.PosterPath,
		BackdropPath:        details.BackdropPath,
		IMDbID:              details.IMDbID,
		Genres:              names(details.Genres),
	}
	if details.ID > 0 {
		out.TMDBID = strconv.FormatInt(details.ID, 10)
	}
	if len(details.ProductionCompanies) > 0 {
		out.Studio = details.ProductionCompanies[0].Name
	}

	if category == media.CategorySeries {
		out.ReleaseDate = details.FirstAirDate
		series := &catalog.SeriesDetails{
			CreatedBy:        names(details.CreatedBy),
			FirstAirDate:     details.FirstAirDate,
			LastAirDate:      details.LastAirDate,
			NumberOfEpisodes: details.NumberOfEpisodes,
			NumberOfSeasons:  details.NumberOfSeasons,
			InProduction:     details.InProduction,
		}
		if details.NextEpisodeToAir != nil {
			series.NextEpisodeToAir = details.NextEpisodeToAir.AirDate
		}
		out.Series = series
		for _, season := range details.Seasons {
			out.Seasons = append(out.Seasons, catalog.SeasonDetails{
				Number:       season.SeasonNumber,
				AirDate:      season.AirDate,
				EpisodeCount: season.EpisodeCount,
				TMDBID:       season.ID,
				Name:         season.Name,
				Overview:     season.Overview,
				PosterPath:   season.PosterPath,
			})
		}
		return out
	}

	out.ReleaseDate = details.ReleaseDate
	if out.ReleaseDate == "" {
		out.ReleaseDate = fallbackYear
	}
	out.Movie = &catalog.MovieDetails{Budget: details.Budget, Revenue: details.Revenue, Runtime: details.Runtime}
	return out
}

// SearchYear extracts the year to narrow a search from a stored release date.
func SearchYear(releaseDate string) string {
	releaseDate = strings.TrimSpace(releaseDate)
	if len(releaseDate) < 4 {
		return ""
	}
	if _, err := strconv.Atoi(releaseDate[:4]); err != nil {
		return ""
	}
	return releaseDate[:4]
}

func names(values []tmdb.Named) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if name := strings.TrimSpace(value.Name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func joinNames(values []tmdb.Named) string {
	return strings.Join(names(values), ", ")
}
