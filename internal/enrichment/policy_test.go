package enrichment

import (
	"testing"
	"time"

	"reelsync/internal/catalog"
	"reelsync/internal/enrichment/tmdb"
	"reelsync/internal/media"
)

func TestDecide(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	window := 24 * time.Hour
	at := func(ago time.Duration) *time.Time {
		v := now.Add(-ago)
		return &v
	}
	enriched := at(time.Hour)

	tests := []struct {
		name    string
		entry   catalog.Entry
		seasons []catalog.Season
		skip    bool
	}{
		{name: "movie never enriched", entry: catalog.Entry{Category: media.CategoryMovie}},
		{name: "movie enriched long ago", entry: catalog.Entry{Category: media.CategoryMovie, APIUpdated: at(900 * time.Hour)}, skip: true},
		{name: "series never enriched", entry: catalog.Entry{Category: media.CategorySeries}, seasons: []catalog.Season{{Number: 1, LatestEpisodeEntry: at(time.Hour)}}},
		{name: "series without seasons", entry: catalog.Entry{Category: media.CategorySeries, APIUpdated: enriched}},
		{
			name:  "series all fresh",
			entry: catalog.Entry{Category: media.CategorySeries, APIUpdated: enriched},
			seasons: []catalog.Season{
				{Number: 1, LatestEpisodeEntry: at(2 * time.Hour)},
				{Number: 2, LatestEpisodeEntry: at(time.Hour)},
			},
			skip: true,
		},
		{
			name:  "old season stale never blocks",
			entry: catalog.Entry{Category: media.CategorySeries, APIUpdated: enriched},
			seasons: []catalog.Season{
				{Number: 1, LatestEpisodeEntry: at(400 * time.Hour)},
				{Number: 2, LatestEpisodeEntry: at(time.Hour)},
			},
			skip: true,
		},
		{
			name:  "newest season stale",
			entry: catalog.Entry{Category: media.CategorySeries, APIUpdated: enriched},
			seasons: []catalog.Season{
				{Number: 2, LatestEpisodeEntry: at(30 * time.Hour)},
				{Number: 1, LatestEpisodeEntry: at(time.Hour)},
			},
		},
		{
			name:  "new season without stamp",
			entry: catalog.Entry{Category: media.CategorySeries, APIUpdated: enriched},
			seasons: []catalog.Season{
				{Number: 1, LatestEpisodeEntry: at(time.Hour)},
				{Number: 2},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(tc.entry, tc.seasons, window, now)
			if got.Skip != tc.skip {
				t.Fatalf("Decide skip = %v (%s), want %v", got.Skip, got.Reason, tc.skip)
			}
			if got.Reason == "" {
				t.Fatal("decision must carry a reason")
			}
		})
	}
}

func TestConvertMovie(t *testing.T) {
	details := &tmdb.Details{
		ID:                  42,
		IMDbID:              "tt0042",
		Overview:            "plot",
		OriginCountry:       []string{"US", "CA"},
		SpokenLanguages:     []tmdb.Named{{Name: "English"}, {Name: "French"}},
		ProductionCompanies: []tmdb.Named{{Name: "Studio A"}, {Name: "Studio B"}},
		Genres:              []tmdb.Named{{Name: "Drama"}, {Name: " "}},
		Budget:              1000,
		Runtime:             101,
	}
	got := Convert(details, media.CategoryMovie, "2020")
	if got.TMDBID != "42" || got.Studio != "Studio A" || got.OriginCountry != "US, CA" || got.SpokenLanguages != "English, French" {
		t.Fatalf("unexpected enrichment %+v", got)
	}
	if got.ReleaseDate != "2020" {
		t.Fatalf("missing release date must fall back to the parsed year, got %q", got.ReleaseDate)
	}
	if len(got.Genres) != 1 || got.Movie == nil || got.Movie.Runtime != 101 || got.Series != nil {
		t.Fatalf("unexpected movie payload %+v", got)
	}
}

func TestConvertSeries(t *testing.T) {
	details := &tmdb.Details{
		ID:               7,
		FirstAirDate:     "2005-03-24",
		CreatedBy:        []tmdb.Named{{Name: "Greg Daniels"}},
		NextEpisodeToAir: &tmdb.EpisodeRef{AirDate: "2026-11-01"},
		NumberOfSeasons:  2,
		Seasons:          []tmdb.Season{{ID: 70, SeasonNumber: 1, EpisodeCount: 6, AirDate: "2005-03-24"}},
	}
	got := Convert(details, media.CategorySeries, "")
	if got.ReleaseDate != "2005-03-24" || got.Series == nil || got.Movie != nil {
		t.Fatalf("unexpected series payload %+v", got)
	}
	if got.Series.NextEpisodeToAir != "2026-11-01" || len(got.Series.CreatedBy) != 1 {
		t.Fatalf("unexpected series details %+v", got.Series)
	}
	if len(got.Seasons) != 1 || got.Seasons[0].TMDBID != 70 || got.Seasons[0].EpisodeCount != 6 {
		t.Fatalf("unexpected seasons %+v", got.Seasons)
	}
}

func TestSearchYear(t *testing.T) {
	cases := map[string]string{"2020": "2020", "2020-03-01": "2020", "": "", "abcd-01": "", "20": ""}
	for input, want := range cases {
		if got := SearchYear(input); got != want {
			t.Fatalf("SearchYear(%q) = %q, want %q", input, got, want)
		}
	}
}
