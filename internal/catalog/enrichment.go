package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// ApplyEnrichment writes provider metadata onto an entry and stamps
// api_updated. For series it refreshes the season rows: seasons known to the
// provider take its data, and every local season gets latest_episode_entry
// set to now so the staleness policy measures from this write.
func (s *Store) ApplyEnrichment(ctx context.Context, entryID int64, data Enrichment, now time.Time) error {
	ctx = ensureContext(ctx)
	stamp := now.UTC().Format(timeLayout)
	return s.WithTx(ctx, func(tx *Tx) error {
		res, err := tx.tx.ExecContext(ctx, `UPDATE media_items SET
			release_date = COALESCE(?, release_date),
			description = ?, tagline = ?, origin_country = ?, spoken_languages = ?,
			studio = ?, production_countries = ?, popularity = ?, vote_average = ?,
			vote_count = ?, status = ?, poster_path = ?, backdrop_path = ?,
			tmdb_id = ?, imdb_id = ?, api_updated = ?
			WHERE id = ?`,
			nullableString(data.ReleaseDate),
			nullableString(data.Overview), nullableString(data.Tagline),
			nullableString(data.OriginCountry), nullableString(data.SpokenLanguages),
			nullableString(data.Studio), nullableString(data.ProductionCountries),
			data.Popularity, math.Round(data.VoteAverage*10)/10, data.VoteCount,
			nullableString(data.Status), nullableString(data.PosterPath), nullableString(data.BackdropPath),
			nullableString(data.TMDBID), nullableString(data.IMDbID), stamp,
			entryID,
		)
		if err != nil {
			return fmt.Errorf("update entry: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("entry %d no longer exists", entryID)
		}

		if data.Movie != nil {
			if err := tx.upsertMovieDetails(ctx, entryID, *data.Movie); err != nil {
				return err
			}
		}
		if data.Series != nil {
			if err := tx.upsertSeriesDetails(ctx, entryID, *data.Series); err != nil {
				return err
			}
			if err := tx.refreshSeasons(ctx, entryID, data.Seasons, stamp); err != nil {
				return err
			}
		}
		return tx.linkGenres(ctx, entryID, data.Genres)
	})
}

func (t *Tx) upsertMovieDetails(ctx context.Context, entryID int64, details MovieDetails) error {
	if _, err := t.tx.ExecContext(ctx, `INSERT INTO movie_details (media_item_id, budget, revenue, runtime)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(media_item_id) DO UPDATE SET budget = excluded.budget, revenue = excluded.revenue, runtime = excluded.runtime`,
		entryID, details.Budget, details.Revenue, details.Runtime,
	); err != nil {
		return fmt.Errorf("upsert movie details: %w", err)
	}
	return nil
}

func (t *Tx) upsertSeriesDetails(ctx context.Context, entryID int64, details SeriesDetails) error {
	createdBy, err := json.Marshal(details.CreatedBy)
	if err != nil {
		return fmt.Errorf("encode created_by: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `INSERT INTO tv_series_details (
			media_item_id, created_by, first_air_date, last_air_date, next_episode_to_air,
			number_of_episodes, number_of_seasons, in_production)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(media_item_id) DO UPDATE SET
			created_by = excluded.created_by,
			first_air_date = excluded.first_air_date,
			last_air_date = excluded.last_air_date,
			next_episode_to_air = excluded.next_episode_to_air,
			number_of_episodes = excluded.number_of_episodes,
			number_of_seasons = excluded.number_of_seasons,
			in_production = excluded.in_production`,
		entryID, string(createdBy), nullableString(details.FirstAirDate), nullableString(details.LastAirDate),
		nullableString(details.NextEpisodeToAir), details.NumberOfEpisodes, details.NumberOfSeasons,
		boolToInt(details.InProduction),
	); err != nil {
		return fmt.Errorf("upsert series details: %w", err)
	}
	return nil
}

func (t *Tx) refreshSeasons(ctx context.Context, entryID int64, seasons []SeasonDetails, stamp string) error {
	for _, season := range seasons {
		if _, err := t.tx.ExecContext(ctx, `UPDATE tv_seasons SET
				air_date = ?, episode_count = ?, tmdb_id = ?, season_name = ?, overview = ?, season_poster_path = ?
			WHERE media_item_id = ? AND season = ?`,
			nullableString(season.AirDate), season.EpisodeCount, season.TMDBID,
			nullableString(season.Name), nullableString(season.Overview), nullableString(season.PosterPath),
			entryID, season.Number,
		); err != nil {
			return fmt.Errorf("update season %d: %w", season.Number, err)
		}
	}
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE tv_seasons SET latest_episode_entry = ? WHERE media_item_id = ?`, stamp, entryID,
	); err != nil {
		return fmt.Errorf("stamp seasons: %w", err)
	}
	return nil
}

func (t *Tx) linkGenres(ctx context.Context, entryID int64, genres []string) error {
	for _, genre := range genres {
		genre = strings.TrimSpace(genre)
		if genre == "" {
			continue
		}
		if _, err := t.tx.ExecContext(ctx, `INSERT OR IGNORE INTO genres (genre) VALUES (?)`, genre); err != nil {
			return fmt.Errorf("insert genre: %w", err)
		}
		if _, err := t.tx.ExecContext(ctx, `INSERT OR IGNORE INTO media_genres (media_item_id, genre_id)
			SELECT ?, id FROM genres WHERE genre = ?`, entryID, genre); err != nil {
			return fmt.Errorf("link genre: %w", err)
		}
	}
	return nil
}
