package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"reelsync/internal/media"
	"reelsync/internal/services"
)

const deleteChunkSize = 200

// Catalogued paths are absolute, so the placeholder never collides.
const movePlaceholder = "moving:"

const entryColumns = `m.id, m.category, m.title, m.title_hash_key, m.release_date, m.tmdb_id, m.entry_updated, m.api_updated,
	(SELECT COUNT(1) FROM media_metadata mm WHERE mm.media_item_id = m.id)`

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry       Entry
		category    string
		releaseDate sql.NullString
		tmdbID      sql.NullString
		updatedRaw  sql.NullString
		apiRaw      sql.NullString
	)
	if err := scanner.Scan(
		&entry.ID,
		&category,
		&entry.Title,
		&entry.TitleKey,
		&releaseDate,
		&tmdbID,
		&updatedRaw,
		&apiRaw,
		&entry.Instances,
	); err != nil {
		return nil, err
	}
	entry.Category = media.Category(category)
	entry.ReleaseDate = releaseDate.String
	entry.TMDBID = tmdbID.String
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		entry.EntryUpdated = updated
	}
	entry.APIUpdated = parseNullTime(apiRaw)
	return &entry, nil
}

// AllFingerprints returns every catalogued fingerprint mapped to its path.
func (s *Store) AllFingerprints(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT file_hash_key, path FROM media_metadata`)
	if err != nil {
		return nil, services.Wrap(services.ErrCatalog, "catalog", "fingerprints", "query", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var fingerprint, path string
		if err := rows.Scan(&fingerprint, &path); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		out[fingerprint] = path
	}
	return out, rows.Err()
}

// InstancePath returns the catalogued path for fingerprint.
func (s *Store) InstancePath(ctx context.Context, fingerprint string) (string, bool, error) {
	var path string
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT path FROM media_metadata WHERE file_hash_key = ?`, fingerprint,
	).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, services.Wrap(services.ErrCatalog, "catalog", "instance path", fingerprint, err)
	}
	return path, true, nil
}

// MovePaths rewrites the path of each instance keyed by fingerprint in one
// transaction. Paths are parked on a placeholder first so that swaps and
// chains of renames never collide on the unique path index. An instance
// already recorded at a target path under another fingerprint is removed.
// It returns the number of instances moved.
func (s *Store) MovePaths(ctx context.Context, moves map[string]string) (int64, error) {
	if len(moves) == 0 {
		return 0, nil
	}
	var moved int64
	err := s.WithTx(ctx, func(tx *Tx) error {
		moved = 0
		for fp := range moves {
			if _, err := tx.tx.ExecContext(ctx,
				`UPDATE media_metadata SET path = ? WHERE file_hash_key = ?`, movePlaceholder+fp, fp,
			); err != nil {
				return fmt.Errorf("park path: %w", err)
			}
		}
		for fp, path := range moves {
			if _, err := tx.tx.ExecContext(ctx,
				`DELETE FROM media_metadata WHERE path = ? AND file_hash_key <> ?`, path, fp,
			); err != nil {
				return fmt.Errorf("delete stale instance: %w", err)
			}
			res, err := tx.tx.ExecContext(ctx,
				`UPDATE media_metadata SET path = ? WHERE file_hash_key = ?`, path, fp)
			if err != nil {
				return fmt.Errorf("move path: %w", err)
			}
			if n, err := res.RowsAffected(); err == nil {
				moved += n
			}
		}
		return nil
	})
	return moved, err
}

// DeleteByFingerprint removes the instances with the given fingerprints in
// one transaction. Entries left without instances are removed by the schema
// trigger. It returns the number of instances deleted.
func (s *Store) DeleteByFingerprint(ctx context.Context, fingerprints ...string) (int64, error) {
	if len(fingerprints) == 0 {
		return 0, nil
	}
	var deleted int64
	err := s.WithTx(ctx, func(tx *Tx) error {
		deleted = 0
		for start := 0; start < len(fingerprints); start += deleteChunkSize {
			end := min(start+deleteChunkSize, len(fingerprints))
			chunk := fingerprints[start:end]
			args := make([]any, len(chunk))
			for i, fp := range chunk {
				args[i] = fp
			}
			res, err := tx.tx.ExecContext(ctx,
				`DELETE FROM media_metadata WHERE file_hash_key IN (`+makePlaceholders(len(chunk))+`)`, args...)
			if err != nil {
				return fmt.Errorf("delete instances: %w", err)
			}
			if n, err := res.RowsAffected(); err == nil {
				deleted += n
			}
		}
		return nil
	})
	return deleted, err
}

// LookupByTitleKey returns the entry for titleKey, or nil when absent.
func (s *Store) LookupByTitleKey(ctx context.Context, titleKey string) (*Entry, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+entryColumns+` FROM media_items m WHERE m.title_hash_key = ?`, titleKey)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrCatalog, "catalog", "lookup", titleKey, err)
	}
	return entry, nil
}

// GetEntry returns the entry with id, or nil when absent.
func (s *Store) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+entryColumns+` FROM media_items m WHERE m.id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrCatalog, "catalog", "get entry", fmt.Sprint(id), err)
	}
	return entry, nil
}

// ListFilter pages through entries in id order.
type ListFilter struct {
	Category media.Category
	AfterID  int64
	Limit    int
}

// ListEntries returns entries matching filter ordered by id.
func (s *Store) ListEntries(ctx context.Context, filter ListFilter) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM media_items m WHERE m.id > ?`
	args := []any{filter.AfterID}
	if filter.Category != "" {
		query += ` AND m.category = ?`
		args = append(args, string(filter.Category))
	}
	query += ` ORDER BY m.id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrCatalog, "catalog", "list entries", "query", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Instances returns the physical files under an entry ordered by season,
// episode and path.
func (s *Store) Instances(ctx context.Context, entryID int64) ([]Instance, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT id, media_item_id, file_hash_key, path, season, episode,
		extension, resolution, video_codec, audio_codec, duration, file_size, key_frame
		FROM media_metadata WHERE media_item_id = ? ORDER BY season, episode, path`, entryID)
	if err != nil {
		return nil, services.Wrap(services.ErrCatalog, "catalog", "instances", "query", err)
	}
	defer rows.Close()

	var out []Instance
	for rows.Next() {
		var (
			inst            Instance
			season, episode sql.NullInt64
			ext, res        sql.NullString
			video, audio    sql.NullString
			duration, size  sql.NullString
			frame           sql.NullString
		)
		if err := rows.Scan(&inst.ID, &inst.EntryID, &inst.Fingerprint, &inst.Path, &season, &episode,
			&ext, &res, &video, &audio, &duration, &size, &frame); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		inst.Season = nullIntPtr(season)
		inst.Episode = nullIntPtr(episode)
		inst.Extension = ext.String
		inst.Resolution = res.String
		inst.VideoCodec = video.String
		inst.AudioCodec = audio.String
		inst.Duration = duration.String
		inst.FileSize = size.String
		inst.KeyFrame = frame.String
		out = append(out, inst)
	}
	return out, rows.Err()
}

// Seasons returns the season aggregates for a series entry.
func (s *Store) Seasons(ctx context.Context, entryID int64) ([]Season, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT season, latest_episode_entry, air_date, episode_count FROM tv_seasons WHERE media_item_id = ? ORDER BY season`, entryID)
	if err != nil {
		return nil, services.Wrap(services.ErrCatalog, "catalog", "seasons", "query", err)
	}
	defer rows.Close()

	var out []Season
	for rows.Next() {
		var (
			season  Season
			latest  sql.NullString
			airDate sql.NullString
			count   sql.NullInt64
		)
		if err := rows.Scan(&season.Number, &latest, &airDate, &count); err != nil {
			return nil, fmt.Errorf("scan season: %w", err)
		}
		season.LatestEpisodeEntry = parseNullTime(latest)
		season.AirDate = airDate.String
		season.EpisodeCount = int(count.Int64)
		out = append(out, season)
	}
	return out, rows.Err()
}

// Subtitles returns the subtitle paths stored for an instance.
func (s *Store) Subtitles(ctx context.Context, instanceID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT subtitle_path FROM media_subtitles WHERE media_metadata_id = ? ORDER BY subtitle_path`, instanceID)
	if err != nil {
		return nil, services.Wrap(services.ErrCatalog, "catalog", "subtitles", "query", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan subtitle: %w", err)
		}
		out = append(out, path)
	}
	return out, rows.Err()
}

// Genres returns the genre names linked to an entry.
func (s *Store) Genres(ctx context.Context, entryID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT g.genre FROM genres g
		JOIN media_genres mg ON mg.genre_id = g.id WHERE mg.media_item_id = ? ORDER BY g.genre`, entryID)
	if err != nil {
		return nil, services.Wrap(services.ErrCatalog, "catalog", "genres", "query", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var genre string
		if err := rows.Scan(&genre); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		out = append(out, genre)
	}
	return out, rows.Err()
}

// Stats returns catalog counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	stats := Stats{ByCategory: make(map[media.Category]int)}

	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(1), SUM(CASE WHEN api_updated IS NOT NULL THEN 1 ELSE 0 END) FROM media_items GROUP BY category`)
	if err != nil {
		return Stats{}, services.Wrap(services.ErrCatalog, "catalog", "stats", "query", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			category string
			count    int
			enriched int
		)
		if err := rows.Scan(&category, &count, &enriched); err != nil {
			return Stats{}, fmt.Errorf("scan stats: %w", err)
		}
		stats.ByCategory[media.Category(category)] = count
		stats.Entries += count
		stats.Enriched += enriched
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM media_metadata`).Scan(&stats.Instances); err != nil {
		return Stats{}, services.Wrap(services.ErrCatalog, "catalog", "stats", "instances", err)
	}
	return stats, nil
}
