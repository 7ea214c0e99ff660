package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"reelsync/internal/media"
	"reelsync/internal/services"
)

var errDuplicateUnit = errors.New("instance already catalogued")

// Ingest writes one file's record in a single transaction: the parent entry
// (created on first sight of its TitleKey), the instance, its subtitles and,
// for series, the season and episode rows. A fingerprint that is already
// catalogued writes nothing and reports Duplicate. An instance recorded at
// the same path under another fingerprint is stale and is replaced.
func (s *Store) Ingest(ctx context.Context, record media.Record) (IngestResult, error) {
	if record == nil {
		return IngestResult{}, services.Wrap(services.ErrValidation, "catalog", "ingest", "nil record", nil)
	}
	file := record.File()
	if strings.TrimSpace(record.Key()) == "" || strings.TrimSpace(file.Fingerprint) == "" || strings.TrimSpace(file.Path) == "" {
		return IngestResult{}, services.Wrap(services.ErrValidation, "catalog", "ingest",
			fmt.Sprintf("incomplete record for %q", file.Path), nil)
	}

	var result IngestResult
	err := s.WithTx(ctx, func(tx *Tx) error {
		result = IngestResult{}
		exists, err := tx.FingerprintExists(ctx, file.Fingerprint)
		if err != nil {
			return err
		}
		if exists {
			return errDuplicateUnit
		}
		// The stale row is parked and only deleted once the new instance
		// exists, so the orphan trigger keeps an entry both rows share.
		stale, err := tx.parkStaleAtPath(ctx, file.Path, file.Fingerprint)
		if err != nil {
			return err
		}

		entryID, created, err := tx.InsertOrIgnoreEntry(ctx, record.Category(), record.DisplayTitle(), record.Key(), record.ReleaseYear())
		if err != nil {
			return err
		}
		result.EntryID = entryID
		result.EntryCreated = created

		var season, episode *int
		series, isSeries := record.(media.SeriesRecord)
		if isSeries {
			season, episode = &series.Season, &series.Episode
		}
		instanceID, inserted, err := tx.InsertOrIgnoreInstance(ctx, entryID, season, episode, file)
		if err != nil {
			return err
		}
		if !inserted {
			return errDuplicateUnit
		}
		result.InstanceID = instanceID
		if stale != "" {
			if _, err := tx.tx.ExecContext(ctx, `DELETE FROM media_metadata WHERE file_hash_key = ?`, stale); err != nil {
				return fmt.Errorf("delete stale instance: %w", err)
			}
			result.Replaced = stale
		}

		if err := tx.insertSubtitles(ctx, instanceID, file.Subtitles); err != nil {
			return err
		}
		if isSeries {
			if err := tx.ensureSeason(ctx, entryID, series.Season); err != nil {
				return err
			}
			if err := tx.insertEpisode(ctx, entryID, instanceID, series); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, errDuplicateUnit) {
		return IngestResult{Duplicate: true}, nil
	}
	if err != nil {
		return IngestResult{}, err
	}
	return result, nil
}

// FingerprintExists reports whether an instance with fingerprint is catalogued.
func (t *Tx) FingerprintExists(ctx context.Context, fingerprint string) (bool, error) {
	var count int
	if err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM media_metadata WHERE file_hash_key = ?`, fingerprint,
	).Scan(&count); err != nil {
		return false, fmt.Errorf("lookup fingerprint: %w", err)
	}
	return count > 0, nil
}

func (t *Tx) parkStaleAtPath(ctx context.Context, path, fingerprint string) (string, error) {
	var stale string
	err := t.tx.QueryRowContext(ctx,
		`SELECT file_hash_key FROM media_metadata WHERE path = ? AND file_hash_key <> ?`, path, fingerprint,
	).Scan(&stale)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup path: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE media_metadata SET path = ? WHERE file_hash_key = ?`, movePlaceholder+stale, stale,
	); err != nil {
		return "", fmt.Errorf("park stale instance: %w", err)
	}
	return stale, nil
}

// InsertOrIgnoreEntry returns the entry for titleKey, creating it when absent.
func (t *Tx) InsertOrIgnoreEntry(ctx context.Context, category media.Category, title, titleKey, releaseDate string) (int64, bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO media_items (category, title, release_date, title_hash_key) VALUES (?, ?, ?, ?)`,
		string(category), title, nullableString(releaseDate), titleKey,
	)
	if err != nil {
		return 0, false, fmt.Errorf("insert entry: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 1 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("entry id: %w", err)
		}
		return id, true, nil
	}
	var id int64
	if err := t.tx.QueryRowContext(ctx,
		`SELECT id FROM media_items WHERE title_hash_key = ?`, titleKey,
	).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("lookup entry: %w", err)
	}
	return id, false, nil
}

// InsertOrIgnoreInstance inserts a physical file under entryID. inserted is
// false when the fingerprint or path already exists.
func (t *Tx) InsertOrIgnoreInstance(ctx context.Context, entryID int64, season, episode *int, file media.Instance) (int64, bool, error) {
	tech := file.Technical
	res, err := t.tx.ExecContext(ctx, `INSERT OR IGNORE INTO media_metadata (
		media_item_id, season, episode, resolution, extension, path, size_bytes, file_size,
		duration, duration_seconds, audio_codec, video_codec, bitrate, frame_rate,
		width, height, aspect_ratio, file_hash_key, key_frame
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entryID, intPtrValue(season), intPtrValue(episode),
		nullableString(tech.Resolution), nullableString(file.Extension), file.Path,
		file.SizeBytes, nullableString(file.FileSize),
		nullableString(tech.Duration), tech.DurationSeconds,
		nullableString(tech.AudioCodec), nullableString(tech.VideoCodec),
		nullableString(tech.Bitrate), nullableString(tech.FrameRate),
		nullableInt(tech.Width), nullableInt(tech.Height), tech.AspectRatio,
		file.Fingerprint, nullableString(file.KeyFrame),
	)
	if err != nil {
		return 0, false, fmt.Errorf("insert instance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("instance rows: %w", err)
	}
	if affected == 0 {
		return 0, false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("instance id: %w", err)
	}
	return id, true, nil
}

func (t *Tx) insertSubtitles(ctx context.Context, instanceID int64, paths []string) error {
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if _, err := t.tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO media_subtitles (media_metadata_id, subtitle_path) VALUES (?, ?)`,
			instanceID, path,
		); err != nil {
			return fmt.Errorf("insert subtitle: %w", err)
		}
	}
	return nil
}

func (t *Tx) ensureSeason(ctx context.Context, entryID int64, season int) error {
	if _, err := t.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO tv_seasons (media_item_id, season) VALUES (?, ?)`, entryID, season,
	); err != nil {
		return fmt.Errorf("insert season: %w", err)
	}
	return nil
}

func (t *Tx) insertEpisode(ctx context.Context, entryID, instanceID int64, record media.SeriesRecord) error {
	var tiebreaker any
	if record.Tiebreaker != 0 {
		tiebreaker = record.Tiebreaker
	}
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO tv_episodes (media_item_id, media_metadata_id, season, episode, episode_title, tiebreaker) VALUES (?, ?, ?, ?, ?, ?)`,
		entryID, instanceID, record.Season, record.Episode, nullableString(record.EpisodeTitle), tiebreaker,
	); err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	return nil
}

func intPtrValue(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}
