package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Plabrum/trackstar/internal/game/domain"
	"github.com/Plabrum/trackstar/internal/game/storage"
)

// PutPack creates or replaces a pack row.
func (s *Store) PutPack(ctx context.Context, pack domain.Pack) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	packID := strings.TrimSpace(pack.ID)
	if packID == "" {
		return fmt.Errorf("pack id is required")
	}
	if strings.TrimSpace(pack.Name) == "" {
		return fmt.Errorf("pack name is required")
	}

	_, err := s.q.ExecContext(ctx, `
INSERT INTO packs (id, name, description)
VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    description = excluded.description
`, packID, pack.Name, pack.Description)
	if err != nil {
		return fmt.Errorf("put pack: %w", err)
	}
	return nil
}

// GetPack loads a pack and its track count, returning storage.ErrNotFound
// when absent.
func (s *Store) GetPack(ctx context.Context, packID string) (domain.Pack, error) {
	if err := ctx.Err(); err != nil {
		return domain.Pack{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Pack{}, err
	}

	packID = strings.TrimSpace(packID)
	if packID == "" {
		return domain.Pack{}, fmt.Errorf("pack id is required")
	}

	row := s.q.QueryRowContext(ctx, `
SELECT p.id, p.name, p.description, COUNT(t.id)
FROM packs p
LEFT JOIN tracks t ON t.pack_id = p.id
WHERE p.id = ?
GROUP BY p.id
`, packID)

	var pack domain.Pack
	if err := row.Scan(&pack.ID, &pack.Name, &pack.Description, &pack.TrackCount); err != nil {
		if err == sql.ErrNoRows {
			return domain.Pack{}, storage.ErrNotFound
		}
		return domain.Pack{}, fmt.Errorf("get pack: %w", err)
	}
	return pack, nil
}

// ListPacks returns every pack with its track count, ordered by name.
func (s *Store) ListPacks(ctx context.Context) ([]domain.Pack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
SELECT p.id, p.name, p.description, COUNT(t.id)
FROM packs p
LEFT JOIN tracks t ON t.pack_id = p.id
GROUP BY p.id
ORDER BY p.name ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list packs: %w", err)
	}
	defer rows.Close()

	var packs []domain.Pack
	for rows.Next() {
		var pack domain.Pack
		if err := rows.Scan(&pack.ID, &pack.Name, &pack.Description, &pack.TrackCount); err != nil {
			return nil, fmt.Errorf("scan pack: %w", err)
		}
		packs = append(packs, pack)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate packs: %w", err)
	}
	return packs, nil
}

// PutTrack creates or replaces a track row.
func (s *Store) PutTrack(ctx context.Context, track domain.Track) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	trackID := strings.TrimSpace(track.ID)
	if trackID == "" {
		return fmt.Errorf("track id is required")
	}
	if strings.TrimSpace(track.PackID) == "" {
		return fmt.Errorf("pack id is required")
	}
	if track.Popularity < 0 || track.Popularity > 100 {
		return fmt.Errorf("track popularity must be between 0 and 100")
	}

	_, err := s.q.ExecContext(ctx, `
INSERT INTO tracks (id, pack_id, title, artist, popularity)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    pack_id = excluded.pack_id,
    title = excluded.title,
    artist = excluded.artist,
    popularity = excluded.popularity
`, trackID, track.PackID, track.Title, track.Artist, track.Popularity)
	if err != nil {
		return fmt.Errorf("put track: %w", err)
	}
	return nil
}

// GetTrack loads a track by id, returning storage.ErrNotFound when absent.
func (s *Store) GetTrack(ctx context.Context, trackID string) (domain.Track, error) {
	if err := ctx.Err(); err != nil {
		return domain.Track{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Track{}, err
	}

	trackID = strings.TrimSpace(trackID)
	if trackID == "" {
		return domain.Track{}, fmt.Errorf("track id is required")
	}

	row := s.q.QueryRowContext(ctx, `
SELECT id, pack_id, title, artist, popularity
FROM tracks
WHERE id = ?
`, trackID)

	var track domain.Track
	if err := row.Scan(&track.ID, &track.PackID, &track.Title, &track.Artist, &track.Popularity); err != nil {
		if err == sql.ErrNoRows {
			return domain.Track{}, storage.ErrNotFound
		}
		return domain.Track{}, fmt.Errorf("get track: %w", err)
	}
	return track, nil
}

// ListTracksInBand returns the pack's tracks whose popularity falls inside
// [minPopularity, maxPopularity], excluding the given track ids.
func (s *Store) ListTracksInBand(ctx context.Context, packID string, minPopularity, maxPopularity int, excludeIDs []string) ([]domain.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	packID = strings.TrimSpace(packID)
	if packID == "" {
		return nil, fmt.Errorf("pack id is required")
	}

	query := `
SELECT id, pack_id, title, artist, popularity
FROM tracks
WHERE pack_id = ? AND popularity >= ? AND popularity <= ?
`
	args := []any{packID, minPopularity, maxPopularity}
	if len(excludeIDs) > 0 {
		query += " AND id NOT IN (?" + strings.Repeat(", ?", len(excludeIDs)-1) + ")"
		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY id ASC"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tracks in band: %w", err)
	}
	defer rows.Close()

	var tracks []domain.Track
	for rows.Next() {
		var track domain.Track
		if err := rows.Scan(&track.ID, &track.PackID, &track.Title, &track.Artist, &track.Popularity); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracks: %w", err)
	}
	return tracks, nil
}
