package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dvallejo/tunesync/internal/domain"
)

// Browse queries over the catalog mirror, for inspecting the catalog
// without resolving a playlist.

// TrackHit is one row of a track search.
type TrackHit struct {
	ID         string `db:"id"`
	Name       string `db:"name"`
	Artists    string `db:"artists"`
	Album      string `db:"album_name"`
	DurationMS int64  `db:"duration_ms"`
	Popularity int64  `db:"popularity"`
	ISRC       string `db:"external_id_isrc"`
}

// ArtistHit is one row of an artist search.
type ArtistHit struct {
	ID         string `db:"id"`
	Name       string `db:"name"`
	Popularity int64  `db:"popularity"`
	Followers  int64  `db:"followers_total"`
}

// AlbumHit is one row of an album search.
type AlbumHit struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Type        string `db:"album_type"`
	ReleaseDate string `db:"release_date"`
	Popularity  int64  `db:"popularity"`
	TotalTracks int64  `db:"total_tracks"`
}

// TrackDetails is a track row plus its known file descriptors.
type TrackDetails struct {
	TrackHit
	Files []domain.CatalogFile
}

// Available reports whether the track has retrievable audio in the catalog.
func (d TrackDetails) Available() bool {
	return domain.CatalogEntry{Files: d.Files}.HasUsableFile()
}

const trackColumns = `id, name,
	COALESCE(artists, '') AS artists,
	COALESCE(album_name, '') AS album_name,
	COALESCE(duration_ms, 0) AS duration_ms,
	COALESCE(popularity, 0) AS popularity,
	COALESCE(external_id_isrc, '') AS external_id_isrc`

// SearchTracks finds tracks by name substring, most popular first.
func (d *DB) SearchTracks(ctx context.Context, query string, limit int) ([]TrackHit, error) {
	var hits []TrackHit
	err := d.db.SelectContext(ctx, &hits,
		`SELECT `+trackColumns+` FROM tracks WHERE name LIKE ? ORDER BY popularity DESC LIMIT ?`,
		"%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("%w: track search failed: %v", domain.ErrAdapterUnavailable, err)
	}
	return hits, nil
}

// SearchArtists finds artists by name substring, most followed first.
func (d *DB) SearchArtists(ctx context.Context, query string, limit int) ([]ArtistHit, error) {
	var hits []ArtistHit
	err := d.db.SelectContext(ctx, &hits,
		`SELECT id, name,
			COALESCE(popularity, 0) AS popularity,
			COALESCE(followers_total, 0) AS followers_total
		 FROM artists WHERE name LIKE ? ORDER BY followers_total DESC LIMIT ?`,
		"%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("%w: artist search failed: %v", domain.ErrAdapterUnavailable, err)
	}
	return hits, nil
}

// SearchAlbums finds albums by name substring, most popular first.
func (d *DB) SearchAlbums(ctx context.Context, query string, limit int) ([]AlbumHit, error) {
	var hits []AlbumHit
	err := d.db.SelectContext(ctx, &hits,
		`SELECT id, name,
			COALESCE(album_type, '') AS album_type,
			COALESCE(release_date, '') AS release_date,
			COALESCE(popularity, 0) AS popularity,
			COALESCE(total_tracks, 0) AS total_tracks
		 FROM albums WHERE name LIKE ? ORDER BY popularity DESC LIMIT ?`,
		"%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("%w: album search failed: %v", domain.ErrAdapterUnavailable, err)
	}
	return hits, nil
}

// TrackDetails returns a single track with its file descriptors. A track the
// catalog does not know yields domain.ErrNotFound.
func (d *DB) TrackDetails(ctx context.Context, id string) (*TrackDetails, error) {
	var hit TrackHit
	err := d.db.GetContext(ctx, &hit,
		`SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: track %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: track lookup failed: %v", domain.ErrAdapterUnavailable, err)
	}

	details := &TrackDetails{TrackHit: hit}

	// File descriptors are optional; the files table may not ship with
	// every catalog dump.
	var rows []fileRow
	if err := d.db.SelectContext(ctx, &rows,
		`SELECT track_id, filename, status, reencoded_kbit_vbr FROM track_files WHERE track_id = ?`, id); err == nil {
		for _, row := range rows {
			details.Files = append(details.Files, row.catalogFile())
		}
	}

	return details, nil
}

// Stats are row counts over the catalog mirror.
type Stats struct {
	Tracks int64
	Files  int64
}

// Stats counts the rows the adapter can reach.
func (d *DB) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := d.db.GetContext(ctx, &s.Tracks, `SELECT COUNT(*) FROM tracks`); err != nil {
		return s, fmt.Errorf("%w: stats query failed: %v", domain.ErrAdapterUnavailable, err)
	}
	if err := d.db.GetContext(ctx, &s.Files, `SELECT COUNT(*) FROM track_files`); err != nil {
		return s, fmt.Errorf("%w: stats query failed: %v", domain.ErrAdapterUnavailable, err)
	}
	return s, nil
}
