// Package catalog checks playlist entries against the reference database of
// known audio files and classifies them as present or missing.
package catalog

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/dvallejo/tunesync/internal/constants"
	"github.com/dvallejo/tunesync/internal/domain"
)

// Adapter is the catalog collaborator contract. Implementations answer
// batched identifier lookups; an unreachable backend returns
// domain.ErrAdapterUnavailable and the matcher degrades to all-missing.
type Adapter interface {
	LookupMany(ctx context.Context, ids []string) (map[string]domain.CatalogEntry, error)
	LookupByISRC(ctx context.Context, isrcs []string) (map[string]domain.CatalogEntry, error)
}

// Schema is the subset of the catalog layout this adapter reads. Shipped for
// tests and for provisioning a local mirror.
const Schema = `
CREATE TABLE IF NOT EXISTS tracks (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	artists TEXT,
	album_name TEXT,
	duration_ms INTEGER,
	popularity INTEGER,
	external_id_isrc TEXT
);

CREATE INDEX IF NOT EXISTS idx_tracks_isrc ON tracks(external_id_isrc);

CREATE TABLE IF NOT EXISTS artists (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	popularity INTEGER,
	followers_total INTEGER
);

CREATE TABLE IF NOT EXISTS albums (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	album_type TEXT,
	release_date TEXT,
	popularity INTEGER,
	total_tracks INTEGER
);

CREATE TABLE IF NOT EXISTS track_files (
	track_id TEXT NOT NULL,
	filename TEXT,
	status TEXT,
	reencoded_kbit_vbr INTEGER,
	sha256_with_embedded_meta TEXT
);

CREATE INDEX IF NOT EXISTS idx_track_files_track_id ON track_files(track_id);
`

// DB is a sqlite-backed catalog adapter. The file-descriptor table may live
// in a second database file, attached read-only next to the main one.
type DB struct {
	db *sqlx.DB
}

// NewDB opens the catalog at dsn. When filesDSN is non-empty that database
// is attached, so track_files may live in its own file as the upstream dumps
// ship it.
func NewDB(dsn, filesDSN string) (*DB, error) {
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if filesDSN != "" {
		if _, err := db.Exec("ATTACH DATABASE ? AS track_files_db", filesDSN); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to attach track files db: %w", err)
		}
	}

	return &DB{db: db}, nil
}

// Close releases the underlying connections.
func (d *DB) Close() error {
	return d.db.Close()
}

type fileRow struct {
	TrackID  string  `db:"track_id"`
	Filename *string `db:"filename"`
	Status   *string `db:"status"`
	Bitrate  *int64  `db:"reencoded_kbit_vbr"`
}

func (r fileRow) catalogFile() domain.CatalogFile {
	f := domain.CatalogFile{}
	if r.Filename != nil {
		f.Handle = *r.Filename
	}
	if r.Status != nil {
		f.Status = *r.Status
	}
	if r.Bitrate != nil && *r.Bitrate > 0 {
		f.Format = fmt.Sprintf("mp3/%dkbit", *r.Bitrate)
	}
	return f
}

// LookupMany resolves catalog entries for the given track identifiers in
// batches, one query per batch rather than one per track.
func (d *DB) LookupMany(ctx context.Context, ids []string) (map[string]domain.CatalogEntry, error) {
	result := make(map[string]domain.CatalogEntry, len(ids))

	for start := 0; start < len(ids); start += constants.CatalogBatchSize {
		end := start + constants.CatalogBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		query, args, err := sqlx.In(
			`SELECT track_id, filename, status, reencoded_kbit_vbr FROM track_files WHERE track_id IN (?)`,
			batch,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to build catalog query: %w", err)
		}

		var rows []fileRow
		if err := d.db.SelectContext(ctx, &rows, d.db.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("%w: catalog query failed: %v", domain.ErrAdapterUnavailable, err)
		}

		for _, row := range rows {
			entry := result[row.TrackID]
			entry.TrackID = row.TrackID
			entry.Files = append(entry.Files, row.catalogFile())
			result[row.TrackID] = entry
		}
	}

	return result, nil
}

type isrcFileRow struct {
	ISRC string `db:"external_id_isrc"`
	fileRow
}

// LookupByISRC resolves catalog entries keyed by ISRC, for records whose
// primary identifier is not in the catalog.
func (d *DB) LookupByISRC(ctx context.Context, isrcs []string) (map[string]domain.CatalogEntry, error) {
	result := make(map[string]domain.CatalogEntry, len(isrcs))

	for start := 0; start < len(isrcs); start += constants.CatalogBatchSize {
		end := start + constants.CatalogBatchSize
		if end > len(isrcs) {
			end = len(isrcs)
		}
		batch := isrcs[start:end]

		query, args, err := sqlx.In(
			`SELECT t.external_id_isrc, f.track_id, f.filename, f.status, f.reencoded_kbit_vbr
			 FROM track_files f
			 JOIN tracks t ON t.id = f.track_id
			 WHERE t.external_id_isrc IN (?)`,
			batch,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to build isrc query: %w", err)
		}

		var rows []isrcFileRow
		if err := d.db.SelectContext(ctx, &rows, d.db.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("%w: isrc query failed: %v", domain.ErrAdapterUnavailable, err)
		}

		for _, row := range rows {
			entry := result[row.ISRC]
			entry.TrackID = row.TrackID
			entry.Files = append(entry.Files, row.catalogFile())
			result[row.ISRC] = entry
		}
	}

	return result, nil
}
