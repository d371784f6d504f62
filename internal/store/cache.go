package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/gray-signage/internal/playlist"
)

// Cache persists what the player last observed so it can resume offline.
type Cache interface {
	// LoadAssignment returns the last observed location, or "" if the
	// device was unpaired or nothing was recorded.
	LoadAssignment(ctx context.Context) (string, error)

	// SaveAssignment records the observed location. "" records unpaired.
	SaveAssignment(ctx context.Context, locationID string) error

	// LoadPlaylist returns the last playlist seen for a location, or
	// ErrCacheMiss.
	LoadPlaylist(ctx context.Context, locationID string) (playlist.Playlist, error)

	// SavePlaylist records a location's playlist, replacing the old one.
	SavePlaylist(ctx context.Context, locationID string, p playlist.Playlist) error
}

// SQLiteCache stores the assignment in device_identity and playlists in
// playlist_cache.
type SQLiteCache struct {
	db    *sql.DB
	clock clock.Clock
}

// NewSQLiteCache creates a cache on a migrated database. A nil clk uses
// the wall clock.
func NewSQLiteCache(db *sql.DB, clk clock.Clock) *SQLiteCache {
	if clk == nil {
		clk = clock.New()
	}
	return &SQLiteCache{db: db, clock: clk}
}

// LoadAssignment returns the cached location id.
func (c *SQLiteCache) LoadAssignment(ctx context.Context) (string, error) {
	var loc string
	err := c.db.QueryRowContext(ctx,
		`SELECT location_id FROM device_identity WHERE slot = 1`,
	).Scan(&loc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading assignment: %w", err)
	}
	return loc, nil
}

// SaveAssignment updates the cached location id. It does nothing before
// the identity row exists.
func (c *SQLiteCache) SaveAssignment(ctx context.Context, locationID string) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE device_identity SET location_id = ?, updated_at = ? WHERE slot = 1`,
		locationID, c.now(),
	)
	if err != nil {
		return fmt.Errorf("saving assignment: %w", err)
	}
	return nil
}

// LoadPlaylist returns the cached playlist for a location.
func (c *SQLiteCache) LoadPlaylist(ctx context.Context, locationID string) (playlist.Playlist, error) {
	var doc string
	err := c.db.QueryRowContext(ctx,
		`SELECT document FROM playlist_cache WHERE location_id = ?`, locationID,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return playlist.Playlist{}, ErrCacheMiss
	}
	if err != nil {
		return playlist.Playlist{}, fmt.Errorf("loading playlist: %w", err)
	}
	return playlist.Decode([]byte(doc))
}

// SavePlaylist upserts a location's playlist.
func (c *SQLiteCache) SavePlaylist(ctx context.Context, locationID string, p playlist.Playlist) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding playlist: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO playlist_cache (location_id, document, received_at)
		VALUES (?, ?, ?)
		ON CONFLICT(location_id) DO UPDATE SET
			document    = excluded.document,
			received_at = excluded.received_at`,
		locationID, string(doc), c.now(),
	)
	if err != nil {
		return fmt.Errorf("saving playlist: %w", err)
	}
	return nil
}

// Prune removes cached playlists of every location except keep.
func (c *SQLiteCache) Prune(ctx context.Context, keep string) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM playlist_cache WHERE location_id <> ?`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning playlist cache: %w", err)
	}
	return res.RowsAffected()
}

func (c *SQLiteCache) now() string {
	return c.clock.Now().UTC().Format(time.RFC3339)
}
