package device

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DeviceIDPrefix starts every generated device id.
const DeviceIDPrefix = "scr_"

const (
	pairingCodeMin   = 100000
	pairingCodeRange = 900000
)

// Identity is what the player persists about itself.
type Identity struct {
	DeviceID string

	// PairingCode is the code generated on this boot. It is stored for
	// diagnostics only; a fresh one is generated every boot.
	PairingCode string

	// LocationID is the last assignment observed. It lets a screen that
	// boots offline resume the right playlist from cache.
	LocationID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IdentityRepository persists the single device identity.
type IdentityRepository interface {
	// Load returns the stored identity or ErrIdentityNotFound.
	Load(ctx context.Context) (Identity, error)

	// Save inserts or replaces the stored identity.
	Save(ctx context.Context, id Identity) error
}

// NewDeviceID returns a new random device id.
func NewDeviceID() string {
	return DeviceIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewPairingCode returns a random six-digit code in 100000..999999.
func NewPairingCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(pairingCodeRange))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPairingCode, err)
	}
	return fmt.Sprintf("%06d", n.Int64()+pairingCodeMin), nil
}

// EnsureIdentity loads the stored identity, or generates and persists a
// new one when none exists.
//
// Returns:
//   - Identity: The loaded or created identity
//   - bool: true when a new id was generated
//   - error: If the repository fails
func EnsureIdentity(ctx context.Context, repo IdentityRepository, now time.Time) (Identity, bool, error) {
	id, err := repo.Load(ctx)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, ErrIdentityNotFound) {
		return Identity{}, false, fmt.Errorf("loading identity: %w", err)
	}

	id = Identity{
		DeviceID:  NewDeviceID(),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if err := repo.Save(ctx, id); err != nil {
		return Identity{}, false, fmt.Errorf("saving new identity: %w", err)
	}
	return id, true, nil
}

// SQLiteIdentityRepository stores the identity in the device_identity table.
type SQLiteIdentityRepository struct {
	db *sql.DB
}

// NewSQLiteIdentityRepository creates a repository on an open database
// whose migrations have been applied.
func NewSQLiteIdentityRepository(db *sql.DB) *SQLiteIdentityRepository {
	return &SQLiteIdentityRepository{db: db}
}

// Load returns the stored identity or ErrIdentityNotFound.
func (r *SQLiteIdentityRepository) Load(ctx context.Context) (Identity, error) {
	var (
		id                   Identity
		createdAt, updatedAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT device_id, pairing_code, location_id, created_at, updated_at
		FROM device_identity
		WHERE slot = 1`,
	).Scan(&id.DeviceID, &id.PairingCode, &id.LocationID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{}, ErrIdentityNotFound
	}
	if err != nil {
		return Identity{}, fmt.Errorf("querying identity: %w", err)
	}

	id.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Written by Save
	id.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Written by Save
	return id, nil
}

// Save inserts or replaces the stored identity.
func (r *SQLiteIdentityRepository) Save(ctx context.Context, id Identity) error {
	if id.DeviceID == "" {
		return ErrInvalidIdentity
	}
	if id.CreatedAt.IsZero() {
		id.CreatedAt = time.Now().UTC()
	}
	if id.UpdatedAt.IsZero() {
		id.UpdatedAt = id.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_identity (slot, device_id, pairing_code, location_id, created_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			device_id    = excluded.device_id,
			pairing_code = excluded.pairing_code,
			location_id  = excluded.location_id,
			updated_at   = excluded.updated_at`,
		id.DeviceID, id.PairingCode, id.LocationID,
		id.CreatedAt.UTC().Format(time.RFC3339), id.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving identity: %w", err)
	}
	return nil
}
