package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// maxLogicalAddress is the highest valid bus logical address.
const maxLogicalAddress = 15

// Repository defines the interface for registry persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Upsert records a sighting of a bus device. An existing record for
	// the same logical address is overwritten; FirstSeen is preserved.
	Upsert(ctx context.Context, rec Record) error

	// GetByLogical retrieves the record for a logical address.
	// Returns ErrNotFound if no sighting has been recorded.
	GetByLogical(ctx context.Context, logical int) (*Record, error)

	// List retrieves all records ordered by logical address.
	List(ctx context.Context) ([]Record, error)

	// Prune removes records not seen since the cutoff time.
	// Returns the number of records removed.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository and ensures
// the registry table exists. The db parameter should be an open SQLite
// connection.
func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	r := &SQLiteRepository{db: db}
	if err := r.ensureSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

// ensureSchema creates the registry table if it does not exist.
func (r *SQLiteRepository) ensureSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS bus_devices (
			logical     INTEGER PRIMARY KEY CHECK (logical BETWEEN 0 AND 15),
			physical    TEXT NOT NULL,
			osd_name    TEXT NOT NULL DEFAULT '',
			vendor      INTEGER NOT NULL DEFAULT 0,
			power       TEXT NOT NULL DEFAULT '',
			first_seen  TIMESTAMP NOT NULL,
			last_seen   TIMESTAMP NOT NULL
		)`

	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("creating bus_devices table: %w", err)
	}
	return nil
}

// Upsert records a sighting of a bus device.
func (r *SQLiteRepository) Upsert(ctx context.Context, rec Record) error {
	if rec.Logical < 0 || rec.Logical > maxLogicalAddress {
		return fmt.Errorf("%w: %d", ErrInvalidAddress, rec.Logical)
	}

	now := time.Now().UTC()
	firstSeen := rec.FirstSeen
	if firstSeen.IsZero() {
		firstSeen = now
	}
	lastSeen := rec.LastSeen
	if lastSeen.IsZero() {
		lastSeen = now
	}

	query := `
		INSERT INTO bus_devices (logical, physical, osd_name, vendor, power, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(logical) DO UPDATE SET
			physical  = excluded.physical,
			osd_name  = excluded.osd_name,
			vendor    = excluded.vendor,
			power     = excluded.power,
			last_seen = excluded.last_seen`

	if _, err := r.db.ExecContext(ctx, query,
		rec.Logical, rec.Physical, rec.OSDName, rec.Vendor, rec.Power,
		firstSeen, lastSeen,
	); err != nil {
		return fmt.Errorf("upserting device record: %w", err)
	}
	return nil
}

// GetByLogical retrieves the record for a logical address.
func (r *SQLiteRepository) GetByLogical(ctx context.Context, logical int) (*Record, error) {
	query := `
		SELECT logical, physical, osd_name, vendor, power, first_seen, last_seen
		FROM bus_devices
		WHERE logical = ?`

	row := r.db.QueryRowContext(ctx, query, logical)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying device record: %w", err)
	}
	return rec, nil
}

// List retrieves all records ordered by logical address.
func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	query := `
		SELECT logical, physical, osd_name, vendor, power, first_seen, last_seen
		FROM bus_devices
		ORDER BY logical`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing device records: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.Logical, &rec.Physical, &rec.OSDName, &rec.Vendor, &rec.Power,
			&rec.FirstSeen, &rec.LastSeen,
		); err != nil {
			return nil, fmt.Errorf("scanning device record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device records: %w", err)
	}
	return records, nil
}

// Prune removes records not seen since the cutoff time.
func (r *SQLiteRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM bus_devices WHERE last_seen < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning device records: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned records: %w", err)
	}
	return removed, nil
}

// rowScanner abstracts sql.Row and sql.Rows for scanRecord.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans one row into a Record.
func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	if err := row.Scan(
		&rec.Logical, &rec.Physical, &rec.OSDName, &rec.Vendor, &rec.Power,
		&rec.FirstSeen, &rec.LastSeen,
	); err != nil {
		return nil, err
	}
	return &rec, nil
}
