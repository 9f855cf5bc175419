package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/engagic/engagic/internal/storage"
	"github.com/engagic/engagic/internal/types"
)

// upsertCity inserts or refreshes a city row. Structural fields (name,
// state, vendor, slug, county) always overwrite; status and created_at are
// preserved on conflict so administrative state survives roster re-imports.
func upsertCity(ctx context.Context, q dbtx, city *types.City) error {
	if city.Banana == "" {
		city.Banana = types.Banana(city.Name, city.State)
	}
	if !city.Vendor.Valid() {
		return fmt.Errorf("city %s: unknown vendor %q", city.Banana, city.Vendor)
	}

	now := time.Now().UTC()
	_, err := q.ExecContext(ctx, `
		INSERT INTO cities (banana, name, state, vendor, slug, county, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, COALESCE(NULLIF(?, ''), 'active'), ?, ?)
		ON CONFLICT(banana) DO UPDATE SET
			name = excluded.name,
			state = excluded.state,
			vendor = excluded.vendor,
			slug = excluded.slug,
			county = excluded.county,
			status = CASE WHEN ? != '' THEN ? ELSE cities.status END,
			updated_at = excluded.updated_at
	`,
		city.Banana, city.Name, city.State, string(city.Vendor), city.Slug,
		nullString(city.County), city.Status, now, now,
		city.Status, city.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert city %s: %w", city.Banana, err)
	}
	return nil
}

// UpsertCity stores a city row outside any larger transaction.
func (s *SQLiteStorage) UpsertCity(ctx context.Context, city *types.City) error {
	return upsertCity(ctx, s.db, city)
}

func (t *sqliteTx) UpsertCity(ctx context.Context, city *types.City) error {
	return upsertCity(ctx, t.tx, city)
}

// GetCity returns a city with its zipcodes, or storage.ErrNotFound.
func (s *SQLiteStorage) GetCity(ctx context.Context, banana string) (*types.City, error) {
	city, err := scanCity(s.db.QueryRowContext(ctx, `
		SELECT banana, name, state, vendor, slug, county, status, created_at, updated_at
		FROM cities WHERE banana = ?
	`, banana))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("city %s: %w", banana, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get city %s: %w", banana, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT banana, zipcode, is_primary FROM zipcodes WHERE banana = ? ORDER BY is_primary DESC, zipcode
	`, banana)
	if err != nil {
		return nil, fmt.Errorf("failed to list zipcodes for %s: %w", banana, err)
	}
	defer rows.Close()

	for rows.Next() {
		var z types.Zipcode
		var primary int
		if err := rows.Scan(&z.Banana, &z.Zipcode, &primary); err != nil {
			return nil, fmt.Errorf("failed to scan zipcode: %w", err)
		}
		z.Primary = primary != 0
		city.Zipcodes = append(city.Zipcodes, z)
	}
	return city, rows.Err()
}

// ListCities returns every city, ordered by banana.
func (s *SQLiteStorage) ListCities(ctx context.Context) ([]*types.City, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT banana, name, state, vendor, slug, county, status, created_at, updated_at
		FROM cities ORDER BY banana
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cities: %w", err)
	}
	defer rows.Close()

	var cities []*types.City
	for rows.Next() {
		city, err := scanCity(rows)
		if err != nil {
			return nil, err
		}
		cities = append(cities, city)
	}
	return cities, rows.Err()
}

// AddZipcode attaches a postal code to a city.
func (s *SQLiteStorage) AddZipcode(ctx context.Context, banana, zipcode string, primary bool) error {
	p := 0
	if primary {
		p = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO zipcodes (banana, zipcode, is_primary) VALUES (?, ?, ?)
		ON CONFLICT(banana, zipcode) DO UPDATE SET is_primary = excluded.is_primary
	`, banana, zipcode, p)
	if err != nil {
		return fmt.Errorf("failed to add zipcode %s to %s: %w", zipcode, banana, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCity(row rowScanner) (*types.City, error) {
	var c types.City
	var vendor string
	var county, status sql.NullString
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&c.Banana, &c.Name, &c.State, &vendor, &c.Slug, &county, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.Vendor = types.Vendor(vendor)
	c.County = county.String
	c.Status = status.String
	c.CreatedAt = createdAt.Time
	c.UpdatedAt = updatedAt.Time
	return &c, nil
}
