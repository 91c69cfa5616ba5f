package sqlite

import (
	"context"
	"fmt"
)

// The schema is created in one shot. The derived tables carry no history of
// their own: they are rebuilt from source rows, so there is nothing to
// migrate between versions beyond recreating them.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS spaces (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		parent_id INTEGER REFERENCES spaces(id)
	)`,
	`CREATE TABLE IF NOT EXISTS resources (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reservation_units (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		buffer_before_seconds INTEGER NOT NULL DEFAULT 0,
		buffer_after_seconds INTEGER NOT NULL DEFAULT 0,
		start_interval_seconds INTEGER NOT NULL DEFAULT 900,
		block_whole_day INTEGER NOT NULL DEFAULT 0,
		min_duration_seconds INTEGER NOT NULL DEFAULT 0,
		max_duration_seconds INTEGER NOT NULL DEFAULT 0,
		min_days_before INTEGER,
		max_days_before INTEGER,
		reservation_begins_at TEXT,
		reservation_ends_at TEXT,
		allow_without_opening_hours INTEGER NOT NULL DEFAULT 0,
		hauki_resource_id INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS reservation_unit_spaces (
		unit_id INTEGER NOT NULL REFERENCES reservation_units(id) ON DELETE CASCADE,
		space_id INTEGER NOT NULL,
		PRIMARY KEY (unit_id, space_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reservation_unit_resources (
		unit_id INTEGER NOT NULL REFERENCES reservation_units(id) ON DELETE CASCADE,
		resource_id INTEGER NOT NULL,
		PRIMARY KEY (unit_id, resource_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id INTEGER PRIMARY KEY,
		begins_at TEXT NOT NULL,
		ends_at TEXT NOT NULL,
		buffer_before_seconds INTEGER,
		buffer_after_seconds INTEGER,
		state TEXT NOT NULL,
		type TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reservation_attached_units (
		reservation_id INTEGER NOT NULL REFERENCES reservations(id) ON DELETE CASCADE,
		unit_id INTEGER NOT NULL,
		PRIMARY KEY (reservation_id, unit_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reservation_unit_hierarchy (
		unit_id INTEGER NOT NULL,
		related_unit_id INTEGER NOT NULL,
		PRIMARY KEY (unit_id, related_unit_id)
	)`,
	`CREATE TABLE IF NOT EXISTS affecting_time_spans (
		reservation_id INTEGER PRIMARY KEY,
		buffered_start TEXT NOT NULL,
		buffered_end TEXT NOT NULL,
		is_blocking INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS affecting_time_span_units (
		reservation_id INTEGER NOT NULL REFERENCES affecting_time_spans(reservation_id) ON DELETE CASCADE,
		unit_id INTEGER NOT NULL,
		PRIMARY KEY (reservation_id, unit_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_affecting_units_unit ON affecting_time_span_units(unit_id)`,
	`CREATE TABLE IF NOT EXISTS origin_hauki_resources (
		id INTEGER PRIMARY KEY,
		opening_hours_hash TEXT NOT NULL DEFAULT '',
		latest_fetched_date TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS reservable_time_spans (
		resource_id INTEGER NOT NULL REFERENCES origin_hauki_resources(id) ON DELETE CASCADE,
		start_datetime TEXT NOT NULL,
		end_datetime TEXT NOT NULL,
		PRIMARY KEY (resource_id, start_datetime)
	)`,
}

// Migrate creates the schema when missing.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
