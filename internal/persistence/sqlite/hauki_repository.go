package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/reservation-availability/internal/interval"
	"github.com/example/reservation-availability/internal/persistence"
)

// HaukiRepository implements persistence.HaukiRepository: provider linkage
// rows plus the cached reservable time spans.
type HaukiRepository struct {
	db *DB
}

// NewHaukiRepository creates the repository.
func NewHaukiRepository(db *DB) *HaukiRepository {
	return &HaukiRepository{db: db}
}

// UpsertOriginResource inserts or replaces a provider linkage row.
func (r *HaukiRepository) UpsertOriginResource(ctx context.Context, resource persistence.OriginHaukiResource) error {
	_, err := r.db.db.ExecContext(ctx,
		`INSERT INTO origin_hauki_resources (id, opening_hours_hash, latest_fetched_date) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			opening_hours_hash = excluded.opening_hours_hash,
			latest_fetched_date = excluded.latest_fetched_date`,
		resource.ID, resource.OpeningHoursHash, nullTime(resource.LatestFetchedDate))
	if err != nil {
		return fmt.Errorf("upsert origin resource %d: %w", resource.ID, err)
	}
	return nil
}

// GetOriginResource loads one provider linkage row.
func (r *HaukiRepository) GetOriginResource(ctx context.Context, id int64) (persistence.OriginHaukiResource, error) {
	row := r.db.db.QueryRowContext(ctx,
		`SELECT id, opening_hours_hash, latest_fetched_date FROM origin_hauki_resources WHERE id = ?`, id)
	return scanOriginResource(row.Scan)
}

// ListOriginResources returns every provider linkage row ordered by id.
func (r *HaukiRepository) ListOriginResources(ctx context.Context) ([]persistence.OriginHaukiResource, error) {
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT id, opening_hours_hash, latest_fetched_date FROM origin_hauki_resources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list origin resources: %w", err)
	}
	defer rows.Close()

	var resources []persistence.OriginHaukiResource
	for rows.Next() {
		resource, err := scanOriginResource(rows.Scan)
		if err != nil {
			return nil, err
		}
		resources = append(resources, resource)
	}
	return resources, rows.Err()
}

// ReplaceUpcomingSpans applies the hash-change sequence atomically: delete
// spans starting at or after today, truncate a span straddling today so it
// ends at today, insert the fresh spans, and update the resource row. Spans
// fully in the past are never touched.
func (r *HaukiRepository) ReplaceUpcomingSpans(ctx context.Context, resourceID int64, today time.Time, hash string, fetchedDate time.Time, spans []persistence.ReservableTimeSpan) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		todayStr := formatTime(today)

		if _, err := tx.Exec(
			`DELETE FROM reservable_time_spans WHERE resource_id = ? AND start_datetime >= ?`,
			resourceID, todayStr); err != nil {
			return fmt.Errorf("delete upcoming spans: %w", err)
		}
		if _, err := tx.Exec(
			`UPDATE reservable_time_spans SET end_datetime = ?
			 WHERE resource_id = ? AND start_datetime < ? AND end_datetime > ?`,
			todayStr, resourceID, todayStr, todayStr); err != nil {
			return fmt.Errorf("truncate straddling span: %w", err)
		}

		stmt, err := tx.Prepare(
			`INSERT INTO reservable_time_spans (resource_id, start_datetime, end_datetime) VALUES (?, ?, ?)
			 ON CONFLICT(resource_id, start_datetime) DO UPDATE SET end_datetime = excluded.end_datetime`)
		if err != nil {
			return fmt.Errorf("prepare span insert: %w", err)
		}
		defer stmt.Close()

		for _, span := range spans {
			if _, err := stmt.Exec(resourceID, formatTime(span.Start), formatTime(span.End)); err != nil {
				return fmt.Errorf("insert reservable span: %w", err)
			}
		}

		fetched := formatTime(fetchedDate)
		if _, err := tx.Exec(
			`INSERT INTO origin_hauki_resources (id, opening_hours_hash, latest_fetched_date) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
				opening_hours_hash = excluded.opening_hours_hash,
				latest_fetched_date = excluded.latest_fetched_date`,
			resourceID, hash, fetched); err != nil {
			return fmt.Errorf("update origin resource: %w", err)
		}
		return nil
	})
}

// ListSpansOverlapping returns the cached spans overlapping the window,
// including partial overlaps, ordered by start.
func (r *HaukiRepository) ListSpansOverlapping(ctx context.Context, resourceID int64, window interval.TimeSpan) ([]persistence.ReservableTimeSpan, error) {
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT resource_id, start_datetime, end_datetime FROM reservable_time_spans
		 WHERE resource_id = ? AND start_datetime < ? AND end_datetime > ?
		 ORDER BY start_datetime`,
		resourceID, formatTime(window.End), formatTime(window.Start))
	if err != nil {
		return nil, fmt.Errorf("list reservable spans: %w", err)
	}
	defer rows.Close()

	var spans []persistence.ReservableTimeSpan
	for rows.Next() {
		var span persistence.ReservableTimeSpan
		var start, end string
		if err := rows.Scan(&span.ResourceID, &start, &end); err != nil {
			return nil, fmt.Errorf("scan reservable span: %w", err)
		}
		if span.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if span.End, err = parseTime(end); err != nil {
			return nil, err
		}
		spans = append(spans, span)
	}
	return spans, rows.Err()
}

func scanOriginResource(scan func(dest ...any) error) (persistence.OriginHaukiResource, error) {
	var resource persistence.OriginHaukiResource
	var fetched sql.NullString
	if err := scan(&resource.ID, &resource.OpeningHoursHash, &fetched); err != nil {
		if err == sql.ErrNoRows {
			return persistence.OriginHaukiResource{}, persistence.ErrNotFound
		}
		return persistence.OriginHaukiResource{}, fmt.Errorf("scan origin resource: %w", err)
	}
	if fetched.Valid {
		t, err := parseTime(fetched.String)
		if err != nil {
			return persistence.OriginHaukiResource{}, err
		}
		resource.LatestFetchedDate = &t
	}
	return resource, nil
}
