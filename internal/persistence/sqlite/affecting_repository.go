package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/reservation-availability/internal/interval"
	"github.com/example/reservation-availability/internal/persistence"
)

// AffectingTimeSpanRepository implements
// persistence.AffectingTimeSpanRepository on the derived tables.
type AffectingTimeSpanRepository struct {
	db *DB
}

// NewAffectingTimeSpanRepository creates the repository.
func NewAffectingTimeSpanRepository(db *DB) *AffectingTimeSpanRepository {
	return &AffectingTimeSpanRepository{db: db}
}

// ReplaceAll swaps the entire blocking-interval table inside one transaction.
func (r *AffectingTimeSpanRepository) ReplaceAll(ctx context.Context, spans []persistence.AffectingTimeSpan) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM affecting_time_spans`); err != nil {
			return fmt.Errorf("clear affecting time spans: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM affecting_time_span_units`); err != nil {
			return fmt.Errorf("clear affecting span units: %w", err)
		}

		spanStmt, err := tx.Prepare(
			`INSERT INTO affecting_time_spans (reservation_id, buffered_start, buffered_end, is_blocking) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare span insert: %w", err)
		}
		defer spanStmt.Close()

		unitStmt, err := tx.Prepare(
			`INSERT INTO affecting_time_span_units (reservation_id, unit_id) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare span unit insert: %w", err)
		}
		defer unitStmt.Close()

		for _, span := range spans {
			if _, err := spanStmt.Exec(span.ReservationID, formatTime(span.BufferedStart), formatTime(span.BufferedEnd), boolToInt(span.IsBlocking)); err != nil {
				return fmt.Errorf("insert affecting span %d: %w", span.ReservationID, err)
			}
			for _, unitID := range span.AffectedUnitIDs {
				if _, err := unitStmt.Exec(span.ReservationID, unitID); err != nil {
					return fmt.Errorf("insert affected unit %d: %w", unitID, err)
				}
			}
		}
		return nil
	})
}

// ListOverlapping returns spans whose buffered interval overlaps the window
// and whose affected set intersects the given unit ids. RFC3339 UTC strings
// compare lexicographically, so the overlap test runs in SQL.
func (r *AffectingTimeSpanRepository) ListOverlapping(ctx context.Context, unitIDs []int64, window interval.TimeSpan) ([]persistence.AffectingTimeSpan, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		`SELECT DISTINCT s.reservation_id, s.buffered_start, s.buffered_end, s.is_blocking
		 FROM affecting_time_spans s
		 JOIN affecting_time_span_units u ON u.reservation_id = s.reservation_id
		 WHERE u.unit_id IN (%s) AND s.buffered_start < ? AND s.buffered_end > ?
		 ORDER BY s.buffered_start, s.reservation_id`, placeholders(len(unitIDs)))

	args := int64Args(unitIDs)
	args = append(args, formatTime(window.End), formatTime(window.Start))

	return r.querySpans(ctx, query, args...)
}

// ListAll returns the whole table ordered by reservation id.
func (r *AffectingTimeSpanRepository) ListAll(ctx context.Context) ([]persistence.AffectingTimeSpan, error) {
	return r.querySpans(ctx,
		`SELECT reservation_id, buffered_start, buffered_end, is_blocking
		 FROM affecting_time_spans ORDER BY reservation_id`)
}

func (r *AffectingTimeSpanRepository) querySpans(ctx context.Context, query string, args ...any) ([]persistence.AffectingTimeSpan, error) {
	rows, err := r.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list affecting spans: %w", err)
	}
	defer rows.Close()

	var spans []persistence.AffectingTimeSpan
	for rows.Next() {
		var span persistence.AffectingTimeSpan
		var start, end string
		var blocking int
		if err := rows.Scan(&span.ReservationID, &start, &end, &blocking); err != nil {
			return nil, fmt.Errorf("scan affecting span: %w", err)
		}
		if span.BufferedStart, err = parseTime(start); err != nil {
			return nil, err
		}
		if span.BufferedEnd, err = parseTime(end); err != nil {
			return nil, err
		}
		span.IsBlocking = blocking != 0
		spans = append(spans, span)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range spans {
		unitIDs, err := r.loadAffectedUnits(ctx, spans[i].ReservationID)
		if err != nil {
			return nil, err
		}
		spans[i].AffectedUnitIDs = unitIDs
	}
	return spans, nil
}

func (r *AffectingTimeSpanRepository) loadAffectedUnits(ctx context.Context, reservationID int64) ([]int64, error) {
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT unit_id FROM affecting_time_span_units WHERE reservation_id = ? ORDER BY unit_id`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("load affected units: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan affected unit: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
