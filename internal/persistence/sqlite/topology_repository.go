package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/reservation-availability/internal/persistence"
)

// TopologyRepository implements persistence.TopologyRepository.
type TopologyRepository struct {
	db *DB
}

// NewTopologyRepository creates the repository.
func NewTopologyRepository(db *DB) *TopologyRepository {
	return &TopologyRepository{db: db}
}

// UpsertSpace inserts or replaces a space.
func (r *TopologyRepository) UpsertSpace(ctx context.Context, space persistence.Space) error {
	_, err := r.db.db.ExecContext(ctx,
		`INSERT INTO spaces (id, name, parent_id) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, parent_id = excluded.parent_id`,
		space.ID, space.Name, nullInt64(space.ParentID))
	if err != nil {
		return fmt.Errorf("upsert space %d: %w", space.ID, err)
	}
	return nil
}

// ListSpaces returns every space ordered by id.
func (r *TopologyRepository) ListSpaces(ctx context.Context) ([]persistence.Space, error) {
	rows, err := r.db.db.QueryContext(ctx, `SELECT id, name, parent_id FROM spaces ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}
	defer rows.Close()

	var spaces []persistence.Space
	for rows.Next() {
		var space persistence.Space
		var parent sql.NullInt64
		if err := rows.Scan(&space.ID, &space.Name, &parent); err != nil {
			return nil, fmt.Errorf("scan space: %w", err)
		}
		if parent.Valid {
			id := parent.Int64
			space.ParentID = &id
		}
		spaces = append(spaces, space)
	}
	return spaces, rows.Err()
}

// UpsertResource inserts or replaces a resource.
func (r *TopologyRepository) UpsertResource(ctx context.Context, resource persistence.Resource) error {
	_, err := r.db.db.ExecContext(ctx,
		`INSERT INTO resources (id, name) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		resource.ID, resource.Name)
	if err != nil {
		return fmt.Errorf("upsert resource %d: %w", resource.ID, err)
	}
	return nil
}

// ListResources returns every resource ordered by id.
func (r *TopologyRepository) ListResources(ctx context.Context) ([]persistence.Resource, error) {
	rows, err := r.db.db.QueryContext(ctx, `SELECT id, name FROM resources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var resources []persistence.Resource
	for rows.Next() {
		var resource persistence.Resource
		if err := rows.Scan(&resource.ID, &resource.Name); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		resources = append(resources, resource)
	}
	return resources, rows.Err()
}

// UpsertReservationUnit inserts or replaces a reservation unit together with
// its space and resource attachments.
func (r *TopologyRepository) UpsertReservationUnit(ctx context.Context, unit persistence.ReservationUnit) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO reservation_units (
				id, name, buffer_before_seconds, buffer_after_seconds,
				start_interval_seconds, block_whole_day,
				min_duration_seconds, max_duration_seconds,
				min_days_before, max_days_before,
				reservation_begins_at, reservation_ends_at,
				allow_without_opening_hours, hauki_resource_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				buffer_before_seconds = excluded.buffer_before_seconds,
				buffer_after_seconds = excluded.buffer_after_seconds,
				start_interval_seconds = excluded.start_interval_seconds,
				block_whole_day = excluded.block_whole_day,
				min_duration_seconds = excluded.min_duration_seconds,
				max_duration_seconds = excluded.max_duration_seconds,
				min_days_before = excluded.min_days_before,
				max_days_before = excluded.max_days_before,
				reservation_begins_at = excluded.reservation_begins_at,
				reservation_ends_at = excluded.reservation_ends_at,
				allow_without_opening_hours = excluded.allow_without_opening_hours,
				hauki_resource_id = excluded.hauki_resource_id`,
			unit.ID, unit.Name,
			int64(unit.BufferTimeBefore.Seconds()), int64(unit.BufferTimeAfter.Seconds()),
			int64(unit.ReservationStartInterval.Seconds()), boolToInt(unit.ReservationBlockWholeDay),
			int64(unit.MinReservationDuration.Seconds()), int64(unit.MaxReservationDuration.Seconds()),
			nullInt(unit.ReservationsMinDaysBefore), nullInt(unit.ReservationsMaxDaysBefore),
			nullTime(unit.ReservationBeginsAt), nullTime(unit.ReservationEndsAt),
			boolToInt(unit.AllowReservationsWithoutOpeningHours), nullInt64(unit.OriginHaukiResourceID),
		)
		if err != nil {
			return fmt.Errorf("upsert reservation unit %d: %w", unit.ID, err)
		}

		if _, err := tx.Exec(`DELETE FROM reservation_unit_spaces WHERE unit_id = ?`, unit.ID); err != nil {
			return fmt.Errorf("clear unit spaces: %w", err)
		}
		for _, spaceID := range unit.SpaceIDs {
			if _, err := tx.Exec(`INSERT INTO reservation_unit_spaces (unit_id, space_id) VALUES (?, ?)`, unit.ID, spaceID); err != nil {
				return fmt.Errorf("attach space %d: %w", spaceID, err)
			}
		}

		if _, err := tx.Exec(`DELETE FROM reservation_unit_resources WHERE unit_id = ?`, unit.ID); err != nil {
			return fmt.Errorf("clear unit resources: %w", err)
		}
		for _, resourceID := range unit.ResourceIDs {
			if _, err := tx.Exec(`INSERT INTO reservation_unit_resources (unit_id, resource_id) VALUES (?, ?)`, unit.ID, resourceID); err != nil {
				return fmt.Errorf("attach resource %d: %w", resourceID, err)
			}
		}
		return nil
	})
}

// GetReservationUnit loads one unit with its attachments.
func (r *TopologyRepository) GetReservationUnit(ctx context.Context, id int64) (persistence.ReservationUnit, error) {
	units, err := r.GetReservationUnits(ctx, []int64{id})
	if err != nil {
		return persistence.ReservationUnit{}, err
	}
	if len(units) == 0 {
		return persistence.ReservationUnit{}, persistence.ErrNotFound
	}
	return units[0], nil
}

// GetReservationUnits loads the given units with attachments, ordered by id.
// Unknown ids are silently absent from the result.
func (r *TopologyRepository) GetReservationUnits(ctx context.Context, ids []int64) ([]persistence.ReservationUnit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT id, name, buffer_before_seconds, buffer_after_seconds,
			start_interval_seconds, block_whole_day, min_duration_seconds, max_duration_seconds,
			min_days_before, max_days_before, reservation_begins_at, reservation_ends_at,
			allow_without_opening_hours, hauki_resource_id
		FROM reservation_units WHERE id IN (%s) ORDER BY id`, placeholders(len(ids)))
	return r.queryUnits(ctx, query, int64Args(ids)...)
}

// ListReservationUnits returns every unit with attachments, ordered by id.
func (r *TopologyRepository) ListReservationUnits(ctx context.Context) ([]persistence.ReservationUnit, error) {
	return r.queryUnits(ctx, `SELECT id, name, buffer_before_seconds, buffer_after_seconds,
			start_interval_seconds, block_whole_day, min_duration_seconds, max_duration_seconds,
			min_days_before, max_days_before, reservation_begins_at, reservation_ends_at,
			allow_without_opening_hours, hauki_resource_id
		FROM reservation_units ORDER BY id`)
}

func (r *TopologyRepository) queryUnits(ctx context.Context, query string, args ...any) ([]persistence.ReservationUnit, error) {
	rows, err := r.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservation units: %w", err)
	}
	defer rows.Close()

	var units []persistence.ReservationUnit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range units {
		spaceIDs, err := r.loadLinks(ctx, `SELECT space_id FROM reservation_unit_spaces WHERE unit_id = ? ORDER BY space_id`, units[i].ID)
		if err != nil {
			return nil, err
		}
		resourceIDs, err := r.loadLinks(ctx, `SELECT resource_id FROM reservation_unit_resources WHERE unit_id = ? ORDER BY resource_id`, units[i].ID)
		if err != nil {
			return nil, err
		}
		units[i].SpaceIDs = spaceIDs
		units[i].ResourceIDs = resourceIDs
	}
	return units, nil
}

func (r *TopologyRepository) loadLinks(ctx context.Context, query string, unitID int64) ([]int64, error) {
	rows, err := r.db.db.QueryContext(ctx, query, unitID)
	if err != nil {
		return nil, fmt.Errorf("load unit links: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan unit link: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanUnit(rows *sql.Rows) (persistence.ReservationUnit, error) {
	var unit persistence.ReservationUnit
	var bufferBefore, bufferAfter, startInterval, minDuration, maxDuration int64
	var blockWholeDay, allowWithout int
	var minDays, maxDays, haukiResource sql.NullInt64
	var beginsAt, endsAt sql.NullString

	if err := rows.Scan(
		&unit.ID, &unit.Name, &bufferBefore, &bufferAfter,
		&startInterval, &blockWholeDay, &minDuration, &maxDuration,
		&minDays, &maxDays, &beginsAt, &endsAt,
		&allowWithout, &haukiResource,
	); err != nil {
		return persistence.ReservationUnit{}, fmt.Errorf("scan reservation unit: %w", err)
	}

	unit.BufferTimeBefore = secondsToDuration(bufferBefore)
	unit.BufferTimeAfter = secondsToDuration(bufferAfter)
	unit.ReservationStartInterval = secondsToDuration(startInterval)
	unit.ReservationBlockWholeDay = blockWholeDay != 0
	unit.MinReservationDuration = secondsToDuration(minDuration)
	unit.MaxReservationDuration = secondsToDuration(maxDuration)
	unit.AllowReservationsWithoutOpeningHours = allowWithout != 0

	if minDays.Valid {
		v := int(minDays.Int64)
		unit.ReservationsMinDaysBefore = &v
	}
	if maxDays.Valid {
		v := int(maxDays.Int64)
		unit.ReservationsMaxDaysBefore = &v
	}
	if haukiResource.Valid {
		v := haukiResource.Int64
		unit.OriginHaukiResourceID = &v
	}
	if beginsAt.Valid {
		t, err := parseTime(beginsAt.String)
		if err != nil {
			return persistence.ReservationUnit{}, err
		}
		unit.ReservationBeginsAt = &t
	}
	if endsAt.Valid {
		t, err := parseTime(endsAt.String)
		if err != nil {
			return persistence.ReservationUnit{}, err
		}
		unit.ReservationEndsAt = &t
	}
	return unit, nil
}
