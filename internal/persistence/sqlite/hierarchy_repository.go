package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/reservation-availability/internal/persistence"
)

// HierarchyRepository implements persistence.HierarchyRepository on the
// derived reservation_unit_hierarchy table.
type HierarchyRepository struct {
	db *DB
}

// NewHierarchyRepository creates the repository.
func NewHierarchyRepository(db *DB) *HierarchyRepository {
	return &HierarchyRepository{db: db}
}

// ReplaceAll swaps the entire closure table inside one transaction. Readers
// either see the previous closure or the new one, never a mix.
func (r *HierarchyRepository) ReplaceAll(ctx context.Context, rows []persistence.HierarchyRow) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM reservation_unit_hierarchy`); err != nil {
			return fmt.Errorf("clear hierarchy: %w", err)
		}
		stmt, err := tx.Prepare(`INSERT INTO reservation_unit_hierarchy (unit_id, related_unit_id) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare hierarchy insert: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			for _, relatedID := range row.RelatedUnitIDs {
				if _, err := stmt.Exec(row.UnitID, relatedID); err != nil {
					return fmt.Errorf("insert hierarchy row %d->%d: %w", row.UnitID, relatedID, err)
				}
			}
		}
		return nil
	})
}

// RelatedUnits returns the related unit ids for one unit, sorted. A unit with
// no row yet yields persistence.ErrNotFound so callers can fall back to the
// reflexive singleton.
func (r *HierarchyRepository) RelatedUnits(ctx context.Context, unitID int64) ([]int64, error) {
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT related_unit_id FROM reservation_unit_hierarchy WHERE unit_id = ? ORDER BY related_unit_id`, unitID)
	if err != nil {
		return nil, fmt.Errorf("related units for %d: %w", unitID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan related unit: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, persistence.ErrNotFound
	}
	return ids, nil
}

// RelatedUnitsBatch returns related ids for several units in one query.
// Units without rows are absent from the result map.
func (r *HierarchyRepository) RelatedUnitsBatch(ctx context.Context, unitIDs []int64) (map[int64][]int64, error) {
	if len(unitIDs) == 0 {
		return map[int64][]int64{}, nil
	}
	query := fmt.Sprintf(
		`SELECT unit_id, related_unit_id FROM reservation_unit_hierarchy
		 WHERE unit_id IN (%s) ORDER BY unit_id, related_unit_id`, placeholders(len(unitIDs)))
	rows, err := r.db.db.QueryContext(ctx, query, int64Args(unitIDs)...)
	if err != nil {
		return nil, fmt.Errorf("related units batch: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]int64, len(unitIDs))
	for rows.Next() {
		var unitID, relatedID int64
		if err := rows.Scan(&unitID, &relatedID); err != nil {
			return nil, fmt.Errorf("scan related unit: %w", err)
		}
		out[unitID] = append(out[unitID], relatedID)
	}
	return out, rows.Err()
}
