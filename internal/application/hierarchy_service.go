package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/example/reservation-availability/internal/hierarchy"
	"github.com/example/reservation-availability/internal/persistence"
)

// HierarchyService maintains the derived reservation-unit closure table and
// answers related-unit queries from it.
type HierarchyService struct {
	topology persistence.TopologyRepository
	rows     persistence.HierarchyRepository
	logger   *slog.Logger
}

// NewHierarchyService wires dependencies for closure maintenance.
func NewHierarchyService(topology persistence.TopologyRepository, rows persistence.HierarchyRepository, logger *slog.Logger) *HierarchyService {
	return &HierarchyService{
		topology: topology,
		rows:     rows,
		logger:   defaultLogger(logger),
	}
}

// Rebuild recomputes the full closure from the current space tree and unit
// attachments and swaps the persisted table. A cyclic or dangling space
// parent is a data-integrity fault and fails the rebuild without touching
// the previous table.
func (s *HierarchyService) Rebuild(ctx context.Context) error {
	logger := serviceLogger(ctx, s.logger, "hierarchy", "rebuild")

	spaces, err := s.topology.ListSpaces(ctx)
	if err != nil {
		return fmt.Errorf("load spaces: %w", err)
	}
	units, err := s.topology.ListReservationUnits(ctx)
	if err != nil {
		return fmt.Errorf("load reservation units: %w", err)
	}

	nodes := make([]hierarchy.Node, 0, len(spaces))
	for _, space := range spaces {
		nodes = append(nodes, hierarchy.Node{ID: space.ID, ParentID: space.ParentID})
	}
	forest, err := hierarchy.NewForest(nodes)
	if err != nil {
		logger.Error("space tree rejected", "error", err)
		return err
	}

	topologies := make([]hierarchy.UnitTopology, 0, len(units))
	for _, unit := range units {
		topologies = append(topologies, hierarchy.UnitTopology{
			ID:          unit.ID,
			SpaceIDs:    unit.SpaceIDs,
			ResourceIDs: unit.ResourceIDs,
		})
	}

	closure := hierarchy.BuildClosure(forest, topologies)
	rows := make([]persistence.HierarchyRow, 0, len(closure))
	for unitID, relatedIDs := range closure {
		rows = append(rows, persistence.HierarchyRow{UnitID: unitID, RelatedUnitIDs: relatedIDs})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].UnitID < rows[j].UnitID })

	if err := s.rows.ReplaceAll(ctx, rows); err != nil {
		return fmt.Errorf("replace hierarchy table: %w", err)
	}

	logger.Info("hierarchy rebuilt", "spaces", len(spaces), "units", len(rows))
	return nil
}

// RelatedUnits returns the units that can conflict with the given unit,
// always including the unit itself. A unit absent from the table falls back
// to the reflexive singleton so a stale closure degrades to self-conflict
// checks rather than an error.
func (s *HierarchyService) RelatedUnits(ctx context.Context, unitID int64) ([]int64, error) {
	ids, err := s.rows.RelatedUnits(ctx, unitID)
	if errors.Is(err, persistence.ErrNotFound) {
		return []int64{unitID}, nil
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// RelatedUnitsBatch resolves several units in one query, with the same
// reflexive fallback per missing unit.
func (s *HierarchyService) RelatedUnitsBatch(ctx context.Context, unitIDs []int64) (map[int64][]int64, error) {
	out, err := s.rows.RelatedUnitsBatch(ctx, unitIDs)
	if err != nil {
		return nil, err
	}
	for _, unitID := range unitIDs {
		if _, ok := out[unitID]; !ok {
			out[unitID] = []int64{unitID}
		}
	}
	return out, nil
}
