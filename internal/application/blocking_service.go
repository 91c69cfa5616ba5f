package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/reservation-availability/internal/interval"
	"github.com/example/reservation-availability/internal/persistence"
)

// maxBufferSlack bounds how far a stored buffer can extend a reservation:
// whole-day stretching never reaches past the surrounding midnights, so one
// day of slack on the load horizon is always enough.
const maxBufferSlack = 24 * time.Hour

// BlockingService maintains the derived blocking-interval table and answers
// which intervals block a unit inside a window.
type BlockingService struct {
	reservations persistence.ReservationRepository
	topology     persistence.TopologyRepository
	hierarchy    *HierarchyService
	spans        persistence.AffectingTimeSpanRepository
	now          func() time.Time
	logger       *slog.Logger
}

// NewBlockingService wires dependencies for blocking-interval maintenance.
func NewBlockingService(reservations persistence.ReservationRepository, topology persistence.TopologyRepository, hierarchy *HierarchyService, spans persistence.AffectingTimeSpanRepository, now func() time.Time, logger *slog.Logger) *BlockingService {
	if now == nil {
		now = time.Now
	}
	return &BlockingService{
		reservations: reservations,
		topology:     topology,
		hierarchy:    hierarchy,
		spans:        spans,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

// RebuildAffectingSpans recomputes the whole table from the currently active
// reservations whose buffered interval has not fully elapsed. The recompute
// is total rather than incremental so concurrent edits cannot leave orphaned
// rows; running it twice without intervening changes yields an identical
// table.
func (s *BlockingService) RebuildAffectingSpans(ctx context.Context) error {
	logger := serviceLogger(ctx, s.logger, "blocking", "rebuild")
	now := s.now()

	reservations, err := s.reservations.ListActiveReservations(ctx, now.Add(-maxBufferSlack))
	if err != nil {
		return fmt.Errorf("load active reservations: %w", err)
	}

	units, err := s.topology.ListReservationUnits(ctx)
	if err != nil {
		return fmt.Errorf("load reservation units: %w", err)
	}
	unitsByID := make(map[int64]persistence.ReservationUnit, len(units))
	for _, unit := range units {
		unitsByID[unit.ID] = unit
	}

	unitIDSet := make(map[int64]struct{})
	for _, reservation := range reservations {
		for _, unitID := range reservation.UnitIDs {
			unitIDSet[unitID] = struct{}{}
		}
	}
	unitIDs := make([]int64, 0, len(unitIDSet))
	for unitID := range unitIDSet {
		unitIDs = append(unitIDs, unitID)
	}
	related, err := s.hierarchy.RelatedUnitsBatch(ctx, unitIDs)
	if err != nil {
		return fmt.Errorf("resolve related units: %w", err)
	}

	rows := make([]persistence.AffectingTimeSpan, 0, len(reservations))
	for _, reservation := range reservations {
		row := buildAffectingSpan(reservation, unitsByID, related)
		if !row.BufferedEnd.After(now) {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ReservationID < rows[j].ReservationID })

	if err := s.spans.ReplaceAll(ctx, rows); err != nil {
		return fmt.Errorf("replace affecting spans: %w", err)
	}

	logger.Info("affecting spans rebuilt", "reservations", len(reservations), "rows", len(rows))
	return nil
}

// buildAffectingSpan resolves the buffered interval and the affected unit
// closure for one reservation. Buffer precedence: the reservation's own
// value when set, else the largest default among its attached units, else
// zero. Whole-day stretching is already resolved into the stored
// reservation buffers by the mutation layer.
func buildAffectingSpan(reservation persistence.Reservation, unitsByID map[int64]persistence.ReservationUnit, related map[int64][]int64) persistence.AffectingTimeSpan {
	var defaultBefore, defaultAfter time.Duration
	for _, unitID := range reservation.UnitIDs {
		unit, ok := unitsByID[unitID]
		if !ok {
			continue
		}
		if unit.BufferTimeBefore > defaultBefore {
			defaultBefore = unit.BufferTimeBefore
		}
		if unit.BufferTimeAfter > defaultAfter {
			defaultAfter = unit.BufferTimeAfter
		}
	}

	before := defaultBefore
	if reservation.BufferTimeBefore != nil {
		before = *reservation.BufferTimeBefore
	}
	after := defaultAfter
	if reservation.BufferTimeAfter != nil {
		after = *reservation.BufferTimeAfter
	}

	affected := make(map[int64]struct{})
	for _, unitID := range reservation.UnitIDs {
		ids, ok := related[unitID]
		if !ok {
			ids = []int64{unitID}
		}
		for _, id := range ids {
			affected[id] = struct{}{}
		}
	}
	affectedIDs := make([]int64, 0, len(affected))
	for id := range affected {
		affectedIDs = append(affectedIDs, id)
	}
	sort.Slice(affectedIDs, func(i, j int) bool { return affectedIDs[i] < affectedIDs[j] })

	return persistence.AffectingTimeSpan{
		ReservationID:   reservation.ID,
		BufferedStart:   reservation.BeginsAt.Add(-before),
		BufferedEnd:     reservation.EndsAt.Add(after),
		IsBlocking:      reservation.Type == persistence.TypeBlocked,
		AffectedUnitIDs: affectedIDs,
	}
}

// BlockingIntervals returns the buffered intervals that block the given unit
// inside the window. The affected-unit sets stored on the rows are already
// closure-expanded, so a single membership test suffices.
func (s *BlockingService) BlockingIntervals(ctx context.Context, unitID int64, window interval.TimeSpan) ([]persistence.AffectingTimeSpan, error) {
	return s.spans.ListOverlapping(ctx, []int64{unitID}, window)
}

// BlockingIntervalsForUnits loads the blocking intervals for several units in
// one query and distributes them by membership, avoiding an N+1 fetch in the
// batch search.
func (s *BlockingService) BlockingIntervalsForUnits(ctx context.Context, unitIDs []int64, window interval.TimeSpan) (map[int64][]persistence.AffectingTimeSpan, error) {
	rows, err := s.spans.ListOverlapping(ctx, unitIDs, window)
	if err != nil {
		return nil, err
	}

	wanted := make(map[int64]struct{}, len(unitIDs))
	for _, unitID := range unitIDs {
		wanted[unitID] = struct{}{}
	}

	out := make(map[int64][]persistence.AffectingTimeSpan, len(unitIDs))
	for _, row := range rows {
		for _, unitID := range row.AffectedUnitIDs {
			if _, ok := wanted[unitID]; ok {
				out[unitID] = append(out[unitID], row)
			}
		}
	}
	return out, nil
}
