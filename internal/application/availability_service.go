package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/reservation-availability/internal/interval"
	"github.com/example/reservation-availability/internal/persistence"
)

const (
	// defaultSearchHorizon bounds the effective window of units with no
	// booking-window end and no max-days-before limit.
	defaultSearchHorizon = 730 * 24 * time.Hour
	defaultStartInterval = 15 * time.Minute
	defaultMaxParallel   = 8
)

// AvailabilityService computes first reservable times for batches of
// reservation units. It only reads the derived caches; no search mutates
// shared state, so per-unit computations run in parallel.
type AvailabilityService struct {
	topology persistence.TopologyRepository
	opening  *OpeningHoursService
	blocking *BlockingService
	cache    ResultCache
	loc      *time.Location

	maxParallel int
	now         func() time.Time
	logger      *slog.Logger
}

// NewAvailabilityService wires dependencies for the search engine. A nil
// cache disables result reuse across paginated calls.
func NewAvailabilityService(topology persistence.TopologyRepository, opening *OpeningHoursService, blocking *BlockingService, cache ResultCache, loc *time.Location, now func() time.Time, logger *slog.Logger) *AvailabilityService {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &AvailabilityService{
		topology:    topology,
		opening:     opening,
		blocking:    blocking,
		cache:       cache,
		loc:         loc,
		maxParallel: defaultMaxParallel,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// SetMaxParallel bounds concurrent per-unit computations within one search.
// Non-positive values keep the default.
func (s *AvailabilityService) SetMaxParallel(n int) {
	if n > 0 {
		s.maxParallel = n
	}
}

// FindFirstReservableTimes runs the batch search: per unit, it intersects the
// effective booking window, subtracts blocking intervals from the open spans,
// clips to the caller's time-of-day filter and walks the remainder for the
// first aligned start that fits the required duration. Closed units are
// annotated rather than erroring; only malformed input is an error.
func (s *AvailabilityService) FindFirstReservableTimes(ctx context.Context, params SearchParams) ([]UnitAvailability, error) {
	if err := validateSearchParams(params); err != nil {
		return nil, err
	}

	logger := serviceLogger(ctx, s.logger, "availability", "search", "units", len(params.UnitIDs))

	results, ok := s.cachedResults(ctx, params.CacheKey)
	if !ok {
		var err error
		results, err = s.computeAll(ctx, params)
		if err != nil {
			return nil, err
		}
		s.storeResults(ctx, params.CacheKey, results)
		logger.Debug("search computed", "results", len(results))
	} else {
		logger.Debug("search served from cache")
	}

	if params.ShowOnlyReservable {
		filtered := make([]UnitAvailability, 0, len(results))
		for _, result := range results {
			if !result.IsClosed {
				filtered = append(filtered, result)
			}
		}
		results = filtered
	}

	return paginate(results, params.Offset, params.Limit), nil
}

func validateSearchParams(params SearchParams) error {
	vErr := &ValidationError{}

	if len(params.UnitIDs) == 0 {
		vErr.add("units", "at least one reservation unit is required")
	}
	if params.FilterDateStart != nil && params.FilterDateEnd != nil && params.FilterDateStart.After(*params.FilterDateEnd) {
		vErr.add("filter_dates", "start date must not be after end date")
	}
	if params.MinimumDuration < 0 {
		vErr.add("minimum_duration", "must not be negative")
	}
	if params.FilterTimeStart != nil || params.FilterTimeEnd != nil {
		if params.FilterTimeStart == nil || params.FilterTimeEnd == nil {
			vErr.add("filter_times", "both time bounds are required when one is set")
		} else {
			from, to := *params.FilterTimeStart, *params.FilterTimeEnd
			if from < 0 || to > 24*time.Hour || from >= to {
				vErr.add("filter_times", "must satisfy 00:00 <= start < end <= 24:00 within one day")
			}
		}
	}
	if params.Offset < 0 {
		vErr.add("offset", "must not be negative")
	}
	if params.Limit < 0 {
		vErr.add("limit", "must not be negative")
	}

	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

// computeAll loads shared data once per distinct resource and unit set, then
// evaluates units in parallel. Results follow the order of params.UnitIDs.
func (s *AvailabilityService) computeAll(ctx context.Context, params SearchParams) ([]UnitAvailability, error) {
	units, err := s.topology.GetReservationUnits(ctx, params.UnitIDs)
	if err != nil {
		return nil, fmt.Errorf("load reservation units: %w", err)
	}
	unitsByID := make(map[int64]persistence.ReservationUnit, len(units))
	for _, unit := range units {
		unitsByID[unit.ID] = unit
	}

	now := s.now()

	windows := make(map[int64]interval.TimeSpan, len(units))
	var union interval.TimeSpan
	for _, unit := range units {
		window, ok := s.effectiveWindow(unit, now, params)
		if !ok {
			continue
		}
		windows[unit.ID] = window
		if union.IsEmpty() {
			union = window
			continue
		}
		if window.Start.Before(union.Start) {
			union.Start = window.Start
		}
		if window.End.After(union.End) {
			union.End = window.End
		}
	}

	openByResource := make(map[int64][]interval.TimeSpan)
	blockByUnit := make(map[int64][]persistence.AffectingTimeSpan)
	if !union.IsEmpty() {
		for _, unit := range units {
			resourceID := unit.OriginHaukiResourceID
			if resourceID == nil {
				continue
			}
			if _, done := openByResource[*resourceID]; done {
				continue
			}
			spans, err := s.opening.Overlapping(ctx, *resourceID, union)
			if err != nil {
				return nil, fmt.Errorf("load opening spans for resource %d: %w", *resourceID, err)
			}
			openByResource[*resourceID] = spans
		}

		searchable := make([]int64, 0, len(windows))
		for unitID := range windows {
			searchable = append(searchable, unitID)
		}
		blockByUnit, err = s.blocking.BlockingIntervalsForUnits(ctx, searchable, union)
		if err != nil {
			return nil, fmt.Errorf("load blocking intervals: %w", err)
		}
	}

	results := make([]UnitAvailability, len(params.UnitIDs))
	group, _ := errgroup.WithContext(ctx)
	group.SetLimit(s.maxParallel)
	for i, unitID := range params.UnitIDs {
		i, unitID := i, unitID
		group.Go(func() error {
			unit, ok := unitsByID[unitID]
			if !ok {
				results[i] = UnitAvailability{UnitID: unitID, IsClosed: true}
				return nil
			}
			window, ok := windows[unitID]
			if !ok {
				results[i] = UnitAvailability{UnitID: unitID, IsClosed: true}
				return nil
			}

			var open []interval.TimeSpan
			if unit.OriginHaukiResourceID != nil {
				open = openByResource[*unit.OriginHaukiResourceID]
			}
			results[i] = s.computeUnit(unit, window, now, params, open, blockByUnit[unitID])
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// effectiveWindow intersects the unit's booking window, its lead-time bounds
// and the caller's date filter. The boolean is false when the intersection
// is empty.
func (s *AvailabilityService) effectiveWindow(unit persistence.ReservationUnit, now time.Time, params SearchParams) (interval.TimeSpan, bool) {
	start := now
	end := now.Add(defaultSearchHorizon)

	today := interval.StartOfDay(now, s.loc)
	if unit.ReservationsMinDaysBefore != nil {
		if bound := today.AddDate(0, 0, *unit.ReservationsMinDaysBefore); bound.After(start) {
			start = bound
		}
	}
	if unit.ReservationsMaxDaysBefore != nil {
		if bound := today.AddDate(0, 0, *unit.ReservationsMaxDaysBefore+1); bound.Before(end) {
			end = bound
		}
	}

	if unit.ReservationBeginsAt != nil && unit.ReservationBeginsAt.After(start) {
		start = *unit.ReservationBeginsAt
	}
	if unit.ReservationEndsAt != nil && unit.ReservationEndsAt.Before(end) {
		end = *unit.ReservationEndsAt
	}

	if params.FilterDateStart != nil {
		if bound := interval.StartOfDay(*params.FilterDateStart, s.loc); bound.After(start) {
			start = bound
		}
	}
	if params.FilterDateEnd != nil {
		if bound := interval.StartOfDay(*params.FilterDateEnd, s.loc).AddDate(0, 0, 1); bound.Before(end) {
			end = bound
		}
	}

	window := interval.TimeSpan{Start: start, End: end}
	if window.IsEmpty() {
		return interval.TimeSpan{}, false
	}
	return window, true
}

// computeUnit runs steps 2-6 of the per-unit search. It is pure: all data is
// passed in, nothing is mutated.
func (s *AvailabilityService) computeUnit(unit persistence.ReservationUnit, window interval.TimeSpan, now time.Time, params SearchParams, openSpans []interval.TimeSpan, blocking []persistence.AffectingTimeSpan) UnitAvailability {
	closed := UnitAvailability{UnitID: unit.ID, IsClosed: true}

	var open []interval.TimeSpan
	switch {
	case unit.OriginHaukiResourceID != nil:
		for _, span := range openSpans {
			if clipped, ok := span.Intersect(window); ok {
				open = append(open, clipped)
			}
		}
	case unit.AllowReservationsWithoutOpeningHours:
		open = []interval.TimeSpan{window}
	default:
		return closed
	}
	if len(open) == 0 {
		return closed
	}

	blocks := make([]interval.TimeSpan, 0, len(blocking))
	for _, row := range blocking {
		blocks = append(blocks, row.Span())
	}
	remaining := interval.SubtractAll(open, blocks)

	if params.FilterTimeStart != nil && params.FilterTimeEnd != nil {
		remaining = interval.ClipToTimeOfDay(remaining, *params.FilterTimeStart, *params.FilterTimeEnd, s.loc)
	}

	duration := params.MinimumDuration
	if duration == 0 {
		duration = unit.MinReservationDuration
	}
	step := unit.ReservationStartInterval
	if step <= 0 {
		step = defaultStartInterval
	}
	if duration == 0 {
		duration = step
	}
	if unit.MaxReservationDuration > 0 && duration > unit.MaxReservationDuration {
		return closed
	}

	for _, span := range remaining {
		start := span.Start
		if start.Before(now) {
			start = now
		}
		// Later aligned starts only leave less room, so one check per
		// sub-interval suffices.
		candidate := interval.AlignForward(start, step, s.loc)
		if !candidate.Add(duration).After(span.End) {
			first := candidate
			return UnitAvailability{UnitID: unit.ID, FirstReservable: &first}
		}
	}
	return closed
}

func (s *AvailabilityService) cachedResults(ctx context.Context, key string) ([]UnitAvailability, bool) {
	if s.cache == nil || key == "" {
		return nil, false
	}
	return s.cache.Get(ctx, key)
}

func (s *AvailabilityService) storeResults(ctx context.Context, key string, results []UnitAvailability) {
	if s.cache == nil || key == "" {
		return
	}
	s.cache.Store(ctx, key, results)
}

func paginate(results []UnitAvailability, offset, limit int) []UnitAvailability {
	if offset >= len(results) {
		return nil
	}
	page := results[offset:]
	if limit > 0 && limit < len(page) {
		page = page[:limit]
	}
	out := make([]UnitAvailability, len(page))
	copy(out, page)
	return out
}
