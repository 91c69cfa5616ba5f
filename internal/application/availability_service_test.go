package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/reservation-availability/internal/persistence"
)

// searchNow is 08:00 local so same-day opening hours starting 09:00 lie ahead.
func searchNow() time.Time {
	return time.Date(2024, 5, 6, 8, 0, 0, 0, helsinki)
}

type availabilityFixture struct {
	topology *fakeTopologyRepo
	hauki    *fakeHaukiRepo
	spans    *fakeAffectingRepo
	service  *AvailabilityService
}

func newAvailabilityFixture(t *testing.T) *availabilityFixture {
	t.Helper()
	topology := newFakeTopologyRepo()
	haukiRepo := newFakeHaukiRepo()
	spans := &fakeAffectingRepo{}

	opening := NewOpeningHoursService(haukiRepo, &fakeFetcher{}, helsinki, 0, 0, searchNow, nil)
	hierarchy := NewHierarchyService(topology, newFakeHierarchyRepo(), nil)
	blocking := NewBlockingService(newFakeReservationRepo(), topology, hierarchy, spans, searchNow, nil)
	service := NewAvailabilityService(topology, opening, blocking, NewLRUResultCache(16, time.Minute), helsinki, searchNow, nil)

	return &availabilityFixture{topology: topology, hauki: haukiRepo, spans: spans, service: service}
}

func (f *availabilityFixture) addUnit(t *testing.T, unit persistence.ReservationUnit) {
	t.Helper()
	if err := f.topology.UpsertReservationUnit(context.Background(), unit); err != nil {
		t.Fatalf("UpsertReservationUnit: %v", err)
	}
}

func (f *availabilityFixture) openToday(resourceID int64, fromHour, toHour int) {
	f.hauki.spans[resourceID] = append(f.hauki.spans[resourceID], persistence.ReservableTimeSpan{
		ResourceID: resourceID,
		Start:      time.Date(2024, 5, 6, fromHour, 0, 0, 0, helsinki),
		End:        time.Date(2024, 5, 6, toHour, 0, 0, 0, helsinki),
	})
}

func (f *availabilityFixture) blockToday(reservationID int64, fromHour, toHour int, unitIDs ...int64) {
	f.spans.rows = append(f.spans.rows, persistence.AffectingTimeSpan{
		ReservationID:   reservationID,
		BufferedStart:   time.Date(2024, 5, 6, fromHour, 0, 0, 0, helsinki),
		BufferedEnd:     time.Date(2024, 5, 6, toHour, 0, 0, 0, helsinki),
		AffectedUnitIDs: unitIDs,
	})
}

func (f *availabilityFixture) search(t *testing.T, params SearchParams) []UnitAvailability {
	t.Helper()
	results, err := f.service.FindFirstReservableTimes(context.Background(), params)
	if err != nil {
		t.Fatalf("FindFirstReservableTimes: %v", err)
	}
	return results
}

func expectFirstAt(t *testing.T, result UnitAvailability, want time.Time) {
	t.Helper()
	if result.IsClosed {
		t.Fatalf("unit %d unexpectedly closed", result.UnitID)
	}
	if result.FirstReservable == nil || !result.FirstReservable.Equal(want) {
		t.Fatalf("unit %d first reservable = %v, want %v", result.UnitID, result.FirstReservable, want)
	}
}

func expectClosed(t *testing.T, result UnitAvailability) {
	t.Helper()
	if !result.IsClosed || result.FirstReservable != nil {
		t.Fatalf("unit %d expected closed, got %+v", result.UnitID, result)
	}
}

func TestSearchOpenDayNoBookings(t *testing.T) {
	f := newAvailabilityFixture(t)
	f.addUnit(t, persistence.ReservationUnit{
		ID:                       10,
		ReservationStartInterval: 30 * time.Minute,
		OriginHaukiResourceID:    ref64(7),
	})
	f.openToday(7, 9, 17)

	results := f.search(t, SearchParams{UnitIDs: []int64{10}, MinimumDuration: time.Hour})
	expectFirstAt(t, results[0], time.Date(2024, 5, 6, 9, 0, 0, 0, helsinki))
}

func TestSearchSkipsBookedMorning(t *testing.T) {
	f := newAvailabilityFixture(t)
	f.addUnit(t, persistence.ReservationUnit{
		ID:                       10,
		ReservationStartInterval: 30 * time.Minute,
		OriginHaukiResourceID:    ref64(7),
	})
	f.openToday(7, 9, 17)
	f.blockToday(1, 9, 10, 10)

	results := f.search(t, SearchParams{UnitIDs: []int64{10}, MinimumDuration: time.Hour})
	expectFirstAt(t, results[0], time.Date(2024, 5, 6, 10, 0, 0, 0, helsinki))
}

func TestSearchBlockedThroughSharedSpace(t *testing.T) {
	f := newAvailabilityFixture(t)
	f.addUnit(t, persistence.ReservationUnit{
		ID:                       10,
		ReservationStartInterval: 30 * time.Minute,
		OriginHaukiResourceID:    ref64(7),
	})
	f.openToday(7, 9, 17)
	// A whole-day blocking reservation on a sibling unit; the affected set
	// already carries the closure, so unit 10 appears in it.
	f.blockToday(1, 9, 17, 10, 11)

	// The search window is capped to today so the block closes the unit.
	dateEnd := time.Date(2024, 5, 6, 0, 0, 0, 0, helsinki)
	results := f.search(t, SearchParams{UnitIDs: []int64{10}, MinimumDuration: time.Hour, FilterDateEnd: &dateEnd})
	expectClosed(t, results[0])
}

func TestSearchNoOpeningHoursAndNoOverride(t *testing.T) {
	f := newAvailabilityFixture(t)
	f.addUnit(t, persistence.ReservationUnit{ID: 10, ReservationStartInterval: 30 * time.Minute})

	results := f.search(t, SearchParams{UnitIDs: []int64{10}})
	expectClosed(t, results[0])
}

func TestSearchAllowsReservationsWithoutOpeningHours(t *testing.T) {
	f := newAvailabilityFixture(t)
	f.addUnit(t, persistence.ReservationUnit{
		ID:                                   10,
		ReservationStartInterval:             30 * time.Minute,
		AllowReservationsWithoutOpeningHours: true,
	})

	results := f.search(t, SearchParams{UnitIDs: []int64{10}, MinimumDuration: time.Hour})
	// The whole window is open; 08:00 is already interval-aligned.
	expectFirstAt(t, results[0], searchNow())
}

func TestSearchTimeOfDayFilter(t *testing.T) {
	f := newAvailabilityFixture(t)
	f.addUnit(t, persistence.ReservationUnit{
		ID:                       10,
		ReservationStartInterval: 30 * time.Minute,
		OriginHaukiResourceID:    ref64(7),
	})
	f.openToday(7, 9, 17)

	from := 13 * time.Hour
	to := 17 * time.Hour
	results := f.search(t, SearchParams{
		UnitIDs:         []int64{10},
		MinimumDuration: time.Hour,
		FilterTimeStart: &from,
		FilterTimeEnd:   &to,
	})
	expectFirstAt(t, results[0], time.Date(2024, 5, 6, 13, 0, 0, 0, helsinki))
}

func TestSearchAlignsToStartInterval(t *testing.T) {
	f := newAvailabilityFixture(t)
	f.addUnit(t, persistence.ReservationUnit{
		ID:                       10,
		ReservationStartInterval: 30 * time.Minute,
		OriginHaukiResourceID:    ref64(7),
	})
	// Open from 09:10; the first 30-minute boundary after that is 09:30.
	f.hauki.spans[7] = []persistence.ReservableTimeSpan{{
		ResourceID: 7,
		Start:      time.Date(2024, 5, 6, 9, 10, 0, 0, helsinki),
		End:        time.Date(2024, 5, 6, 17, 0, 0, 0, helsinki),
	}}

	results := f.search(t, SearchParams{UnitIDs: []int64{10}, MinimumDuration: time.Hour})
	expectFirstAt(t, results[0], time.Date(2024, 5, 6, 9, 30, 0, 0, helsinki))
}

func TestSearchUnitMinimumDurationDefault(t *testing.T) {
	f := newAvailabilityFixture(t)
	f.addUnit(t, persistence.ReservationUnit{
		ID:                       10,
		ReservationStartInterval: 30 * time.Minute,
		MinReservationDuration:   4 * time.Hour,
		OriginHaukiResourceID:    ref64(7),
	})
	// Only a three-hour slot is open; the unit's own minimum cannot fit.
	f.openToday(7, 9, 12)

	dateEnd := time.Date(2024, 5, 6, 0, 0, 0, 0, helsinki)
	results := f.search(t, SearchParams{UnitIDs: []int64{10}, FilterDateEnd: &dateEnd})
	expectClosed(t, results[0])
}

func TestSearchDurationAboveUnitMaximum(t *testing.T) {
	f := newAvailabilityFixture(t)
	f.addUnit(t, persistence.ReservationUnit{
		ID:                       10,
		ReservationStartInterval: 30 * time.Minute,
		MaxReservationDuration:   time.Hour,
		OriginHaukiResourceID:    ref64(7),
	})
	f.openToday(7, 9, 17)

	results := f.search(t, SearchParams{UnitIDs: []int64{10}, MinimumDuration: 2 * time.Hour})
	expectClosed(t, results[0])
}

func TestSearchLeadTimeBounds(t *testing.T) {
	f := newAvailabilityFixture(t)
	minDays := 2
	f.addUnit(t, persistence.ReservationUnit{
		ID:                                   10,
		ReservationStartInterval:             30 * time.Minute,
		ReservationsMinDaysBefore:            &minDays,
		AllowReservationsWithoutOpeningHours: true,
	})

	results := f.search(t, SearchParams{UnitIDs: []int64{10}, MinimumDuration: time.Hour})
	// Two days of lead time push the window start to the 8th at midnight.
	expectFirstAt(t, results[0], time.Date(2024, 5, 8, 0, 0, 0, 0, helsinki))
}

func TestSearchValidation(t *testing.T) {
	f := newAvailabilityFixture(t)
	ctx := context.Background()

	dateStart := time.Date(2024, 5, 10, 0, 0, 0, 0, helsinki)
	dateEnd := time.Date(2024, 5, 6, 0, 0, 0, 0, helsinki)
	overnightFrom := 22 * time.Hour
	overnightTo := 2 * time.Hour

	cases := []struct {
		name   string
		params SearchParams
		field  string
	}{
		{"no units", SearchParams{}, "units"},
		{"reversed dates", SearchParams{UnitIDs: []int64{10}, FilterDateStart: &dateStart, FilterDateEnd: &dateEnd}, "filter_dates"},
		{"negative duration", SearchParams{UnitIDs: []int64{10}, MinimumDuration: -time.Hour}, "minimum_duration"},
		{"overnight time filter", SearchParams{UnitIDs: []int64{10}, FilterTimeStart: &overnightFrom, FilterTimeEnd: &overnightTo}, "filter_times"},
		{"half time filter", SearchParams{UnitIDs: []int64{10}, FilterTimeStart: &overnightFrom}, "filter_times"},
		{"negative offset", SearchParams{UnitIDs: []int64{10}, Offset: -1}, "offset"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.FindFirstReservableTimes(ctx, tc.params)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := vErr.FieldErrors[tc.field]; !ok {
				t.Fatalf("expected field %q flagged, got %v", tc.field, vErr.FieldErrors)
			}
		})
	}
}

func TestSearchShowOnlyReservableFiltersBeforePagination(t *testing.T) {
	f := newAvailabilityFixture(t)
	f.addUnit(t, persistence.ReservationUnit{ID: 10, AllowReservationsWithoutOpeningHours: true})
	f.addUnit(t, persistence.ReservationUnit{ID: 11})
	f.addUnit(t, persistence.ReservationUnit{ID: 12, AllowReservationsWithoutOpeningHours: true})

	results := f.search(t, SearchParams{
		UnitIDs:            []int64{10, 11, 12},
		MinimumDuration:    time.Hour,
		ShowOnlyReservable: true,
		Offset:             1,
		Limit:              1,
	})
	if len(results) != 1 || results[0].UnitID != 12 {
		t.Fatalf("expected page [12] after filtering closed unit 11, got %+v", results)
	}
}

func TestSearchReusesCachedComputation(t *testing.T) {
	f := newAvailabilityFixture(t)
	f.addUnit(t, persistence.ReservationUnit{ID: 10, AllowReservationsWithoutOpeningHours: true})
	f.addUnit(t, persistence.ReservationUnit{ID: 11, AllowReservationsWithoutOpeningHours: true})

	first := f.search(t, SearchParams{UnitIDs: []int64{10, 11}, MinimumDuration: time.Hour, CacheKey: "query-1", Limit: 1})
	if len(first) != 1 || first[0].UnitID != 10 {
		t.Fatalf("unexpected first page %+v", first)
	}
	if f.topology.getCalls != 1 {
		t.Fatalf("expected one unit load, got %d", f.topology.getCalls)
	}

	second := f.search(t, SearchParams{UnitIDs: []int64{10, 11}, MinimumDuration: time.Hour, CacheKey: "query-1", Offset: 1, Limit: 1})
	if len(second) != 1 || second[0].UnitID != 11 {
		t.Fatalf("unexpected second page %+v", second)
	}
	if f.topology.getCalls != 1 {
		t.Fatalf("second page must not recompute, got %d unit loads", f.topology.getCalls)
	}
}

func TestSearchUnknownUnitIsClosed(t *testing.T) {
	f := newAvailabilityFixture(t)
	results := f.search(t, SearchParams{UnitIDs: []int64{99}})
	expectClosed(t, results[0])
}
