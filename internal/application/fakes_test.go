package application

import (
	"context"
	"sort"
	"time"

	"github.com/example/reservation-availability/internal/hauki"
	"github.com/example/reservation-availability/internal/interval"
	"github.com/example/reservation-availability/internal/persistence"
)

type fakeTopologyRepo struct {
	spaces    map[int64]persistence.Space
	resources map[int64]persistence.Resource
	units     map[int64]persistence.ReservationUnit
	getCalls  int
}

func newFakeTopologyRepo() *fakeTopologyRepo {
	return &fakeTopologyRepo{
		spaces:    make(map[int64]persistence.Space),
		resources: make(map[int64]persistence.Resource),
		units:     make(map[int64]persistence.ReservationUnit),
	}
}

func (f *fakeTopologyRepo) UpsertSpace(_ context.Context, space persistence.Space) error {
	f.spaces[space.ID] = space
	return nil
}

func (f *fakeTopologyRepo) ListSpaces(_ context.Context) ([]persistence.Space, error) {
	out := make([]persistence.Space, 0, len(f.spaces))
	for _, space := range f.spaces {
		out = append(out, space)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTopologyRepo) UpsertResource(_ context.Context, resource persistence.Resource) error {
	f.resources[resource.ID] = resource
	return nil
}

func (f *fakeTopologyRepo) ListResources(_ context.Context) ([]persistence.Resource, error) {
	out := make([]persistence.Resource, 0, len(f.resources))
	for _, resource := range f.resources {
		out = append(out, resource)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTopologyRepo) UpsertReservationUnit(_ context.Context, unit persistence.ReservationUnit) error {
	f.units[unit.ID] = unit
	return nil
}

func (f *fakeTopologyRepo) GetReservationUnit(_ context.Context, id int64) (persistence.ReservationUnit, error) {
	unit, ok := f.units[id]
	if !ok {
		return persistence.ReservationUnit{}, persistence.ErrNotFound
	}
	return unit, nil
}

func (f *fakeTopologyRepo) GetReservationUnits(_ context.Context, ids []int64) ([]persistence.ReservationUnit, error) {
	f.getCalls++
	out := make([]persistence.ReservationUnit, 0, len(ids))
	for _, id := range ids {
		if unit, ok := f.units[id]; ok {
			out = append(out, unit)
		}
	}
	return out, nil
}

func (f *fakeTopologyRepo) ListReservationUnits(_ context.Context) ([]persistence.ReservationUnit, error) {
	out := make([]persistence.ReservationUnit, 0, len(f.units))
	for _, unit := range f.units {
		out = append(out, unit)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeReservationRepo struct {
	reservations map[int64]persistence.Reservation
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{reservations: make(map[int64]persistence.Reservation)}
}

func (f *fakeReservationRepo) UpsertReservation(_ context.Context, reservation persistence.Reservation) error {
	f.reservations[reservation.ID] = reservation
	return nil
}

func (f *fakeReservationRepo) DeleteReservation(_ context.Context, id int64) error {
	if _, ok := f.reservations[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(f.reservations, id)
	return nil
}

func (f *fakeReservationRepo) ListActiveReservations(_ context.Context, horizon time.Time) ([]persistence.Reservation, error) {
	out := make([]persistence.Reservation, 0, len(f.reservations))
	for _, reservation := range f.reservations {
		if !reservation.State.IsActive() {
			continue
		}
		if reservation.EndsAt.Before(horizon) {
			continue
		}
		out = append(out, reservation)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeHierarchyRepo struct {
	rows map[int64][]int64
}

func newFakeHierarchyRepo() *fakeHierarchyRepo {
	return &fakeHierarchyRepo{rows: make(map[int64][]int64)}
}

func (f *fakeHierarchyRepo) ReplaceAll(_ context.Context, rows []persistence.HierarchyRow) error {
	next := make(map[int64][]int64, len(rows))
	for _, row := range rows {
		next[row.UnitID] = append([]int64(nil), row.RelatedUnitIDs...)
	}
	f.rows = next
	return nil
}

func (f *fakeHierarchyRepo) RelatedUnits(_ context.Context, unitID int64) ([]int64, error) {
	ids, ok := f.rows[unitID]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return append([]int64(nil), ids...), nil
}

func (f *fakeHierarchyRepo) RelatedUnitsBatch(_ context.Context, unitIDs []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64)
	for _, unitID := range unitIDs {
		if ids, ok := f.rows[unitID]; ok {
			out[unitID] = append([]int64(nil), ids...)
		}
	}
	return out, nil
}

type fakeAffectingRepo struct {
	rows []persistence.AffectingTimeSpan
}

func (f *fakeAffectingRepo) ReplaceAll(_ context.Context, spans []persistence.AffectingTimeSpan) error {
	f.rows = append([]persistence.AffectingTimeSpan(nil), spans...)
	return nil
}

func (f *fakeAffectingRepo) ListOverlapping(_ context.Context, unitIDs []int64, window interval.TimeSpan) ([]persistence.AffectingTimeSpan, error) {
	wanted := make(map[int64]struct{}, len(unitIDs))
	for _, id := range unitIDs {
		wanted[id] = struct{}{}
	}
	var out []persistence.AffectingTimeSpan
	for _, row := range f.rows {
		if !row.Span().Overlaps(window) {
			continue
		}
		for _, unitID := range row.AffectedUnitIDs {
			if _, ok := wanted[unitID]; ok {
				out = append(out, row)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeAffectingRepo) ListAll(_ context.Context) ([]persistence.AffectingTimeSpan, error) {
	return append([]persistence.AffectingTimeSpan(nil), f.rows...), nil
}

type fakeHaukiRepo struct {
	resources map[int64]persistence.OriginHaukiResource
	spans     map[int64][]persistence.ReservableTimeSpan
}

func newFakeHaukiRepo() *fakeHaukiRepo {
	return &fakeHaukiRepo{
		resources: make(map[int64]persistence.OriginHaukiResource),
		spans:     make(map[int64][]persistence.ReservableTimeSpan),
	}
}

func (f *fakeHaukiRepo) UpsertOriginResource(_ context.Context, resource persistence.OriginHaukiResource) error {
	f.resources[resource.ID] = resource
	return nil
}

func (f *fakeHaukiRepo) GetOriginResource(_ context.Context, id int64) (persistence.OriginHaukiResource, error) {
	resource, ok := f.resources[id]
	if !ok {
		return persistence.OriginHaukiResource{}, persistence.ErrNotFound
	}
	return resource, nil
}

func (f *fakeHaukiRepo) ListOriginResources(_ context.Context) ([]persistence.OriginHaukiResource, error) {
	out := make([]persistence.OriginHaukiResource, 0, len(f.resources))
	for _, resource := range f.resources {
		out = append(out, resource)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeHaukiRepo) ReplaceUpcomingSpans(_ context.Context, resourceID int64, today time.Time, hash string, fetchedDate time.Time, spans []persistence.ReservableTimeSpan) error {
	var kept []persistence.ReservableTimeSpan
	for _, span := range f.spans[resourceID] {
		if !span.Start.Before(today) {
			continue
		}
		if span.End.After(today) {
			span.End = today
		}
		kept = append(kept, span)
	}
	kept = append(kept, spans...)
	sort.Slice(kept, func(i, j int) bool { return kept[i].Start.Before(kept[j].Start) })
	f.spans[resourceID] = kept
	f.resources[resourceID] = persistence.OriginHaukiResource{
		ID:                resourceID,
		OpeningHoursHash:  hash,
		LatestFetchedDate: &fetchedDate,
	}
	return nil
}

func (f *fakeHaukiRepo) ListSpansOverlapping(_ context.Context, resourceID int64, window interval.TimeSpan) ([]persistence.ReservableTimeSpan, error) {
	var out []persistence.ReservableTimeSpan
	for _, span := range f.spans[resourceID] {
		if span.Span().Overlaps(window) {
			out = append(out, span)
		}
	}
	return out, nil
}

type fakeFetcher struct {
	rules hauki.RuleSet
	err   error
	calls int
}

func (f *fakeFetcher) FetchRules(_ context.Context, _ int64, _, _ time.Time) (hauki.RuleSet, error) {
	f.calls++
	if f.err != nil {
		return hauki.RuleSet{}, f.err
	}
	return f.rules, nil
}
