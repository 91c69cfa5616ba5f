package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/reservation-availability/internal/persistence"
)

var (
	spaceCounter       int64
	resourceCounter    int64
	unitCounter        int64
	reservationCounter int64
)

// ----------------------------- Space fixtures -----------------------------

// SpaceFixture represents one node of the space tree.
type SpaceFixture struct {
	ID       int64
	Name     string
	ParentID *int64
}

// SpaceOption configures the generated space fixture.
type SpaceOption func(*SpaceFixture)

// NewSpaceFixture returns a deterministic root space with optional overrides.
func NewSpaceFixture(opts ...SpaceOption) SpaceFixture {
	idx := atomic.AddInt64(&spaceCounter, 1)
	fixture := SpaceFixture{
		ID:   idx,
		Name: fmt.Sprintf("Space %03d", idx),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSpaceID overrides the generated space ID.
func WithSpaceID(id int64) SpaceOption {
	return func(f *SpaceFixture) {
		f.ID = id
	}
}

// WithSpaceParent makes the space a child of the given space.
func WithSpaceParent(parentID int64) SpaceOption {
	return func(f *SpaceFixture) {
		id := parentID
		f.ParentID = &id
	}
}

// Persistence returns the fixture as a persistence.Space value.
func (f SpaceFixture) Persistence() persistence.Space {
	var parent *int64
	if f.ParentID != nil {
		id := *f.ParentID
		parent = &id
	}
	return persistence.Space{ID: f.ID, Name: f.Name, ParentID: parent}
}

// ---------------------------- Resource fixtures ---------------------------

// ResourceFixture represents a shareable asset.
type ResourceFixture struct {
	ID   int64
	Name string
}

// NewResourceFixture returns a deterministic resource fixture.
func NewResourceFixture() ResourceFixture {
	idx := atomic.AddInt64(&resourceCounter, 1)
	return ResourceFixture{ID: 100 + idx, Name: fmt.Sprintf("Resource %03d", idx)}
}

// Persistence returns the fixture as a persistence.Resource value.
func (f ResourceFixture) Persistence() persistence.Resource {
	return persistence.Resource{ID: f.ID, Name: f.Name}
}

// ------------------------ Reservation unit fixtures -----------------------

// UnitFixture represents a bookable reservation unit.
type UnitFixture struct {
	ID          int64
	Name        string
	SpaceIDs    []int64
	ResourceIDs []int64

	BufferTimeBefore         time.Duration
	BufferTimeAfter          time.Duration
	ReservationStartInterval time.Duration
	ReservationBlockWholeDay bool

	MinReservationDuration time.Duration
	MaxReservationDuration time.Duration

	ReservationsMinDaysBefore *int
	ReservationsMaxDaysBefore *int
	ReservationBeginsAt       *time.Time
	ReservationEndsAt         *time.Time

	AllowReservationsWithoutOpeningHours bool
	OriginHaukiResourceID                *int64
}

// UnitOption configures the generated unit fixture.
type UnitOption func(*UnitFixture)

// NewUnitFixture returns a deterministic reservation unit with a 15 minute
// start interval and optional overrides.
func NewUnitFixture(opts ...UnitOption) UnitFixture {
	idx := atomic.AddInt64(&unitCounter, 1)
	fixture := UnitFixture{
		ID:                       1000 + idx,
		Name:                     fmt.Sprintf("Unit %03d", idx),
		ReservationStartInterval: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUnitID overrides the generated unit ID.
func WithUnitID(id int64) UnitOption {
	return func(f *UnitFixture) {
		f.ID = id
	}
}

// WithUnitSpaces attaches the given spaces.
func WithUnitSpaces(spaceIDs ...int64) UnitOption {
	return func(f *UnitFixture) {
		f.SpaceIDs = append([]int64(nil), spaceIDs...)
	}
}

// WithUnitResources attaches the given resources.
func WithUnitResources(resourceIDs ...int64) UnitOption {
	return func(f *UnitFixture) {
		f.ResourceIDs = append([]int64(nil), resourceIDs...)
	}
}

// WithUnitBuffers sets the default buffer durations.
func WithUnitBuffers(before, after time.Duration) UnitOption {
	return func(f *UnitFixture) {
		f.BufferTimeBefore = before
		f.BufferTimeAfter = after
	}
}

// WithUnitStartInterval sets the reservation start interval.
func WithUnitStartInterval(d time.Duration) UnitOption {
	return func(f *UnitFixture) {
		f.ReservationStartInterval = d
	}
}

// WithUnitDurationLimits sets the minimum and maximum reservation durations.
func WithUnitDurationLimits(minDuration, maxDuration time.Duration) UnitOption {
	return func(f *UnitFixture) {
		f.MinReservationDuration = minDuration
		f.MaxReservationDuration = maxDuration
	}
}

// WithUnitLeadTimes sets the min/max days-before booking window bounds.
func WithUnitLeadTimes(minDays, maxDays int) UnitOption {
	return func(f *UnitFixture) {
		minCopy, maxCopy := minDays, maxDays
		f.ReservationsMinDaysBefore = &minCopy
		f.ReservationsMaxDaysBefore = &maxCopy
	}
}

// WithUnitBookingWindow sets the absolute begins/ends bounds.
func WithUnitBookingWindow(begins, ends time.Time) UnitOption {
	return func(f *UnitFixture) {
		b, e := begins, ends
		f.ReservationBeginsAt = &b
		f.ReservationEndsAt = &e
	}
}

// WithUnitHaukiResource links the unit to an opening-hours resource.
func WithUnitHaukiResource(resourceID int64) UnitOption {
	return func(f *UnitFixture) {
		id := resourceID
		f.OriginHaukiResourceID = &id
	}
}

// WithUnitAllowWithoutOpeningHours marks the unit reservable without
// provider data.
func WithUnitAllowWithoutOpeningHours() UnitOption {
	return func(f *UnitFixture) {
		f.AllowReservationsWithoutOpeningHours = true
	}
}

// Persistence returns the fixture as a persistence.ReservationUnit value.
func (f UnitFixture) Persistence() persistence.ReservationUnit {
	unit := persistence.ReservationUnit{
		ID:                                   f.ID,
		Name:                                 f.Name,
		SpaceIDs:                             append([]int64(nil), f.SpaceIDs...),
		ResourceIDs:                          append([]int64(nil), f.ResourceIDs...),
		BufferTimeBefore:                     f.BufferTimeBefore,
		BufferTimeAfter:                      f.BufferTimeAfter,
		ReservationStartInterval:             f.ReservationStartInterval,
		ReservationBlockWholeDay:             f.ReservationBlockWholeDay,
		MinReservationDuration:               f.MinReservationDuration,
		MaxReservationDuration:               f.MaxReservationDuration,
		AllowReservationsWithoutOpeningHours: f.AllowReservationsWithoutOpeningHours,
	}
	if f.ReservationsMinDaysBefore != nil {
		v := *f.ReservationsMinDaysBefore
		unit.ReservationsMinDaysBefore = &v
	}
	if f.ReservationsMaxDaysBefore != nil {
		v := *f.ReservationsMaxDaysBefore
		unit.ReservationsMaxDaysBefore = &v
	}
	if f.ReservationBeginsAt != nil {
		t := *f.ReservationBeginsAt
		unit.ReservationBeginsAt = &t
	}
	if f.ReservationEndsAt != nil {
		t := *f.ReservationEndsAt
		unit.ReservationEndsAt = &t
	}
	if f.OriginHaukiResourceID != nil {
		id := *f.OriginHaukiResourceID
		unit.OriginHaukiResourceID = &id
	}
	return unit
}

// -------------------------- Reservation fixtures --------------------------

// ReservationFixture represents a booking against one or more units.
type ReservationFixture struct {
	ID               int64
	BeginsAt         time.Time
	EndsAt           time.Time
	BufferTimeBefore *time.Duration
	BufferTimeAfter  *time.Duration
	State            persistence.ReservationState
	Type             persistence.ReservationType
	UnitIDs          []int64
}

// ReservationOption configures the generated reservation fixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a confirmed one hour reservation starting an
// hour after ReferenceTime, with optional overrides.
func NewReservationFixture(opts ...ReservationOption) ReservationFixture {
	idx := atomic.AddInt64(&reservationCounter, 1)
	begins := ReferenceTime().Add(time.Hour)
	fixture := ReservationFixture{
		ID:       5000 + idx,
		BeginsAt: begins,
		EndsAt:   begins.Add(time.Hour),
		State:    persistence.StateConfirmed,
		Type:     persistence.TypeNormal,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReservationID overrides the generated reservation ID.
func WithReservationID(id int64) ReservationOption {
	return func(f *ReservationFixture) {
		f.ID = id
	}
}

// WithReservationSpan sets the reservation interval.
func WithReservationSpan(begins, ends time.Time) ReservationOption {
	return func(f *ReservationFixture) {
		f.BeginsAt = begins
		f.EndsAt = ends
	}
}

// WithReservationUnits attaches the reservation to the given units.
func WithReservationUnits(unitIDs ...int64) ReservationOption {
	return func(f *ReservationFixture) {
		f.UnitIDs = append([]int64(nil), unitIDs...)
	}
}

// WithReservationBuffers sets explicit buffer durations, overriding the unit
// defaults.
func WithReservationBuffers(before, after time.Duration) ReservationOption {
	return func(f *ReservationFixture) {
		b, a := before, after
		f.BufferTimeBefore = &b
		f.BufferTimeAfter = &a
	}
}

// WithReservationState sets the lifecycle state.
func WithReservationState(state persistence.ReservationState) ReservationOption {
	return func(f *ReservationFixture) {
		f.State = state
	}
}

// WithReservationType sets the reservation type.
func WithReservationType(typ persistence.ReservationType) ReservationOption {
	return func(f *ReservationFixture) {
		f.Type = typ
	}
}

// Persistence returns the fixture as a persistence.Reservation value.
func (f ReservationFixture) Persistence() persistence.Reservation {
	reservation := persistence.Reservation{
		ID:       f.ID,
		BeginsAt: f.BeginsAt,
		EndsAt:   f.EndsAt,
		State:    f.State,
		Type:     f.Type,
		UnitIDs:  append([]int64(nil), f.UnitIDs...),
	}
	if f.BufferTimeBefore != nil {
		d := *f.BufferTimeBefore
		reservation.BufferTimeBefore = &d
	}
	if f.BufferTimeAfter != nil {
		d := *f.BufferTimeAfter
		reservation.BufferTimeAfter = &d
	}
	return reservation
}
