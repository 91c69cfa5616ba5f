package persistence

import (
	"time"

	"github.com/example/reservation-availability/internal/interval"
)

// ReservationState enumerates the lifecycle states of a reservation.
type ReservationState string

const (
	StateCreated           ReservationState = "CREATED"
	StateConfirmed         ReservationState = "CONFIRMED"
	StateWaitingForPayment ReservationState = "WAITING_FOR_PAYMENT"
	StateRequiresHandling  ReservationState = "REQUIRES_HANDLING"
	StateCancelled         ReservationState = "CANCELLED"
	StateDenied            ReservationState = "DENIED"
)

// IsActive reports whether a reservation in this state is going to occur and
// therefore blocks availability.
func (s ReservationState) IsActive() bool {
	switch s {
	case StateCreated, StateConfirmed, StateWaitingForPayment, StateRequiresHandling:
		return true
	}
	return false
}

// ReservationType enumerates how a reservation was made.
type ReservationType string

const (
	TypeNormal  ReservationType = "NORMAL"
	TypeBlocked ReservationType = "BLOCKED"
	TypeStaff   ReservationType = "STAFF"
	TypeBehalf  ReservationType = "BEHALF"
)

// Space is one node of the physical location tree. Spaces are administered
// externally; this module only reads them.
type Space struct {
	ID       int64
	Name     string
	ParentID *int64
}

// Resource is a shareable asset attachable to reservation units, outside the
// space tree.
type Resource struct {
	ID   int64
	Name string
}

// ReservationUnit is a bookable entity. Durations of zero mean "not set" for
// the optional min/max fields.
type ReservationUnit struct {
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

// Reservation is a booking made against one or more reservation units. Nil
// buffers fall back to the unit defaults; whole-day buffer stretching is
// resolved by the mutation layer before the reservation is stored.
type Reservation struct {
	ID               int64
	BeginsAt         time.Time
	EndsAt           time.Time
	BufferTimeBefore *time.Duration
	BufferTimeAfter  *time.Duration
	State            ReservationState
	Type             ReservationType
	UnitIDs          []int64
}

// HierarchyRow is one row of the derived reservation-unit closure table.
type HierarchyRow struct {
	UnitID         int64
	RelatedUnitIDs []int64
}

// AffectingTimeSpan is one row of the derived blocking-interval table: the
// buffered interval of an active reservation plus every reservation unit it
// blocks through the hierarchy closure.
type AffectingTimeSpan struct {
	ReservationID   int64
	BufferedStart   time.Time
	BufferedEnd     time.Time
	IsBlocking      bool
	AffectedUnitIDs []int64
}

// Span returns the buffered interval of the row.
func (a AffectingTimeSpan) Span() interval.TimeSpan {
	return interval.TimeSpan{Start: a.BufferedStart, End: a.BufferedEnd}
}

// OriginHaukiResource tracks the external opening-hours provider state for
// one physical resource.
type OriginHaukiResource struct {
	ID                int64
	OpeningHoursHash  string
	LatestFetchedDate *time.Time
}

// ReservableTimeSpan is one open interval sourced from the provider.
type ReservableTimeSpan struct {
	ResourceID int64
	Start      time.Time
	End        time.Time
}

// Span returns the open interval of the row.
func (r ReservableTimeSpan) Span() interval.TimeSpan {
	return interval.TimeSpan{Start: r.Start, End: r.End}
}
