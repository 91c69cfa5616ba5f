package persistence

import (
	"context"
	"time"

	"github.com/example/reservation-availability/internal/interval"
)

// TopologyRepository stores spaces, resources and reservation units. Writes
// exist for the administration tooling and fixtures; the availability engine
// only reads.
type TopologyRepository interface {
	UpsertSpace(ctx context.Context, space Space) error
	ListSpaces(ctx context.Context) ([]Space, error)
	UpsertResource(ctx context.Context, resource Resource) error
	ListResources(ctx context.Context) ([]Resource, error)
	UpsertReservationUnit(ctx context.Context, unit ReservationUnit) error
	GetReservationUnit(ctx context.Context, id int64) (ReservationUnit, error)
	GetReservationUnits(ctx context.Context, ids []int64) ([]ReservationUnit, error)
	ListReservationUnits(ctx context.Context) ([]ReservationUnit, error)
}

// ReservationRepository stores reservations and their unit attachments.
type ReservationRepository interface {
	UpsertReservation(ctx context.Context, reservation Reservation) error
	DeleteReservation(ctx context.Context, id int64) error
	// ListActiveReservations returns reservations in an active state whose
	// buffered interval ends at or after the given horizon.
	ListActiveReservations(ctx context.Context, horizon time.Time) ([]Reservation, error)
}

// HierarchyRepository stores the derived reservation-unit closure table.
// ReplaceAll swaps the whole table in one transaction so readers never
// observe a half-rebuilt closure.
type HierarchyRepository interface {
	ReplaceAll(ctx context.Context, rows []HierarchyRow) error
	RelatedUnits(ctx context.Context, unitID int64) ([]int64, error)
	RelatedUnitsBatch(ctx context.Context, unitIDs []int64) (map[int64][]int64, error)
}

// AffectingTimeSpanRepository stores the derived blocking-interval table,
// rebuilt in full after reservation writes.
type AffectingTimeSpanRepository interface {
	ReplaceAll(ctx context.Context, spans []AffectingTimeSpan) error
	// ListOverlapping returns spans whose buffered interval overlaps the
	// window and whose affected set intersects the given unit ids.
	ListOverlapping(ctx context.Context, unitIDs []int64, window interval.TimeSpan) ([]AffectingTimeSpan, error)
	ListAll(ctx context.Context) ([]AffectingTimeSpan, error)
}

// HaukiRepository stores external provider linkage and the cached open
// intervals per physical resource.
type HaukiRepository interface {
	UpsertOriginResource(ctx context.Context, resource OriginHaukiResource) error
	GetOriginResource(ctx context.Context, id int64) (OriginHaukiResource, error)
	ListOriginResources(ctx context.Context) ([]OriginHaukiResource, error)
	// ReplaceUpcomingSpans applies the hash-change sequence in one
	// transaction: spans starting at or after today are deleted, a span
	// straddling today is truncated to end at today, the fresh spans are
	// inserted, and the resource hash and fetch date are updated. Spans fully
	// in the past are retained untouched.
	ReplaceUpcomingSpans(ctx context.Context, resourceID int64, today time.Time, hash string, fetchedDate time.Time, spans []ReservableTimeSpan) error
	ListSpansOverlapping(ctx context.Context, resourceID int64, window interval.TimeSpan) ([]ReservableTimeSpan, error)
}
