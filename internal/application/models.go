package application

import "time"

// SearchParams are the inputs to one batch first-reservable-time search.
// Dates are civil dates interpreted in the service's location; times of day
// are offsets from local midnight. FilterDateEnd is inclusive.
type SearchParams struct {
	UnitIDs []int64

	FilterDateStart *time.Time
	FilterDateEnd   *time.Time
	FilterTimeStart *time.Duration
	FilterTimeEnd   *time.Duration

	// MinimumDuration of zero falls back to the unit's own minimum.
	MinimumDuration time.Duration

	ShowOnlyReservable bool

	// CacheKey identifies the computed result set across paginated calls. It
	// must be derived from every filter argument except pagination; an empty
	// key disables caching for the call.
	CacheKey string

	Offset int
	// Limit of zero means no limit.
	Limit int
}

// UnitAvailability is the per-unit annotation produced by the search. The
// pair is exclusive: a closed unit never carries a first reservable time.
type UnitAvailability struct {
	UnitID          int64      `json:"unit_id"`
	IsClosed        bool       `json:"is_closed"`
	FirstReservable *time.Time `json:"first_reservable,omitempty"`
}
