package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/reservation-availability/internal/hauki"
	"github.com/example/reservation-availability/internal/interval"
	"github.com/example/reservation-availability/internal/persistence"
)

// RulesFetcher abstracts the opening-hours provider for refreshes.
type RulesFetcher interface {
	FetchRules(ctx context.Context, resourceID int64, from, until time.Time) (hauki.RuleSet, error)
}

// OpeningHoursService keeps the per-resource reservable time spans fresh and
// answers coverage and overlap queries from the cached spans.
type OpeningHoursService struct {
	store   persistence.HaukiRepository
	fetcher RulesFetcher
	loc     *time.Location

	// lookahead is the horizon threshold: once the fetched data covers less
	// than this span ahead of now, a refresh is due. fetchRange is how far
	// forward each fetch extends.
	lookahead  time.Duration
	fetchRange time.Duration

	now    func() time.Time
	logger *slog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewOpeningHoursService wires dependencies for opening-hours maintenance.
func NewOpeningHoursService(store persistence.HaukiRepository, fetcher RulesFetcher, loc *time.Location, lookahead, fetchRange time.Duration, now func() time.Time, logger *slog.Logger) *OpeningHoursService {
	if loc == nil {
		loc = time.UTC
	}
	if lookahead <= 0 {
		lookahead = 30 * 24 * time.Hour
	}
	if fetchRange <= lookahead {
		fetchRange = 3 * lookahead
	}
	if now == nil {
		now = time.Now
	}
	return &OpeningHoursService{
		store:      store,
		fetcher:    fetcher,
		loc:        loc,
		lookahead:  lookahead,
		fetchRange: fetchRange,
		now:        now,
		logger:     defaultLogger(logger),
		locks:      make(map[int64]*sync.Mutex),
	}
}

// IsReservable reports whether some single cached span fully covers the
// given interval.
func (s *OpeningHoursService) IsReservable(ctx context.Context, resourceID int64, span interval.TimeSpan) (bool, error) {
	spans, err := s.store.ListSpansOverlapping(ctx, resourceID, span)
	if err != nil {
		return false, err
	}
	for _, candidate := range spans {
		if candidate.Span().Covers(span) {
			return true, nil
		}
	}
	return false, nil
}

// Overlapping returns every cached span overlapping the window, partial
// overlaps included.
func (s *OpeningHoursService) Overlapping(ctx context.Context, resourceID int64, window interval.TimeSpan) ([]interval.TimeSpan, error) {
	rows, err := s.store.ListSpansOverlapping(ctx, resourceID, window)
	if err != nil {
		return nil, err
	}
	spans := make([]interval.TimeSpan, 0, len(rows))
	for _, row := range rows {
		spans = append(spans, row.Span())
	}
	return spans, nil
}

// RefreshIfNeeded fetches fresh rules for one resource when the cached data
// is due: empty hash, no fetch date yet, or the fetched horizon has come
// closer than the lookahead. The span replacement only runs when the
// provider's hash actually changed. A provider failure leaves the cached
// hash and spans untouched and surfaces as hauki.ErrProviderUnavailable.
func (s *OpeningHoursService) RefreshIfNeeded(ctx context.Context, resourceID int64) error {
	lock := s.lockFor(resourceID)
	lock.Lock()
	defer lock.Unlock()

	logger := serviceLogger(ctx, s.logger, "opening_hours", "refresh", "resource_id", resourceID)

	resource, err := s.store.GetOriginResource(ctx, resourceID)
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load origin resource %d: %w", resourceID, err)
	}

	now := s.now()
	if !s.shouldUpdate(resource, now) {
		return nil
	}

	today := interval.StartOfDay(now, s.loc)
	until := today.Add(s.fetchRange)

	rules, err := s.fetcher.FetchRules(ctx, resourceID, today, until)
	if err != nil {
		logger.Warn("provider fetch failed, serving cached spans", "error", err)
		return err
	}

	if rules.Hash == resource.OpeningHoursHash {
		resource.LatestFetchedDate = &until
		if err := s.store.UpsertOriginResource(ctx, resource); err != nil {
			return fmt.Errorf("advance fetch date for resource %d: %w", resourceID, err)
		}
		return nil
	}

	spans := make([]persistence.ReservableTimeSpan, 0, len(rules.Spans))
	for _, span := range rules.Spans {
		spans = append(spans, persistence.ReservableTimeSpan{ResourceID: resourceID, Start: span.Start, End: span.End})
	}
	if err := s.store.ReplaceUpcomingSpans(ctx, resourceID, today, rules.Hash, until, spans); err != nil {
		return fmt.Errorf("replace spans for resource %d: %w", resourceID, err)
	}

	logger.Info("opening hours refreshed", "spans", len(spans))
	return nil
}

// RefreshAll runs RefreshIfNeeded over every tracked resource. Provider
// failures are logged and skipped so one unreachable resource does not block
// the rest; any other failure aborts.
func (s *OpeningHoursService) RefreshAll(ctx context.Context) error {
	resources, err := s.store.ListOriginResources(ctx)
	if err != nil {
		return fmt.Errorf("list origin resources: %w", err)
	}
	for _, resource := range resources {
		if err := s.RefreshIfNeeded(ctx, resource.ID); err != nil {
			if errors.Is(err, hauki.ErrProviderUnavailable) {
				continue
			}
			return err
		}
	}
	return nil
}

func (s *OpeningHoursService) shouldUpdate(resource persistence.OriginHaukiResource, now time.Time) bool {
	if resource.OpeningHoursHash == "" {
		return true
	}
	if resource.LatestFetchedDate == nil {
		return true
	}
	return resource.LatestFetchedDate.Before(now.Add(s.lookahead))
}

func (s *OpeningHoursService) lockFor(resourceID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[resourceID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[resourceID] = lock
	}
	return lock
}
