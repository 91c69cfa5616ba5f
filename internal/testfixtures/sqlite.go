package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/reservation-availability/internal/persistence"
	"github.com/example/reservation-availability/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// database for integration-style tests.
type SQLiteHarness struct {
	DB           *sqlite.DB
	Topology     persistence.TopologyRepository
	Reservations persistence.ReservationRepository
	Hierarchy    persistence.HierarchyRepository
	Affecting    persistence.AffectingTimeSpanRepository
	Hauki        persistence.HaukiRepository
}

// NewSQLiteHarness constructs a migrated SQLiteHarness on a temporary file and
// registers cleanup with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "availability.db")

	storage, err := sqlite.Open("file:" + path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = storage.Close() })

	if err := storage.Migrate(context.Background()); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	return &SQLiteHarness{
		DB:           storage,
		Topology:     sqlite.NewTopologyRepository(storage),
		Reservations: sqlite.NewReservationRepository(storage),
		Hierarchy:    sqlite.NewHierarchyRepository(storage),
		Affecting:    sqlite.NewAffectingTimeSpanRepository(storage),
		Hauki:        sqlite.NewHaukiRepository(storage),
	}
}
