package repo

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

var (
	// ErrNotFound is returned when a site id has no row.
	ErrNotFound = errors.New("not found")
	// ErrSchemaMissing means a required table is absent; the process must not
	// start monitoring against such a store.
	ErrSchemaMissing = errors.New("schema missing")
)

// Ports (interfaces). Each adapter under repo/ implements them.
type SiteStore interface {
	ListEnabledSites(ctx context.Context) ([]domain.Site, error)
	ListSites(ctx context.Context) ([]domain.Site, error)
	GetSite(ctx context.Context, id domain.SiteID) (*domain.Site, error)
	// AddSite validates s and assigns s.ID.
	AddSite(ctx context.Context, s *domain.Site) error
}

// Ledger is the append-only downtime record.
type Ledger interface {
	Record(ctx context.Context, siteID domain.SiteID, at time.Time) error
	// DowntimeDates returns distinct "YYYY-MM-DD" dates, ascending, with at
	// least one event at or after since. since is compared in its own location.
	DowntimeDates(ctx context.Context, siteID domain.SiteID, since time.Time) ([]string, error)
}

type SchemaVerifier interface {
	VerifySchema(ctx context.Context) error
}

// Store is everything a backing database provides.
type Store interface {
	SiteStore
	Ledger
	SchemaVerifier
	Close() error
}
