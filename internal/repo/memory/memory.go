package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/sitemonitor/internal/domain"
	"github.com/hamed0406/sitemonitor/internal/repo"
)

type downtimeRow struct {
	siteID domain.SiteID
	downAt string
}

// Store keeps sites and downtime rows in process memory. down_at is kept as
// text, exactly as the SQL stores write it.
type Store struct {
	mu       sync.RWMutex
	nextID   domain.SiteID
	sites    map[domain.SiteID]domain.Site
	downtime []downtimeRow
}

func New() *Store {
	return &Store{
		sites:    make(map[domain.SiteID]domain.Site),
		downtime: make([]downtimeRow, 0, 128),
	}
}

func (m *Store) Close() error { return nil }

// VerifySchema always succeeds; there is no schema to lose.
func (m *Store) VerifySchema(ctx context.Context) error { return nil }

// ---- SiteStore ----

func (m *Store) AddSite(ctx context.Context, s *domain.Site) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	m.sites[s.ID] = *s
	return nil
}

// UpdateSite replaces a stored site. Used by tests to flip enabled/frequency.
func (m *Store) UpdateSite(ctx context.Context, s domain.Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sites[s.ID]; !ok {
		return fmt.Errorf("site %d: %w", s.ID, repo.ErrNotFound)
	}
	m.sites[s.ID] = s
	return nil
}

func (m *Store) GetSite(ctx context.Context, id domain.SiteID) (*domain.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sites[id]
	if !ok {
		return nil, fmt.Errorf("site %d: %w", id, repo.ErrNotFound)
	}
	return &s, nil
}

func (m *Store) ListSites(ctx context.Context) ([]domain.Site, error) {
	return m.list(func(domain.Site) bool { return true }), nil
}

func (m *Store) ListEnabledSites(ctx context.Context) ([]domain.Site, error) {
	return m.list(func(s domain.Site) bool { return s.Enabled }), nil
}

func (m *Store) list(keep func(domain.Site) bool) []domain.Site {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Site, 0, len(m.sites))
	for _, s := range m.sites {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---- Ledger ----

func (m *Store) Record(ctx context.Context, siteID domain.SiteID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downtime = append(m.downtime, downtimeRow{siteID: siteID, downAt: domain.FormatTimestamp(at)})
	return nil
}

func (m *Store) DowntimeDates(ctx context.Context, siteID domain.SiteID, since time.Time) ([]string, error) {
	cutoff := domain.FormatTimestamp(since)
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, r := range m.downtime {
		if r.siteID != siteID || r.downAt < cutoff {
			continue
		}
		seen[r.downAt[:len(domain.DateLayout)]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

// EventCount reports how many downtime rows exist for siteID.
func (m *Store) EventCount(siteID domain.SiteID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.downtime {
		if r.siteID == siteID {
			n++
		}
	}
	return n
}
