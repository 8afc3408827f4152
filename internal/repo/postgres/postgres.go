package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/domain"
	"github.com/hamed0406/sitemonitor/internal/repo"
)

var _ repo.Store = (*Store)(nil)

var requiredTables = []string{"sites", "downtime"}

type Store struct {
	pool *pgxpool.Pool
	dsn  string
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{pool: pool, dsn: dsn, log: log}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) VerifySchema(ctx context.Context) error {
	var errs error
	for _, table := range requiredTables {
		var ok bool
		if err := s.pool.QueryRow(ctx, `SELECT to_regclass($1::text) IS NOT NULL`, table).Scan(&ok); err != nil {
			return fmt.Errorf("inspect schema: %w", err)
		}
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("table %q: %w", table, repo.ErrSchemaMissing))
		}
	}
	return errs
}

// ---- SiteStore ----

func (s *Store) AddSite(ctx context.Context, site *domain.Site) error {
	if err := site.Validate(); err != nil {
		return err
	}
	enabled := 0
	if site.Enabled {
		enabled = 1
	}
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sites (name, purpose, url, frequency, enabled)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		site.Name, site.Purpose, site.URL, site.Frequency, enabled,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert site: %w", err)
	}
	site.ID = domain.SiteID(id)
	return nil
}

func (s *Store) GetSite(ctx context.Context, id domain.SiteID) (*domain.Site, error) {
	rows, err := s.pool.Query(ctx, selectSites+` WHERE id = $1`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}
	site, err := pgx.CollectExactlyOneRow(rows, scanSite)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("site %d: %w", id, repo.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}
	return &site, nil
}

func (s *Store) ListSites(ctx context.Context) ([]domain.Site, error) {
	return s.querySites(ctx, selectSites+` ORDER BY id`)
}

func (s *Store) ListEnabledSites(ctx context.Context) ([]domain.Site, error) {
	return s.querySites(ctx, selectSites+` WHERE enabled = 1 ORDER BY id`)
}

const selectSites = `SELECT id, COALESCE(name, ''), COALESCE(purpose, ''), COALESCE(url, ''),
       COALESCE(frequency, 0), COALESCE(enabled, 0) <> 0
  FROM sites`

func (s *Store) querySites(ctx context.Context, q string) ([]domain.Site, error) {
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanSite)
	if err != nil {
		return nil, fmt.Errorf("scan site: %w", err)
	}
	return out, nil
}

func scanSite(row pgx.CollectableRow) (domain.Site, error) {
	var (
		site domain.Site
		id   int64
	)
	err := row.Scan(&id, &site.Name, &site.Purpose, &site.URL, &site.Frequency, &site.Enabled)
	site.ID = domain.SiteID(id)
	return site, err
}

// ---- Ledger ----

func (s *Store) Record(ctx context.Context, siteID domain.SiteID, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO downtime (site_id, down_at) VALUES ($1, $2)`,
		int64(siteID), domain.FormatTimestamp(at),
	)
	if err != nil {
		return fmt.Errorf("insert downtime: %w", err)
	}
	return nil
}

func (s *Store) DowntimeDates(ctx context.Context, siteID domain.SiteID, since time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
SELECT DISTINCT substr(down_at, 1, 10) AS day
  FROM downtime
 WHERE site_id = $1 AND down_at >= $2
 ORDER BY day`, int64(siteID), domain.FormatTimestamp(since))
	if err != nil {
		return nil, fmt.Errorf("downtime dates: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan date: %w", err)
	}
	return out, nil
}
