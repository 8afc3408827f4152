package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/domain"
	"github.com/hamed0406/sitemonitor/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// RequiredTables must exist before the monitor may start.
var RequiredTables = []string{"sites", "downtime"}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sites (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	name      TEXT,
	purpose   TEXT,
	url       TEXT,
	frequency INTEGER,
	enabled   INTEGER
);

CREATE TABLE IF NOT EXISTS downtime (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	site_id INTEGER,
	down_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_downtime_site_time ON downtime (site_id, down_at);
`

type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens (or creates) the database file at path. It does not create
// tables; call Migrate for that.
func Open(path string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single connection serialises writers from concurrent site loops.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the tables and index if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	s.log.Info("sqlite_schema_ready")
	return nil
}

func (s *Store) VerifySchema(ctx context.Context) error {
	var errs error
	for _, table := range RequiredTables {
		var n int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
		if err != nil {
			return fmt.Errorf("inspect schema: %w", err)
		}
		if n == 0 {
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
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sites (name, purpose, url, frequency, enabled) VALUES (?, ?, ?, ?, ?)`,
		site.Name, site.Purpose, site.URL, site.Frequency, boolToInt(site.Enabled))
	if err != nil {
		return fmt.Errorf("insert site: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert site: %w", err)
	}
	site.ID = domain.SiteID(id)
	return nil
}

// SetEnabled flips a site's enabled flag.
func (s *Store) SetEnabled(ctx context.Context, id domain.SiteID, enabled bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sites SET enabled = ? WHERE id = ?`, boolToInt(enabled), int64(id))
	if err != nil {
		return fmt.Errorf("update site: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("site %d: %w", id, repo.ErrNotFound)
	}
	return nil
}

func (s *Store) GetSite(ctx context.Context, id domain.SiteID) (*domain.Site, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, purpose, url, frequency, enabled FROM sites WHERE id = ?`, int64(id))
	site, err := scanSite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("site %d: %w", id, repo.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}
	return &site, nil
}

func (s *Store) ListSites(ctx context.Context) ([]domain.Site, error) {
	return s.querySites(ctx, `SELECT id, name, purpose, url, frequency, enabled FROM sites ORDER BY id`)
}

func (s *Store) ListEnabledSites(ctx context.Context) ([]domain.Site, error) {
	return s.querySites(ctx, `SELECT id, name, purpose, url, frequency, enabled FROM sites WHERE enabled = 1 ORDER BY id`)
}

func (s *Store) querySites(ctx context.Context, q string) ([]domain.Site, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var out []domain.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		out = append(out, site)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSite(sc scanner) (domain.Site, error) {
	var (
		site             domain.Site
		id               int64
		name, purpose    sql.NullString
		url              sql.NullString
		frequency, flags sql.NullInt64
	)
	if err := sc.Scan(&id, &name, &purpose, &url, &frequency, &flags); err != nil {
		return site, err
	}
	site.ID = domain.SiteID(id)
	site.Name = name.String
	site.Purpose = purpose.String
	site.URL = url.String
	site.Frequency = int(frequency.Int64)
	site.Enabled = flags.Int64 != 0
	return site, nil
}

// ---- Ledger ----

func (s *Store) Record(ctx context.Context, siteID domain.SiteID, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO downtime (site_id, down_at) VALUES (?, ?)`,
		int64(siteID), domain.FormatTimestamp(at))
	if err != nil {
		return fmt.Errorf("insert downtime: %w", err)
	}
	return nil
}

func (s *Store) DowntimeDates(ctx context.Context, siteID domain.SiteID, since time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT substr(down_at, 1, 10)
  FROM downtime
 WHERE site_id = ? AND down_at >= ?
 ORDER BY 1`, int64(siteID), domain.FormatTimestamp(since))
	if err != nil {
		return nil, fmt.Errorf("downtime dates: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		out = append(out, strings.TrimSpace(d))
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
