package rediscache

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/domain"
	"github.com/hamed0406/sitemonitor/internal/repo"
)

var _ repo.Ledger = (*Ledger)(nil)

// WarmTTL bounds how long a cached day-set is trusted before it is rebuilt
// from the backing ledger.
const WarmTTL = time.Hour

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 5 * time.Second
	opts.WriteTimeout = 5 * time.Second
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Ledger decorates a durable ledger with a per-site Redis set of downtime
// dates. Writes always go to the inner ledger first; Redis is best effort.
type Ledger struct {
	inner repo.Ledger
	rdb   *redis.Client
	log   *zap.Logger
}

func New(inner repo.Ledger, rdb *redis.Client, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{inner: inner, rdb: rdb, log: log}
}

func daysKey(id domain.SiteID) string { return fmt.Sprintf("downtime:site:%d:days", id) }

// warmMarker is stored alongside the dates. A set without it was never
// backfilled or lost writes, and is rebuilt from the inner ledger.
const warmMarker = "warm"

func (l *Ledger) Record(ctx context.Context, siteID domain.SiteID, at time.Time) error {
	if err := l.inner.Record(ctx, siteID, at); err != nil {
		return err
	}
	day := at.Format(domain.DateLayout)
	if err := l.rdb.SAdd(ctx, daysKey(siteID), day).Err(); err != nil {
		l.log.Warn("downtime_cache_write_error", zap.Int64("site_id", int64(siteID)), zap.Error(err))
		if err := l.rdb.Del(ctx, daysKey(siteID)).Err(); err != nil {
			l.log.Warn("downtime_cache_invalidate_error", zap.Int64("site_id", int64(siteID)), zap.Error(err))
		}
	}
	return nil
}

// DowntimeDates serves from Redis when the site's set carries the warm
// marker. since is compared at day granularity on the cached path.
func (l *Ledger) DowntimeDates(ctx context.Context, siteID domain.SiteID, since time.Time) ([]string, error) {
	cutoff := since.Format(domain.DateLayout)

	days, err := l.rdb.SMembers(ctx, daysKey(siteID)).Result()
	if err != nil {
		l.log.Warn("downtime_cache_read_error", zap.Int64("site_id", int64(siteID)), zap.Error(err))
	} else if slices.Contains(days, warmMarker) {
		return filterSince(days, cutoff), nil
	}

	all, err := l.inner.DowntimeDates(ctx, siteID, time.Time{})
	if err != nil {
		return nil, err
	}
	l.backfill(ctx, siteID, all)
	return filterSince(all, cutoff), nil
}

func (l *Ledger) backfill(ctx context.Context, siteID domain.SiteID, days []string) {
	members := make([]interface{}, 0, len(days)+1)
	for _, d := range days {
		members = append(members, d)
	}
	members = append(members, warmMarker)
	_, err := l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, daysKey(siteID), members...)
		p.Expire(ctx, daysKey(siteID), WarmTTL)
		return nil
	})
	if err != nil {
		l.log.Warn("downtime_cache_backfill_error", zap.Int64("site_id", int64(siteID)), zap.Error(err))
	}
}

func filterSince(days []string, cutoff string) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		if d != warmMarker && d >= cutoff {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}
