package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/hamed0406/sitemonitor/internal/domain"
	"github.com/hamed0406/sitemonitor/internal/probe"
	"github.com/hamed0406/sitemonitor/internal/repo"
)

type Options struct {
	RescanInterval time.Duration  // how often the store is re-read; default 10s
	CheckTimeout   time.Duration  // per-probe deadline; default 10s
	WriteTimeout   time.Duration  // per ledger insert; default 5s
	MaxConcurrent  int            // probes in flight across all sites; default 32
	FrequencyUnit  time.Duration  // length of one frequency step; default time.Second
	Location       *time.Location // zone used for down_at; default time.Local
}

func (o Options) withDefaults() Options {
	if o.RescanInterval <= 0 {
		o.RescanInterval = 10 * time.Second
	}
	if o.CheckTimeout <= 0 {
		o.CheckTimeout = probe.DefaultTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.MaxConcurrent < 1 {
		o.MaxConcurrent = 32
	}
	if o.FrequencyUnit <= 0 {
		o.FrequencyUnit = time.Second
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// Scheduler keeps one independent check loop per enabled site and reconciles
// the set of loops with the store on every rescan.
type Scheduler struct {
	logger  *zap.Logger
	sites   repo.SiteStore
	ledger  repo.Ledger
	checker probe.Checker
	opts    Options
	sem     *semaphore.Weighted
	now     func() time.Time

	root   context.Context
	cancel context.CancelFunc
	cron   *cron.Cron
	wg     sync.WaitGroup

	syncMu sync.Mutex // one reconcile at a time
	mu     sync.Mutex
	jobs   map[domain.SiteID]*siteJob
	last   map[domain.SiteID]*siteJob // newest loop per site, running or not

	statusMu sync.RWMutex
	status   map[domain.SiteID]SiteStatus

	stopOnce sync.Once
}

type siteJob struct {
	id     string
	site   domain.Site
	cancel context.CancelFunc
	done   chan struct{}

	// prev is the loop this one replaced. lastStart is owned by the loop
	// goroutine and read by its successor only after done is closed.
	prev      *siteJob
	lastStart time.Time
}

func New(
	logger *zap.Logger,
	sites repo.SiteStore,
	ledger repo.Ledger,
	checker probe.Checker,
	opts Options,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	root, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger:  logger.With(zap.String("run_id", uuid.NewString())),
		sites:   sites,
		ledger:  ledger,
		checker: checker,
		opts:    opts,
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		now:     time.Now,
		root:    root,
		cancel:  cancel,
		jobs:    make(map[domain.SiteID]*siteJob),
		last:    make(map[domain.SiteID]*siteJob),
		status:  make(map[domain.SiteID]SiteStatus),
	}
}

// Start runs an immediate rescan and then one every RescanInterval. The
// scheduler stops when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	spec := fmt.Sprintf("@every %s", s.opts.RescanInterval)
	if _, err := c.AddFunc(spec, func() { _ = s.Sync(s.root) }); err != nil {
		return fmt.Errorf("schedule rescan: %w", err)
	}
	s.cron = c
	context.AfterFunc(ctx, s.Stop)

	s.logger.Info("scheduler_started",
		zap.Duration("rescan_interval", s.opts.RescanInterval),
		zap.Duration("check_timeout", s.opts.CheckTimeout),
		zap.Int("max_concurrent", s.opts.MaxConcurrent),
		zap.String("location", s.opts.Location.String()),
	)
	_ = s.Sync(s.root)
	c.Start()
	return nil
}

// Stop halts rescans, cancels every site loop and waits for them to return.
// A check already in flight is allowed to finish and record its result.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cron != nil {
			<-s.cron.Stop().Done()
		}
		s.syncMu.Lock()
		s.cancel()
		s.mu.Lock()
		for id, job := range s.jobs {
			job.cancel()
			delete(s.jobs, id)
		}
		s.mu.Unlock()
		s.syncMu.Unlock()

		s.wg.Wait()
		s.logger.Info("scheduler_stopped")
	})
}

// Sync reconciles running loops with the enabled sites in the store. A store
// error skips the cycle and leaves existing loops untouched.
func (s *Scheduler) Sync(ctx context.Context) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	if s.root.Err() != nil {
		return nil
	}

	sites, err := s.sites.ListEnabledSites(ctx)
	if err != nil {
		s.logger.Warn("scheduler_scan_error", zap.Error(err))
		return fmt.Errorf("list enabled sites: %w", err)
	}

	want := make(map[domain.SiteID]domain.Site, len(sites))
	for _, site := range sites {
		if !site.Enabled {
			continue
		}
		if err := site.Validate(); err != nil {
			s.logger.Warn("scheduler_invalid_site",
				zap.Int64("site_id", int64(site.ID)),
				zap.String("url", site.URL),
				zap.Error(err),
			)
			continue
		}
		want[site.ID] = site
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var started, stopped int
	for id, job := range s.jobs {
		next, ok := want[id]
		if ok && next.URL == job.site.URL && next.Frequency == job.site.Frequency {
			continue
		}
		job.cancel()
		delete(s.jobs, id)
		s.clearStatus(id)
		stopped++
		s.logger.Info("site_loop_stopped",
			zap.Int64("site_id", int64(id)),
			zap.String("loop_id", job.id),
			zap.Bool("still_enabled", ok),
		)
	}
	for id, site := range want {
		if _, ok := s.jobs[id]; ok {
			continue
		}
		s.startLocked(site)
		started++
	}
	s.pruneLocked()

	s.logger.Debug("scheduler_synced",
		zap.Int("enabled", len(want)),
		zap.Int("started", started),
		zap.Int("stopped", stopped),
	)
	return nil
}

func (s *Scheduler) startLocked(site domain.Site) {
	ctx, cancel := context.WithCancel(s.root)
	job := &siteJob{
		id:     uuid.NewString(),
		site:   site,
		cancel: cancel,
		done:   make(chan struct{}),
		prev:   s.last[site.ID],
	}
	s.jobs[site.ID] = job
	s.last[site.ID] = job

	s.wg.Add(1)
	go s.runSite(ctx, job)

	s.logger.Info("site_loop_started",
		zap.Int64("site_id", int64(site.ID)),
		zap.String("loop_id", job.id),
		zap.String("url", site.URL),
		zap.Duration("interval", site.Interval(s.opts.FrequencyUnit)),
	)
}

// pruneLocked forgets stopped loops whose last check is older than their
// interval, so a re-enabled site has nothing left to wait for.
func (s *Scheduler) pruneLocked() {
	for id, job := range s.last {
		if _, running := s.jobs[id]; running {
			continue
		}
		select {
		case <-job.done:
			if time.Since(job.lastStart) >= job.site.Interval(s.opts.FrequencyUnit) {
				delete(s.last, id)
			}
		default:
		}
	}
}

// Active returns the ids of sites with a running loop, ascending.
func (s *Scheduler) Active() []domain.SiteID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SiteID, 0, len(s.jobs))
	for id := range s.jobs {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
