package scheduler

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/domain"
	"github.com/hamed0406/sitemonitor/internal/probe"
)

// SiteStatus is the last observation of a running loop.
type SiteStatus struct {
	SiteID     domain.SiteID `json:"site_id"`
	URL        string        `json:"url"`
	Reachable  bool          `json:"reachable"`
	StatusCode int           `json:"status_code,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	LatencyMS  float64       `json:"latency_ms"`
	CheckedAt  time.Time     `json:"checked_at"`
	Checks     int           `json:"checks"`
	Failures   int           `json:"failures"`
}

// runSite checks immediately, then sleeps the site's interval after each
// check completes. A loop that replaces an earlier one for the same site
// first waits for that loop to exit, then waits out whatever remains of the
// interval since its last check. Checks for one site never overlap.
func (s *Scheduler) runSite(ctx context.Context, job *siteJob) {
	defer s.wg.Done()
	defer close(job.done)

	if prev := job.prev; prev != nil {
		// not interruptible: a cancelled loop still closes done only once
		// the check it inherited has finished
		<-prev.done
		job.lastStart = prev.lastStart
		job.prev = nil
	}

	interval := job.site.Interval(s.opts.FrequencyUnit)
	var delay time.Duration
	if !job.lastStart.IsZero() {
		delay = max(0, interval-time.Since(job.lastStart))
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		// disable may have raced the timer
		if ctx.Err() != nil {
			return
		}
		s.checkOnce(ctx, job)
		timer.Reset(interval)
	}
}

func (s *Scheduler) checkOnce(ctx context.Context, job *siteJob) {
	site := job.site
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("site_check_panic",
				zap.Int64("site_id", int64(site.ID)),
				zap.String("loop_id", job.id),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return // cancelled while waiting for a slot
	}
	defer s.sem.Release(1)

	job.lastStart = time.Now()
	// in-flight checks survive cancellation and finish on their own deadline
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.CheckTimeout)
	out := s.checker.Check(cctx, site.URL)
	cancel()

	checkedAt := s.now().In(s.opts.Location)
	s.setStatus(site, out, checkedAt)

	if out.Reachable {
		s.logger.Debug("site_up",
			zap.Int64("site_id", int64(site.ID)),
			zap.String("url", site.URL),
			zap.Int("status", out.StatusCode),
			zap.Float64("latency_ms", out.LatencyMS),
		)
		return
	}

	s.logger.Info("site_down",
		zap.Int64("site_id", int64(site.ID)),
		zap.String("url", site.URL),
		zap.Int("status", out.StatusCode),
		zap.String("reason", out.Reason),
		zap.String("message", out.Message),
	)

	wctx, wcancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.WriteTimeout)
	defer wcancel()
	if err := s.ledger.Record(wctx, site.ID, checkedAt); err != nil {
		// dropped; the next failing check records again
		s.logger.Warn("ledger_record_error",
			zap.Int64("site_id", int64(site.ID)),
			zap.String("down_at", domain.FormatTimestamp(checkedAt)),
			zap.Error(err),
		)
	}
}

func (s *Scheduler) setStatus(site domain.Site, out probe.Result, at time.Time) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	st := s.status[site.ID]
	st.SiteID = site.ID
	st.URL = site.URL
	st.Reachable = out.Reachable
	st.StatusCode = out.StatusCode
	st.Reason = out.Reason
	st.LatencyMS = out.LatencyMS
	st.CheckedAt = at
	st.Checks++
	if !out.Reachable {
		st.Failures++
	}
	s.status[site.ID] = st
}

func (s *Scheduler) clearStatus(id domain.SiteID) {
	s.statusMu.Lock()
	delete(s.status, id)
	s.statusMu.Unlock()
}

// Snapshot returns the last observation for every site that has been
// checked by a still-running loop, ordered by site id.
func (s *Scheduler) Snapshot() []SiteStatus {
	active := s.Active()
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	out := make([]SiteStatus, 0, len(active))
	for _, id := range active {
		if st, ok := s.status[id]; ok {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SiteID < out[j].SiteID })
	return out
}
