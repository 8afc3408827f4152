package uptime

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/domain"
	"github.com/hamed0406/sitemonitor/internal/repo"
)

// MaxWindowDays caps a single grid request.
const MaxWindowDays = 3660

var ErrInvalidWindow = errors.New("invalid window")

type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

type Day struct {
	Date   string `json:"date"`
	Status Status `json:"status"`
}

// Grid is the day-by-day record for one site, oldest first, ending today.
type Grid struct {
	SiteID           domain.SiteID `json:"site_id"`
	WindowDays       int           `json:"window_days"`
	Days             []Day         `json:"days"`
	UptimePercentage float64       `json:"uptime_percentage"`
}

// Weeks chunks Days into groups of seven, oldest first. The last group is
// short when the window is not a multiple of seven.
func (g Grid) Weeks() [][]Day {
	out := make([][]Day, 0, (len(g.Days)+6)/7)
	for i := 0; i < len(g.Days); i += 7 {
		end := i + 7
		if end > len(g.Days) {
			end = len(g.Days)
		}
		out = append(out, g.Days[i:end])
	}
	return out
}

// Aggregator turns downtime events into status grids. It only reads.
type Aggregator struct {
	sites  repo.SiteStore
	ledger repo.Ledger
	loc    *time.Location
	log    *zap.Logger
	now    func() time.Time
}

func New(sites repo.SiteStore, ledger repo.Ledger, loc *time.Location, log *zap.Logger) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{sites: sites, ledger: ledger, loc: loc, log: log, now: time.Now}
}

// StatusGrid builds the grid for siteID over the last windowDays calendar
// days, today included. Days before the site existed count as up.
func (a *Aggregator) StatusGrid(ctx context.Context, siteID domain.SiteID, windowDays int) (Grid, error) {
	if windowDays < 0 || windowDays > MaxWindowDays {
		return Grid{}, fmt.Errorf("%w: %d days", ErrInvalidWindow, windowDays)
	}
	if _, err := a.sites.GetSite(ctx, siteID); err != nil {
		return Grid{}, err
	}
	return a.grid(ctx, siteID, windowDays)
}

func (a *Aggregator) grid(ctx context.Context, siteID domain.SiteID, windowDays int) (Grid, error) {
	g := Grid{SiteID: siteID, WindowDays: windowDays, Days: []Day{}}
	if windowDays == 0 {
		return g, nil
	}

	today := a.now().In(a.loc)
	y, m, d := today.Date()
	first := time.Date(y, m, d-(windowDays-1), 0, 0, 0, 0, a.loc)

	dates, err := a.ledger.DowntimeDates(ctx, siteID, first)
	if err != nil {
		return Grid{}, fmt.Errorf("downtime dates for site %d: %w", siteID, err)
	}
	downSet := make(map[string]struct{}, len(dates))
	for _, day := range dates {
		downSet[day] = struct{}{}
	}

	g.Days = make([]Day, windowDays)
	upDays := 0
	for i := 0; i < windowDays; i++ {
		date := time.Date(y, m, d-(windowDays-1)+i, 0, 0, 0, 0, a.loc).Format(domain.DateLayout)
		st := StatusUp
		if _, down := downSet[date]; down {
			st = StatusDown
		} else {
			upDays++
		}
		g.Days[i] = Day{Date: date, Status: st}
	}
	g.UptimePercentage = roundPercent(float64(upDays) / float64(windowDays) * 100)
	return g, nil
}

func roundPercent(v float64) float64 {
	return math.Round(v*100) / 100
}

// SiteGrid pairs a site with its grid.
type SiteGrid struct {
	Site domain.Site `json:"site"`
	Grid Grid        `json:"grid"`
}

// Overview returns a grid for every registered site, enabled or not. A site
// whose ledger read fails is logged and left out.
func (a *Aggregator) Overview(ctx context.Context, windowDays int) ([]SiteGrid, error) {
	if windowDays < 0 || windowDays > MaxWindowDays {
		return nil, fmt.Errorf("%w: %d days", ErrInvalidWindow, windowDays)
	}
	sites, err := a.sites.ListSites(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	out := make([]SiteGrid, 0, len(sites))
	for _, s := range sites {
		g, err := a.grid(ctx, s.ID, windowDays)
		if err != nil {
			a.log.Warn("uptime_grid_error", zap.Int64("site_id", int64(s.ID)), zap.Error(err))
			continue
		}
		out = append(out, SiteGrid{Site: s, Grid: g})
	}
	return out, nil
}

// ListSites passes through to the site store.
func (a *Aggregator) ListSites(ctx context.Context) ([]domain.Site, error) {
	return a.sites.ListSites(ctx)
}
