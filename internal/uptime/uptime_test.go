package uptime

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/domain"
	"github.com/hamed0406/sitemonitor/internal/repo"
	"github.com/hamed0406/sitemonitor/internal/repo/memory"
)

var today = time.Date(2024, 10, 14, 15, 4, 5, 0, time.UTC)

func newTestAggregator(t *testing.T) (*Aggregator, *memory.Store, domain.Site) {
	t.Helper()
	st := memory.New()
	site := domain.Site{Name: "blog", URL: "https://blog.example", Frequency: 300, Enabled: true}
	if err := st.AddSite(context.Background(), &site); err != nil {
		t.Fatalf("AddSite: %v", err)
	}
	a := New(st, st, time.UTC, zap.NewNop())
	a.now = func() time.Time { return today }
	return a, st, site
}

func TestStatusGrid_ThreeDaysDownToday(t *testing.T) {
	ctx := context.Background()
	a, st, site := newTestAggregator(t)
	if err := st.Record(ctx, site.ID, today.Add(-time.Hour)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	g, err := a.StatusGrid(ctx, site.ID, 3)
	if err != nil {
		t.Fatalf("StatusGrid: %v", err)
	}
	want := []Day{
		{Date: "2024-10-12", Status: StatusUp},
		{Date: "2024-10-13", Status: StatusUp},
		{Date: "2024-10-14", Status: StatusDown},
	}
	if !reflect.DeepEqual(g.Days, want) {
		t.Fatalf("Days = %+v, want %+v", g.Days, want)
	}
	if g.UptimePercentage != 66.67 {
		t.Fatalf("uptime = %v, want 66.67", g.UptimePercentage)
	}
}

func TestStatusGrid_NoEventsIsFullyUp(t *testing.T) {
	a, _, site := newTestAggregator(t)
	g, err := a.StatusGrid(context.Background(), site.ID, 90)
	if err != nil {
		t.Fatalf("StatusGrid: %v", err)
	}
	if len(g.Days) != 90 {
		t.Fatalf("want 90 days, got %d", len(g.Days))
	}
	for _, d := range g.Days {
		if d.Status != StatusUp {
			t.Fatalf("day %s is %s", d.Date, d.Status)
		}
	}
	if g.UptimePercentage != 100 {
		t.Fatalf("uptime = %v, want 100", g.UptimePercentage)
	}
}

func TestStatusGrid_ConsecutiveDaysEndingToday(t *testing.T) {
	a, _, site := newTestAggregator(t)
	g, _ := a.StatusGrid(context.Background(), site.ID, 45)
	for i := 1; i < len(g.Days); i++ {
		prev, _ := time.Parse(domain.DateLayout, g.Days[i-1].Date)
		cur, _ := time.Parse(domain.DateLayout, g.Days[i].Date)
		if cur.Sub(prev) != 24*time.Hour {
			t.Fatalf("%s does not follow %s", g.Days[i].Date, g.Days[i-1].Date)
		}
	}
	if last := g.Days[len(g.Days)-1].Date; last != "2024-10-14" {
		t.Fatalf("last day %s, want today", last)
	}
}

func TestStatusGrid_ZeroWindow(t *testing.T) {
	a, _, site := newTestAggregator(t)
	g, err := a.StatusGrid(context.Background(), site.ID, 0)
	if err != nil {
		t.Fatalf("StatusGrid: %v", err)
	}
	if len(g.Days) != 0 || g.UptimePercentage != 0 {
		t.Fatalf("unexpected grid %+v", g)
	}
}

func TestStatusGrid_Errors(t *testing.T) {
	a, _, site := newTestAggregator(t)
	if _, err := a.StatusGrid(context.Background(), site.ID, -1); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("want ErrInvalidWindow, got %v", err)
	}
	if _, err := a.StatusGrid(context.Background(), 404, 7); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestStatusGrid_Idempotent(t *testing.T) {
	ctx := context.Background()
	a, st, site := newTestAggregator(t)
	_ = st.Record(ctx, site.ID, today.AddDate(0, 0, -4))
	_ = st.Record(ctx, site.ID, today.AddDate(0, 0, -4).Add(time.Minute))

	g1, _ := a.StatusGrid(ctx, site.ID, 30)
	g2, _ := a.StatusGrid(ctx, site.ID, 30)
	if !reflect.DeepEqual(g1, g2) {
		t.Fatalf("grids differ:\n%+v\n%+v", g1, g2)
	}
}

func TestStatusGrid_RoundTrip(t *testing.T) {
	ctx := context.Background()
	a, st, site := newTestAggregator(t)
	d := today.AddDate(0, 0, -10)
	_ = st.Record(ctx, site.ID, d)

	g, _ := a.StatusGrid(ctx, site.ID, 14)
	downs := 0
	for _, day := range g.Days {
		if day.Status == StatusDown {
			downs++
			if day.Date != d.Format(domain.DateLayout) {
				t.Fatalf("unexpected down day %s", day.Date)
			}
		}
	}
	if downs != 1 {
		t.Fatalf("want exactly one down day, got %d", downs)
	}

	// window covering only later dates
	g, _ = a.StatusGrid(ctx, site.ID, 10)
	for _, day := range g.Days {
		if day.Status != StatusUp {
			t.Fatalf("day %s should be up", day.Date)
		}
	}
}

func TestGrid_Weeks(t *testing.T) {
	a, _, site := newTestAggregator(t)
	g, _ := a.StatusGrid(context.Background(), site.ID, 16)
	weeks := g.Weeks()
	if len(weeks) != 3 {
		t.Fatalf("want 3 weeks, got %d", len(weeks))
	}
	if len(weeks[0]) != 7 || len(weeks[1]) != 7 || len(weeks[2]) != 2 {
		t.Fatalf("unexpected week sizes %d/%d/%d", len(weeks[0]), len(weeks[1]), len(weeks[2]))
	}
	if weeks[0][0] != g.Days[0] || weeks[2][1] != g.Days[15] {
		t.Fatal("weeks must preserve oldest-first order")
	}
}

func TestOverview_IncludesDisabledSites(t *testing.T) {
	ctx := context.Background()
	a, st, _ := newTestAggregator(t)
	off := domain.Site{Name: "old", URL: "https://old.example", Frequency: 60}
	_ = st.AddSite(ctx, &off)
	_ = st.Record(ctx, off.ID, today)

	all, err := a.Overview(ctx, 7)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("want 2 sites, got %d", len(all))
	}
	if all[1].Site.ID != off.ID || all[1].Grid.UptimePercentage != 85.71 {
		t.Fatalf("unexpected overview entry %+v", all[1])
	}
}
