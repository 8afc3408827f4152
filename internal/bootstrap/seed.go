package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/domain"
	"github.com/hamed0406/sitemonitor/internal/repo"
)

// Seed adds every site whose URL is not registered yet and returns how many
// were added. Existing rows are never modified.
func Seed(ctx context.Context, store repo.SiteStore, sites []domain.Site, log *zap.Logger) (int, error) {
	existing, err := store.ListSites(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sites: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		known[s.URL] = struct{}{}
	}

	added := 0
	for _, s := range sites {
		if _, ok := known[s.URL]; ok {
			continue
		}
		site := s
		if err := store.AddSite(ctx, &site); err != nil {
			return added, fmt.Errorf("seed %s: %w", s.URL, err)
		}
		known[site.URL] = struct{}{}
		added++
		log.Info("site_seeded",
			zap.Int64("site_id", int64(site.ID)),
			zap.String("name", site.Name),
			zap.String("url", site.URL),
			zap.Int("frequency", site.Frequency),
			zap.Bool("enabled", site.Enabled),
		)
	}
	return added, nil
}
