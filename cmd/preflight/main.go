// cmd/preflight/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/bootstrap"
	"github.com/hamed0406/sitemonitor/internal/config"
	"github.com/hamed0406/sitemonitor/internal/repo/rediscache"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		for _, e := range multierr.Errors(err) {
			fmt.Fprintln(os.Stderr, "✖", e)
		}
		os.Exit(1)
	}
	ok("configuration valid")
	ok("API_ADDR=" + cfg.Addr)
	ok(fmt.Sprintf("rescan every %s, check timeout %s, %d concurrent checks",
		cfg.RescanInterval, cfg.CheckTimeout, cfg.MaxConcurrent))

	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		warn("ALLOWED_ORIGINS is * (any origin may read the API).")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// verify only; preflight never creates the database or its tables
	if err := bootstrap.VerifyStore(ctx, cfg, zap.NewNop()); err != nil {
		if cfg.AutoMigrate {
			warn("store not ready (" + err.Error() + "); AUTO_MIGRATE=true will create the schema at startup.")
		} else {
			fail("store not usable: " + err.Error())
		}
	} else {
		ok("store " + cfg.StoreDriver + " reachable, schema present")
	}

	if cfg.SitesFile != "" {
		sites, err := config.LoadSites(cfg.SitesFile)
		if err != nil {
			fail("SITES_FILE: " + err.Error())
		}
		ok(fmt.Sprintf("SITES_FILE=%s (%d sites)", cfg.SitesFile, len(sites)))
	}

	if cfg.RedisURL == "" {
		warn("REDIS_URL empty; grids are read straight from the store.")
	} else if rdb, err := rediscache.Connect(ctx, cfg.RedisURL); err != nil {
		warn("REDIS_URL unreachable (" + err.Error() + "); monitor will run without the cache.")
	} else {
		ok("REDIS_URL reachable")
		_ = rdb.Close()
	}

	ok("preflight passed")
}
