// cli probes URLs once, the same way the monitor does, and prints the
// classification. Exit status is 1 when any URL is unreachable.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hamed0406/sitemonitor/internal/probe"
)

func main() {
	timeout := flag.Duration("timeout", probe.DefaultTimeout, "per-request timeout")
	flag.Parse()

	targets := flag.Args()
	if len(targets) == 0 {
		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Enter a site URL to check (e.g., https://example.com): ")
		raw, _ := reader.ReadString('\n')
		targets = []string{raw}
	}

	chk := probe.NewHTTPChecker(*timeout)
	down := 0
	for _, raw := range targets {
		target := strings.TrimSpace(raw)
		if target == "" {
			continue
		}
		if !strings.Contains(target, "://") {
			target = "https://" + target
		}

		ctx, cancel := context.WithTimeout(context.Background(), *timeout+time.Second)
		out := chk.Check(ctx, target)
		cancel()

		if out.Reachable {
			fmt.Printf("UP    %s  %d  %.1fms\n", target, out.StatusCode, out.LatencyMS)
			continue
		}
		down++
		fmt.Printf("DOWN  %s  reason=%s  %s\n", target, out.Reason, out.Message)
	}
	if down > 0 {
		os.Exit(1)
	}
}
