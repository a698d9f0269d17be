package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/retailcheck_backend/config"
	"bitbucket.org/mmdatafocus/retailcheck_backend/workflow"
)

// Standalone tick loop for environments without Cloud Scheduler: drives the
// reminder and delta-alert ticks on a fixed interval.
func main() {
	interval := flag.Duration("interval", time.Minute, "Tick interval")
	once := flag.Bool("once", false, "Run a single tick and exit")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	ctx := context.Background()
	logger := config.GetLogger()

	tick := func() {
		now := time.Now()
		if err := workflow.TickReminders(ctx, now); err != nil {
			config.LogError(logger, "reminder-scheduler", "main", "reminder tick", nil, err)
		}
		if err := workflow.TickDeltaAlerts(ctx, now); err != nil {
			config.LogError(logger, "reminder-scheduler", "main", "delta alert tick", nil, err)
		}
	}

	tick()
	if *once {
		return
	}
	for range time.Tick(*interval) {
		tick()
	}
}
