package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"bitbucket.org/mmdatafocus/retailcheck_backend/config"
)

// Lists the currently held run locks and their remaining TTLs. Read-only ops
// tool for diagnosing stuck slots.
func main() {
	pattern := flag.String("pattern", "lock:run:*", "Redis key pattern to scan")
	flag.Parse()

	config.ConnectRedisWithRetry()

	keys, err := config.ScanRedisKeys(*pattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		os.Exit(1)
	}
	if len(keys) == 0 {
		fmt.Println("no locks held")
		return
	}

	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tTTL")
	for _, k := range names {
		fmt.Fprintf(w, "%s\t%s\n", k, keys[k])
	}
	w.Flush()
}
