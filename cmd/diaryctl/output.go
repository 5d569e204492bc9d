package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/gophdiary/internal/services"
)

func newTable(w io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	return tw
}

func printStatus(w io.Writer, label string, format string, args ...any) {
	fmt.Fprintf(w, "%s: %s\n", label, fmt.Sprintf(format, args...))
}

func printReport(w io.Writer, r services.SyncReport) {
	printStatus(w, "attempted", "%d", r.Attempted)
	printStatus(w, "scheduled", "%d", r.Scheduled)
	printStatus(w, "skipped_past", "%d", r.SkippedPast)
	printStatus(w, "failed", "%d", r.Failed)
	printStatus(w, "cancelled", "%d", r.Cancelled)
	if r.ResyncNeeded {
		printStatus(w, "resync_needed", "platform state was recovered, run diaryctl resync")
	}
	for _, err := range r.Errors {
		printStatus(w, "error", "%v", err)
	}
}

func printStats(w io.Writer, stats map[string]int) {
	for _, k := range slices.Sorted(maps.Keys(stats)) {
		printStatus(w, k, "%d", stats[k])
	}
}
