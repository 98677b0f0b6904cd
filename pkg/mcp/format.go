package mcp

import (
	"fmt"
	"strings"

	"github.com/pario-ai/respcache/pkg/models"
)

const tableTime = "2006-01-02 15:04:05"

func formatResponses(responses []string) string {
	if len(responses) == 1 {
		return responses[0]
	}
	var b strings.Builder
	for i, r := range responses {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%d] %s\n", i+1, r)
	}
	return b.String()
}

// formatStats renders per-model summaries as a text table followed by totals.
func formatStats(totals models.CacheStats, summaries []models.ModelSummary) string {
	var b strings.Builder
	if len(summaries) == 0 {
		b.WriteString("No cache entries found.\n")
	} else {
		fmt.Fprintf(&b, "%-25s %8s  %-19s  %-19s  %-19s  %-19s\n",
			"Model", "Entries", "First Created", "Last Created", "First Access", "Last Access")
		b.WriteString(strings.Repeat("-", 118) + "\n")
		for _, s := range summaries {
			fmt.Fprintf(&b, "%-25s %8d  %-19s  %-19s  %-19s  %-19s\n",
				s.ModelID, s.Entries,
				s.EarliestCreated.Format(tableTime), s.LatestCreated.Format(tableTime),
				s.EarliestAccess.Format(tableTime), s.LatestAccess.Format(tableTime))
		}
	}

	lookups := totals.Hits + totals.Misses
	hitRate := float64(0)
	if lookups > 0 {
		hitRate = float64(totals.Hits) / float64(lookups) * 100
	}
	fmt.Fprintf(&b, "\nEntries:  %d\nStrings:  %d\nHits:     %d\nMisses:   %d\nHit Rate: %.1f%%\n",
		totals.Entries, totals.Strings, totals.Hits, totals.Misses, hitRate)
	return b.String()
}

func formatCleared(n int64) string {
	if n == 1 {
		return "Cleared 1 cache entry."
	}
	return fmt.Sprintf("Cleared %d cache entries.", n)
}
