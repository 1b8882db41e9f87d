// Package render formats borough statistics for the console.
package render

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mstlaur1/montreal-score/internal/domain"
)

const boroughWidth = 45

// StatsTable writes a fixed-width table of borough statistics, slowest
// boroughs first. Ties on the median keep their alphabetical order.
func StatsTable(w io.Writer, stats []domain.BoroughStats) {
	fmt.Fprintf(w, "\n%s %s %s %s %s %s %s\n",
		padRight("Borough", boroughWidth),
		padLeft("Total", 6), padLeft("Issued", 7), padLeft("Median", 7),
		padLeft("P90", 7), padLeft("≤90d", 6), padLeft("≤120d", 6))
	fmt.Fprintln(w, strings.Repeat("-", 100))

	rows := make([]domain.BoroughStats, len(stats))
	copy(rows, stats)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].MedianProcessingDays > rows[j].MedianProcessingDays
	})

	for _, row := range rows {
		fmt.Fprintf(w, "%s %6d %7d %6.0fd %6.0fd %5.1f%% %5.1f%%\n",
			padRight(row.Borough, boroughWidth),
			row.TotalPermits,
			row.PermitsIssued,
			row.MedianProcessingDays,
			row.P90ProcessingDays,
			row.PctWithin90Days,
			row.PctWithin120Days)
	}
}

// padRight pads by rune count, not bytes. Borough names carry accents and
// the headers carry ≤, so byte-width %-45s would misalign columns.
func padRight(s string, width int) string {
	if n := width - utf8.RuneCountInString(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

func padLeft(s string, width int) string {
	if n := width - utf8.RuneCountInString(s); n > 0 {
		return strings.Repeat(" ", n) + s
	}
	return s
}
