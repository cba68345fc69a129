package notification

import (
	"fmt"
	"sort"
	"strings"

	"equity-screener/internal/candles"
	"equity-screener/internal/markethours"
	"equity-screener/internal/scan"
)

// DefaultMaxListed caps the number of hit lines in a summary alert.
const DefaultMaxListed = 50

// FromReport builds the scan-summary alert. At most maxListed hit lines
// are included (DefaultMaxListed when <= 0). The alert is a warning when
// the scan was interrupted or more than half the symbols failed.
func FromReport(rep *scan.Report, maxListed int) Alert {
	if maxListed <= 0 {
		maxListed = DefaultMaxListed
	}
	syms := rep.Symbols()

	var b strings.Builder
	fmt.Fprintf(&b, "window %s .. %s\n", rep.WindowFrom, rep.WindowTo)
	fmt.Fprintf(&b, "scanned %d, clustered %d, empty %d, failed %d\n", rep.Scanned, len(syms), rep.Empty, len(rep.Failures))

	for i, h := range rep.Hits {
		if i == maxListed {
			fmt.Fprintf(&b, "... and %d more\n", len(rep.Hits)-maxListed)
			break
		}
		last := h.Timestamps[len(h.Timestamps)-1].In(markethours.IST)
		fmt.Fprintf(&b, "%s:%s %s (%d bars, last %s)\n", h.Exchange, h.Symbol, h.Set, len(h.Timestamps), last.Format("2006-01-02 15:04"))
	}

	if counts := rep.FailureCounts(); len(counts) > 0 {
		statuses := make([]candles.Status, 0, len(counts))
		for st := range counts {
			statuses = append(statuses, st)
		}
		sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
		parts := make([]string, len(statuses))
		for i, st := range statuses {
			parts[i] = fmt.Sprintf("%s=%d", st, counts[st])
		}
		fmt.Fprintf(&b, "failures: %s\n", strings.Join(parts, " "))
	}

	level := AlertInfo
	if rep.Interrupted || (rep.Scanned > 0 && 2*len(rep.Failures) > rep.Scanned) {
		level = AlertWarning
	}
	title := fmt.Sprintf("EMA cluster scan: %d symbols", len(syms))
	if rep.Interrupted {
		title += " (interrupted)"
	}
	return Alert{Level: level, Title: title, Message: strings.TrimRight(b.String(), "\n")}
}
