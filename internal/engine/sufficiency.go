package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/plexsched/internal/catalog"
)

// UnwatchedHoursAbove returns a SufficiencyFunc reporting whether section
// holds more than threshold hours of unwatched content. A threshold of zero
// or less disables the check and yields nil. Sessions that cannot measure
// unwatched content are never sufficient.
func UnwatchedHoursAbove(section string, threshold float64, logger *slog.Logger) SufficiencyFunc {
	if threshold <= 0 {
		return nil
	}
	if logger == nil {
		logger = discardLogger()
	}
	return func(ctx context.Context, sess catalog.Session) (bool, error) {
		reporter, ok := sess.(catalog.UnwatchedReporter)
		if !ok {
			return false, nil
		}
		hours, err := reporter.UnwatchedHours(ctx, section)
		if err != nil {
			return false, err
		}
		logger.Info("unwatched content", "section", section, "hours", hours, "threshold", threshold)
		return hours > threshold, nil
	}
}
