package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/leadscout"
)

var _ leadscout.SearchEngine = (*LoggingSearchEngine)(nil)

// LoggingSearchEngine wraps a SearchEngine with logging. Challenges are
// logged at warn level since they need a human.
type LoggingSearchEngine struct {
	next   leadscout.SearchEngine
	logger *slog.Logger
}

// NewLoggingSearchEngine creates a new LoggingSearchEngine.
func NewLoggingSearchEngine(next leadscout.SearchEngine, logger *slog.Logger) *LoggingSearchEngine {
	return &LoggingSearchEngine{next: next, logger: logger}
}

// Name delegates to the wrapped engine.
func (e *LoggingSearchEngine) Name() string {
	return e.next.Name()
}

// Search delegates to the wrapped engine and logs the operation.
func (e *LoggingSearchEngine) Search(ctx context.Context, query string, page int) (results []leadscout.SearchResult, err error) {
	defer func(begin time.Time) {
		level := slog.LevelInfo
		if leadscout.ErrorCode(err) == leadscout.ECHALLENGE {
			level = slog.LevelWarn
		}
		e.logger.Log(ctx, level, "search",
			"engine", e.next.Name(),
			"query", query,
			"page", page,
			"count", len(results),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return e.next.Search(ctx, query, page)
}
