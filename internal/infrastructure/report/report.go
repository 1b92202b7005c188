package report

import (
	"context"
	"log/slog"

	"TrendPress/internal/ports"
)

// LogReporter writes run summaries to the structured log. It stands in
// for an operator-facing channel until one is wired.
type LogReporter struct {
	logger *slog.Logger
}

var _ ports.Reporter = (*LogReporter)(nil)

// NewLogReporter builds a reporter over the given logger.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report logs the status and its details as structured attributes.
func (r *LogReporter) Report(ctx context.Context, status string, details map[string]any) {
	if r == nil || r.logger == nil {
		return
	}

	attrs := make([]any, 0, len(details)*2+2)
	attrs = append(attrs, "status", status)
	for k, v := range details {
		attrs = append(attrs, k, v)
	}
	r.logger.InfoContext(ctx, "run report", attrs...)
}
