package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/datafrage-dev/datafrage/pkg/api"
)

// Logging returns middleware that emits structured log entries for each
// processed query: query ID, request ID (from context), terminal
// status, attempts consumed, and duration.
//
// The HTTP method and path are not available at the QueryHandler level;
// for full HTTP-level logging use HTTP-level middleware in the adapter.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next QueryHandler) QueryHandler {
		return QueryHandlerFunc(func(ctx context.Context, id string, req *api.QueryRequest) (*api.QueryResponse, error) {
			start := time.Now()
			requestID := RequestIDFromContext(ctx)

			resp, err := next.HandleQuery(ctx, id, req)

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("query_id", id),
				slog.Duration("duration", time.Since(start)),
			}

			switch {
			case err != nil:
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "query failed", attrs...)
			default:
				attrs = append(attrs,
					slog.String("status", string(resp.Status)),
					slog.Int("attempts", resp.Attempts))
				logger.LogAttrs(ctx, slog.LevelInfo, "query completed", attrs...)
			}

			return resp, err
		})
	}
}
