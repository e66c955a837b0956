package source

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/wavewatch/wavewatch/pkg/event"
)

const userAgent = "wavewatch/1.0"

// FetchParams bounds a single pull from a connector.
type FetchParams struct {
	// Since is the ingestion cursor: items published before it are skipped.
	Since time.Time
	// Limit caps the number of items per sub-query; 0 uses the connector
	// default.
	Limit int
}

// Connector pulls raw events for one platform. Implementations must return
// partial results together with an error rather than discarding items
// fetched before a later failure.
type Connector interface {
	Name() string
	Platform() event.Platform
	Fetch(ctx context.Context, params FetchParams) ([]event.RawEvent, error)
}

// newHTTPClient returns the client connectors share: bounded per-call
// timeout so a stuck upstream cannot wedge a scheduled task.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// newPacer returns the token bucket that paces a connector's outbound
// requests. This is courtesy pacing toward the platform, separate from the
// scheduler's quota accounting.
func newPacer(rps float64) *rate.Limiter {
	if rps <= 0 {
		rps = 1
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
