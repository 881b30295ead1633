// Package jobs answers whether a job still accepts applications. Jobs are
// owned elsewhere; this package only reads their status.
package jobs

import (
	"context"
	"strings"

	"staffing/common/telemetry"
)

var tracer = telemetry.GetTracer("staffing/jobs")

type Registry interface {
	// JobStatus returns the job's current status, or a NOT_FOUND error when
	// the registry does not know the job.
	JobStatus(ctx context.Context, jobID string) (string, error)
}

var closedStatuses = map[string]bool{
	"completed": true,
	"closed":    true,
	"filled":    true,
	"archived":  true,
}

// IsClosed reports whether status denotes a job that takes no new applications.
func IsClosed(status string) bool {
	return closedStatuses[strings.ToLower(strings.TrimSpace(status))]
}
