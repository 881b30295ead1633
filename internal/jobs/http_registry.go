package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"staffing/common/cache"
	"staffing/common/telemetry"
	"staffing/internal/errors"

	"go.uber.org/zap"
)

type httpRegistry struct {
	client  *http.Client
	logger  *zap.Logger
	baseURL string
	cache   cache.Cache
	ttl     time.Duration
}

// NewHTTPRegistry reads job status from GET {baseURL}/jobs/{id}. Statuses are
// cached for ttl.
func NewHTTPRegistry(logger *zap.Logger, baseURL string, timeout time.Duration, c cache.Cache, ttl time.Duration) Registry {
	return &httpRegistry{
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		cache:   c,
		ttl:     ttl,
	}
}

func statusCacheKey(jobID string) string {
	return "jobs:status:" + jobID
}

func (r *httpRegistry) JobStatus(ctx context.Context, jobID string) (string, error) {
	ctx, span := tracer.Start(ctx, "httpRegistry.JobStatus")
	defer span.End()
	span.SetAttributes(telemetry.String("job.id", jobID))

	var cached string
	err := r.cache.Get(ctx, statusCacheKey(jobID), &cached)
	if err == nil {
		span.SetAttributes(telemetry.String("cache.result", "hit"))
		return cached, nil
	} else if err != cache.ErrNotFound {
		span.SetAttributes(telemetry.String("cache.result", "error"))
		span.RecordError(err)
		r.logger.Warn("cache error", zap.String("job_id", jobID), zap.Error(err))
	} else {
		span.SetAttributes(telemetry.String("cache.result", "miss"))
	}

	endpoint := fmt.Sprintf("%s/jobs/%s", r.baseURL, url.PathEscape(jobID))
	span.SetAttributes(telemetry.String("http.url", endpoint))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		span.RecordError(err)
		return "", errors.Internal("creating request", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", errors.Unavailable("executing job registry request", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Warn("failed to close response body", zap.Error(cerr))
		}
	}()

	span.SetAttributes(telemetry.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode == http.StatusNotFound {
		return "", errors.NotFound(fmt.Sprintf("job %s not found", jobID), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Unavailable(fmt.Sprintf("unexpected status code: %d", resp.StatusCode), nil)
	}

	var body struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		span.RecordError(err)
		return "", errors.Internal("decoding job response", err)
	}

	if err := r.cache.Set(ctx, statusCacheKey(jobID), body.Status, r.ttl); err != nil {
		r.logger.Warn("failed to cache job status", zap.String("job_id", jobID), zap.Error(err))
	}

	return body.Status, nil
}
