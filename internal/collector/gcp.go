package collector

import (
	"context"
	"fmt"
	"net/http"
	"time"

	clog "cloud.google.com/go/logging"
	"cloud.google.com/go/logging/logadmin"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	triageerrors "logtriage/internal/errors"
	triagelog "logtriage/internal/logging"
	"logtriage/internal/models"
)

// GCPConfig holds Cloud Logging source configuration.
type GCPConfig struct {
	// ProjectID is the project whose logs are queried.
	ProjectID string

	// PageSize is the page size for the entries iterator.
	// Default: 1000
	PageSize int

	// MaxRetries is the attempt cap for transient failures.
	// Default: 4
	MaxRetries int

	// RetryBackoff is the initial backoff between retries.
	// Default: 500ms
	RetryBackoff time.Duration

	// MaxBackoff caps the exponential backoff.
	// Default: 8s
	MaxBackoff time.Duration

	// Logger is the logger instance.
	Logger *zap.Logger
}

// DefaultGCPConfig returns the default Cloud Logging source configuration.
func DefaultGCPConfig(projectID string) *GCPConfig {
	return &GCPConfig{
		ProjectID:    projectID,
		PageSize:     1000,
		MaxRetries:   4,
		RetryBackoff: 500 * time.Millisecond,
		MaxBackoff:   8 * time.Second,
	}
}

// GCPSource fetches records from Google Cloud Logging.
type GCPSource struct {
	cfg    *GCPConfig
	client *logadmin.Client
	logger *zap.Logger
}

// NewGCPSource opens a Cloud Logging client for the configured project.
func NewGCPSource(ctx context.Context, cfg *GCPConfig, opts ...option.ClientOption) (*GCPSource, error) {
	if cfg == nil || cfg.ProjectID == "" {
		return nil, triageerrors.NewConfigValidationError("project", "", "project id is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 4
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 8 * time.Second
	}

	client, err := logadmin.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, triageerrors.NewAdapterAuthError(cfg.ProjectID, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = triagelog.L()
	}

	return &GCPSource{
		cfg:    cfg,
		client: client,
		logger: logger.With(zap.String("component", "gcp_source"), zap.String("project", cfg.ProjectID)),
	}, nil
}

// Name returns the source name.
func (s *GCPSource) Name() string {
	return fmt.Sprintf("gcp-logging:%s", s.cfg.ProjectID)
}

// Close releases the underlying client.
func (s *GCPSource) Close() error {
	return s.client.Close()
}

// Fetch pages through entries matching the filter until the result cap, the
// end of the result set, or cancellation. Transient failures are retried with
// exponential backoff and the pagination resumes from the last page token; a
// failure past the attempt cap surfaces as a fatal adapter error together
// with the partial batch collected so far.
func (s *GCPSource) Fetch(ctx context.Context, filter string, start, end time.Time, maxEntries int) (FetchResult, error) {
	if maxEntries <= 0 {
		return FetchResult{}, triageerrors.NewConfigValidationError("max_entries", maxEntries, "must be positive")
	}

	var records []RawRecord
	token := ""
	backoff := s.cfg.RetryBackoff
	attempts := 0

	for {
		pageSize := s.cfg.PageSize
		if remaining := maxEntries - len(records); remaining < pageSize {
			pageSize = remaining
		}

		it := s.client.Entries(ctx, logadmin.Filter(filter))
		pager := iterator.NewPager(it, pageSize, token)

		var page []*clog.Entry
		next, err := pager.NextPage(&page)
		if err != nil {
			if ctx.Err() != nil {
				// Deadline or cancellation: partial results, not a failure.
				s.logger.Warn("fetch_cancelled",
					zap.Int("collected", len(records)),
					zap.Error(ctx.Err()),
				)
				sortByTimestamp(records)
				return FetchResult{Records: records, Truncated: true}, nil
			}

			attempts++
			if !isTransient(err) || attempts > s.cfg.MaxRetries {
				sortByTimestamp(records)
				return FetchResult{Records: records, Truncated: len(records) > 0}, adapterError(err)
			}

			s.logger.Warn("fetch_page_failed_retrying",
				zap.Int("attempt", attempts),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				sortByTimestamp(records)
				return FetchResult{Records: records, Truncated: true}, nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > s.cfg.MaxBackoff {
				backoff = s.cfg.MaxBackoff
			}
			continue
		}
		attempts = 0
		backoff = s.cfg.RetryBackoff

		for _, entry := range page {
			records = append(records, entryToRaw(entry))
		}

		if len(records) >= maxEntries {
			sortByTimestamp(records)
			return FetchResult{Records: records, Truncated: next != ""}, nil
		}
		if next == "" {
			sortByTimestamp(records)
			return FetchResult{Records: records}, nil
		}
		token = next
	}
}

// entryToRaw maps a Cloud Logging entry onto the source-neutral RawRecord.
func entryToRaw(entry *clog.Entry) RawRecord {
	rec := RawRecord{
		Timestamp: entry.Timestamp.UTC(),
		LogName:   entry.LogName,
		InsertID:  entry.InsertID,
		Labels:    entry.Labels,
		TraceID:   entry.Trace,
		SpanID:    entry.SpanID,
	}
	if entry.Severity != clog.Default {
		rec.Severity = entry.Severity.String()
	}
	if entry.Resource != nil {
		rec.ResourceType = entry.Resource.Type
		rec.ResourceLabels = entry.Resource.Labels
	}

	switch payload := entry.Payload.(type) {
	case string:
		rec.TextPayload = payload
	case *structpb.Struct:
		rec.JSONPayload = payload.AsMap()
	case map[string]any:
		rec.JSONPayload = payload
	case nil:
	default:
		rec.TextPayload = fmt.Sprintf("%v", payload)
	}

	if entry.HTTPRequest != nil {
		rec.HTTPRequest = httpRequestToModel(entry.HTTPRequest)
	}
	return rec
}

func httpRequestToModel(req *clog.HTTPRequest) *models.HTTPRequest {
	out := &models.HTTPRequest{
		Status:       req.Status,
		Latency:      req.Latency,
		RemoteIP:     req.RemoteIP,
		ServerIP:     req.LocalIP,
		CacheHit:     req.CacheHit,
		RequestSize:  req.RequestSize,
		ResponseSize: req.ResponseSize,
	}
	if r := req.Request; r != nil {
		out.Method = r.Method
		if r.URL != nil {
			out.URL = r.URL.String()
		}
		out.UserAgent = r.UserAgent()
		out.Protocol = r.Proto
	}
	return out
}

// isTransient reports whether a fetch error is worth retrying.
func isTransient(err error) bool {
	if apiErr, ok := err.(*googleapi.Error); ok {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable:
			return true
		}
		return false
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted:
		return true
	}
	return false
}

// adapterError wraps a fetch failure in the triage error taxonomy.
func adapterError(err error) error {
	if apiErr, ok := err.(*googleapi.Error); ok && apiErr.Code == http.StatusTooManyRequests {
		return triageerrors.NewAdapterQuotaError("fetch", err)
	}
	if status.Code(err) == codes.ResourceExhausted {
		return triageerrors.NewAdapterQuotaError("fetch", err)
	}
	if status.Code(err) == codes.PermissionDenied || status.Code(err) == codes.Unauthenticated {
		return triageerrors.NewAdapterAuthError("fetch", err)
	}
	return triageerrors.NewAdapterError("fetch", err)
}
