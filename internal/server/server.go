// Package server exposes the collect and triage operations over HTTP so the
// tool can run as a long-lived service for automation and agent callers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"logtriage/internal/classify"
	"logtriage/internal/collector"
	triageerrors "logtriage/internal/errors"
	"logtriage/internal/incident"
	"logtriage/internal/metrics"
	"logtriage/internal/models"
	"logtriage/internal/report"
	"logtriage/internal/triage"
	"logtriage/internal/window"
)

// SourceFactory opens a log source for one request's project. The server
// closes the source when the request finishes.
type SourceFactory func(ctx context.Context, projectID string) (collector.Source, error)

// Config holds server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// ProjectID is the default project when a request names none.
	ProjectID string
	// RequestTimeout bounds one collect/triage request.
	// Default: 60s
	RequestTimeout time.Duration
	// GracefulTimeout bounds shutdown drain.
	// Default: 10s
	GracefulTimeout time.Duration
	// Sources opens per-request log sources. Required.
	Sources SourceFactory
	// Classifier labels entries. Nil uses the built-in rule table.
	Classifier *classify.Classifier
	// Clock supplies "now". Nil uses time.Now.
	Clock window.Clock
	// Logger is the structured logger.
	Logger *zap.Logger
}

// Server is the HTTP front end over the triage pipeline.
type Server struct {
	cfg        Config
	httpServer *http.Server
	listener   net.Listener
	logger     *zap.Logger
}

// CollectRequest is the body of POST /v1/collect. Either Incident or the
// lookback fields (HoursBack plus ResourceType) select the window.
type CollectRequest struct {
	ProjectID      string            `json:"project_id,omitempty"`
	Incident       json.RawMessage   `json:"incident,omitempty"`
	HoursBack      int               `json:"hours_back,omitempty"`
	ResourceType   string            `json:"resource_type,omitempty"`
	ResourceLabels map[string]string `json:"resource_labels,omitempty"`
	MinutesBefore  *int              `json:"minutes_before,omitempty"`
	MinutesAfter   *int              `json:"minutes_after,omitempty"`
	Search         string            `json:"search,omitempty"`
	MaxEntries     int               `json:"max_entries,omitempty"`
	ErrorsOnly     bool              `json:"errors_only,omitempty"`
	Stats          bool              `json:"stats,omitempty"`
	NoMetadata     bool              `json:"no_metadata,omitempty"`
}

// TriageRequest is the body of POST /v1/triage. Window selection matches
// CollectRequest; the remaining fields shape the summary.
type TriageRequest struct {
	ProjectID      string            `json:"project_id,omitempty"`
	Incident       json.RawMessage   `json:"incident,omitempty"`
	HoursBack      int               `json:"hours_back,omitempty"`
	ResourceType   string            `json:"resource_type,omitempty"`
	ResourceLabels map[string]string `json:"resource_labels,omitempty"`
	MinutesBefore  *int              `json:"minutes_before,omitempty"`
	MinutesAfter   *int              `json:"minutes_after,omitempty"`
	Search         string            `json:"search,omitempty"`
	MaxEntries     int               `json:"max_entries,omitempty"`
	Severity       string            `json:"severity,omitempty"`
	ErrorType      string            `json:"error_type,omitempty"`
	Limit          int               `json:"limit,omitempty"`
	Detailed       bool              `json:"detailed,omitempty"`
}

type errorBody struct {
	Error  map[string]interface{} `json:"error"`
	Report interface{}            `json:"report,omitempty"`
}

// New constructs a server bound to the configured address.
func New(cfg Config) (*Server, error) {
	if cfg.Sources == nil {
		return nil, triageerrors.NewConfigValidationError("sources", nil, "source factory is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, err
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	s := &Server{
		cfg:      cfg,
		listener: lis,
		logger:   cfg.Logger.With(zap.String("component", "server")),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/collect", s.handleCollect)
	mux.HandleFunc("/v1/triage", s.handleTriage)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Start serves requests until Shutdown is invoked.
func (s *Server) Start() error {
	s.logger.Info("server_started", zap.String("addr", s.Address()))
	err := s.httpServer.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests, falling back to a hard close when the
// context expires.
func (s *Server) Shutdown(ctx context.Context) {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		_ = s.httpServer.Close()
	}
}

// Address exposes the bound listener address.
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GracefulTimeout returns the configured shutdown drain bound.
func (s *Server) GracefulTimeout() time.Duration {
	return s.cfg.GracefulTimeout
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	started := time.Now()

	var req CollectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "collect", started, nil,
			triageerrors.NewIncidentMalformedError(err))
		return
	}

	inc, win, err := s.resolveWindow(windowParams{
		incident:       req.Incident,
		hoursBack:      req.HoursBack,
		resourceType:   req.ResourceType,
		resourceLabels: req.ResourceLabels,
		minutesBefore:  req.MinutesBefore,
		minutesAfter:   req.MinutesAfter,
		search:         req.Search,
		maxEntries:     req.MaxEntries,
		severityFloor:  collectFloor(req.ErrorsOnly),
	})
	if err != nil {
		s.writeError(w, "collect", started, nil, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	projectID := s.projectFor(req.ProjectID, inc)
	source, err := s.cfg.Sources(ctx, projectID)
	if err != nil {
		s.writeError(w, "collect", started, nil, err)
		return
	}
	defer func() { _ = source.Close() }()

	pipeline := triage.New(triage.Config{
		Source:     source,
		Classifier: s.cfg.Classifier,
		Clock:      s.cfg.Clock,
		ProjectID:  projectID,
		Logger:     s.logger,
	})
	rep, err := pipeline.Collect(ctx, win, inc, triage.CollectOptions{
		Stats:      req.Stats,
		NoMetadata: req.NoMetadata,
	})
	metrics.ObserveCollection("collect", rep.Collection.TotalEntries, rep.Collection.Skipped)
	if err != nil {
		s.writeError(w, "collect", started, rep, err)
		return
	}
	s.writeReport(w, "collect", started, rep)
}

func (s *Server) handleTriage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	started := time.Now()

	var req TriageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "triage", started, nil,
			triageerrors.NewIncidentMalformedError(err))
		return
	}

	inc, win, err := s.resolveWindow(windowParams{
		incident:       req.Incident,
		hoursBack:      req.HoursBack,
		resourceType:   req.ResourceType,
		resourceLabels: req.ResourceLabels,
		minutesBefore:  req.MinutesBefore,
		minutesAfter:   req.MinutesAfter,
		search:         req.Search,
		maxEntries:     req.MaxEntries,
		severityFloor:  triageFloor(req.Severity),
	})
	if err != nil {
		s.writeError(w, "triage", started, nil, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	projectID := s.projectFor(req.ProjectID, inc)
	source, err := s.cfg.Sources(ctx, projectID)
	if err != nil {
		s.writeError(w, "triage", started, nil, err)
		return
	}
	defer func() { _ = source.Close() }()

	pipeline := triage.New(triage.Config{
		Source:     source,
		Classifier: s.cfg.Classifier,
		Clock:      s.cfg.Clock,
		ProjectID:  projectID,
		Logger:     s.logger,
	})
	rep, err := pipeline.Triage(ctx, win, inc, triage.TriageOptions{
		Detailed:  req.Detailed,
		ErrorType: classify.ErrorType(req.ErrorType),
		MaxGroups: req.Limit,
	})
	metrics.ObserveCollection("triage", rep.Collection.TotalEntries, rep.Collection.Skipped)
	if err != nil {
		s.writeError(w, "triage", started, rep, err)
		return
	}
	s.writeReport(w, "triage", started, rep)
}

type windowParams struct {
	incident       json.RawMessage
	hoursBack      int
	resourceType   string
	resourceLabels map[string]string
	minutesBefore  *int
	minutesAfter   *int
	search         string
	maxEntries     int
	severityFloor  models.Severity
}

// resolveWindow builds the query window from either the embedded incident or
// the lookback fields.
func (s *Server) resolveWindow(p windowParams) (*incident.Incident, window.Window, error) {
	b := window.NewBuilder()
	b.Clock = s.cfg.Clock
	b.TextSearch = p.search
	b.SeverityFloor = p.severityFloor
	if p.minutesBefore != nil {
		b.MinutesBefore = *p.minutesBefore
	}
	if p.minutesAfter != nil {
		b.MinutesAfter = *p.minutesAfter
	}
	if p.maxEntries > 0 {
		b.MaxEntries = p.maxEntries
	}

	if len(p.incident) > 0 {
		inc, err := incident.ParseBytes(p.incident)
		if err != nil {
			return nil, window.Window{}, err
		}
		win, err := b.FromIncident(inc)
		return inc, win, err
	}

	win, err := b.FromLookback(p.hoursBack, p.resourceType, p.resourceLabels)
	return nil, win, err
}

func (s *Server) projectFor(requested string, inc *incident.Incident) string {
	if requested != "" {
		return requested
	}
	if inc != nil {
		if id := inc.ProjectID(); id != "" {
			return id
		}
	}
	return s.cfg.ProjectID
}

func collectFloor(errorsOnly bool) models.Severity {
	if errorsOnly {
		return window.CollectErrorsFloor
	}
	return window.CollectFloor
}

func triageFloor(severity string) models.Severity {
	if severity == "" {
		return window.TriageFloor
	}
	return window.ParseFloor(severity)
}

func (s *Server) writeReport(w http.ResponseWriter, operation string, started time.Time, rep interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := report.WriteJSON(w, rep); err != nil {
		s.logger.Error("response_write_failed", zap.Error(err))
	}
	metrics.ObserveRequest(operation, time.Since(started), metrics.OutcomeSuccess)
	s.logger.Info("request_finished",
		zap.String("operation", operation),
		zap.Duration("duration", time.Since(started)),
	)
}

// writeError renders an error response in the triage taxonomy. A partial
// report, when present, rides along so callers keep whatever was collected
// before the failure.
func (s *Server) writeError(w http.ResponseWriter, operation string, started time.Time, partial interface{}, err error) {
	body := errorBody{Report: partial}
	var te *triageerrors.TriageError
	if errors.As(err, &te) {
		body.Error = te.ToMap()
	} else {
		body.Error = map[string]interface{}{
			"code":    triageerrors.GetErrorCode(err),
			"message": err.Error(),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	if encErr := report.WriteJSON(w, body); encErr != nil {
		s.logger.Error("response_write_failed", zap.Error(encErr))
	}

	outcome := metrics.OutcomeError
	if partial != nil {
		outcome = metrics.OutcomePartial
	}
	metrics.ObserveRequest(operation, time.Since(started), outcome)
	s.logger.Warn("request_failed",
		zap.String("operation", operation),
		zap.String("error_code", string(triageerrors.GetErrorCode(err))),
		zap.Error(err),
	)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, triageerrors.ErrIncidentParse),
		errors.Is(err, triageerrors.ErrInvalidWindow),
		errors.Is(err, triageerrors.ErrConfigValidation):
		return http.StatusBadRequest
	case errors.Is(err, triageerrors.ErrAdapterQuota):
		return http.StatusTooManyRequests
	case errors.Is(err, triageerrors.ErrAdapterAuth):
		return http.StatusForbidden
	case errors.Is(err, triageerrors.ErrAdapter):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
