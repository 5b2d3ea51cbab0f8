// Package server hosts the wire endpoint: POST execute envelopes in and out,
// GET a minimal service description, plus the ambient token, status, health
// and metrics surfaces.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	configpkg "github.com/recordwire/recordgate/internal/gateway/config"
	decodepkg "github.com/recordwire/recordgate/internal/gateway/decode"
	encodepkg "github.com/recordwire/recordgate/internal/gateway/encode"
	enginepkg "github.com/recordwire/recordgate/internal/gateway/engine"
	errspkg "github.com/recordwire/recordgate/internal/gateway/errors"
	eventspkg "github.com/recordwire/recordgate/internal/gateway/events"
	idspkg "github.com/recordwire/recordgate/internal/gateway/ids"
	jsoncodec "github.com/recordwire/recordgate/internal/gateway/jsoncodec"
	loggingpkg "github.com/recordwire/recordgate/internal/gateway/logging"
	metricspkg "github.com/recordwire/recordgate/internal/gateway/metrics"
	"github.com/recordwire/recordgate/internal/gateway/model"
	oauthpkg "github.com/recordwire/recordgate/internal/gateway/oauth"
	registrypkg "github.com/recordwire/recordgate/internal/gateway/registry"
)

const contentTypeXML = "text/xml; charset=utf-8"

// serviceDescription is the static document returned on GET: enough for
// clients to recognize the endpoint, not a full schema.
const serviceDescription = `<?xml version="1.0" encoding="utf-8"?>
<service xmlns="http://schemas.recordwire.dev/2011/contracts/services">
  <name>RecordGate Execute Service</name>
  <operation name="Execute" input="request" output="ExecuteResult"/>
</service>`

// Server wires the decoder, engine and encoder behind the HTTP surface.
type Server struct {
	cfg     *configpkg.Config
	log     loggingpkg.ServiceLogger
	decoder *decodepkg.Decoder
	encoder *encodepkg.Encoder
	engine  enginepkg.Executor
	metrics *metricspkg.Metrics
	bus     *eventspkg.Bus
	recent  *eventspkg.Recent
	tokens  *oauthpkg.TokenService
	started time.Time
}

// New constructs a Server. The token service and metrics are optional; the
// audit bus is owned by the caller.
func New(
	cfg *configpkg.Config,
	reg *registrypkg.Registry,
	exec enginepkg.Executor,
	bus *eventspkg.Bus,
	tokens *oauthpkg.TokenService,
	m *metricspkg.Metrics,
	log loggingpkg.ServiceLogger,
) (*Server, error) {
	if cfg == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if exec == nil {
		return nil, errspkg.ErrEngineRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 4 << 20
	}

	decoder, err := decodepkg.New(reg, log)
	if err != nil {
		return nil, err
	}
	decoder.Codec().SkipOptionalParams = cfg.SkipOptionalParams

	encoder, err := encodepkg.New(reg, log)
	if err != nil {
		return nil, err
	}

	var recent *eventspkg.Recent
	if bus != nil {
		// The watcher lives as long as the bus; closing the bus ends it.
		recent, err = bus.WatchRecent(context.Background(), recentCapacity)
		if err != nil {
			return nil, err
		}
	}

	return &Server{
		cfg:     cfg,
		log:     log,
		decoder: decoder,
		encoder: encoder,
		engine:  exec,
		metrics: m,
		bus:     bus,
		recent:  recent,
		tokens:  tokens,
		started: time.Now(),
	}, nil
}

// recentCapacity bounds the execution history the status endpoint reports.
const recentCapacity = 32

// Router builds the chi router with all gateway routes mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.recoverer)
	r.Post(s.cfg.ExecutePath, s.handleExecute)
	r.Get(s.cfg.ExecutePath, s.handleDescription)
	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	if s.tokens != nil && s.cfg.TokenEnabled {
		r.Post("/oauth/token", s.tokens.Handler())
	}
	if s.cfg.MetricsEnabled {
		r.Handle("/metrics", metricspkg.Handler())
	}
	return r
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("recordgate").Start(r.Context(), "gateway.Execute")
	defer span.End()

	requestID := idspkg.CreateULID()
	log := s.log.With(loggingpkg.LogFields{"request_id": requestID})

	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		s.writeFault(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	msg, err := s.decoder.Decode(body)
	if err != nil {
		log.Info("request decode failed", loggingpkg.LogFields{"error": err.Error()})
		if s.metrics != nil {
			s.metrics.DecodeFailures.Inc()
		}
		span.SetStatus(codes.Error, "decode failed")
		s.writeFault(w, http.StatusBadRequest, err.Error())
		return
	}

	span.SetAttributes(attribute.String("recordgate.message", msg.Name))
	if msg.CorrelationID != nil {
		span.SetAttributes(attribute.String("recordgate.correlation_id", msg.CorrelationID.String()))
	}

	sec := s.securityContext(r)
	start := time.Now()
	res, err := s.engine.Execute(ctx, msg, sec)
	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.EngineDuration.Observe(elapsed.Seconds())
	}

	if err != nil {
		engineErr := errspkg.NewEngineError(err)
		log.Error("engine execution failed", engineErr, loggingpkg.LogFields{"message": msg.Name})
		if s.metrics != nil {
			s.metrics.EngineFailures.Inc()
		}
		s.observe(msg, elapsed, true)
		span.SetStatus(codes.Error, "engine fault")
		s.writeFault(w, http.StatusInternalServerError, engineErr.Error())
		return
	}

	out, err := s.encoder.Encode(res, msg)
	if err != nil {
		log.Error("response encode failed", err, loggingpkg.LogFields{"message": msg.Name})
		if s.metrics != nil {
			s.metrics.EncodeFailures.Inc()
		}
		s.observe(msg, elapsed, true)
		span.SetStatus(codes.Error, "encode failed")
		s.writeFault(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.observe(msg, elapsed, false)
	w.Header().Set("Content-Type", contentTypeXML)
	_, _ = w.Write(out)
}

// observe records metrics and publishes the audit event for one request. The
// failure-class counters are incremented at the failure site, not here.
func (s *Server) observe(msg *model.Message, elapsed time.Duration, fault bool) {
	outcome := "success"
	if fault {
		outcome = "fault"
	}
	if s.metrics != nil {
		s.metrics.Requests.WithLabelValues(msg.Name, outcome).Inc()
	}
	if s.bus == nil {
		return
	}
	event := eventspkg.Executed{
		MessageName: msg.Name,
		DurationMs:  elapsed.Milliseconds(),
		Fault:       fault,
		BatchSize:   batchSize(msg),
	}
	if msg.CorrelationID != nil {
		event.CorrelationID = msg.CorrelationID.String()
	}
	// Detached from the request context: audit outlives the response write.
	s.bus.Publish(context.Background(), event)
}

func batchSize(msg *model.Message) int {
	size := 0
	msg.Params.Each(func(_ string, v model.Value) bool {
		if coll, ok := v.(model.MessageCollection); ok {
			size = len(coll.Messages)
			return false
		}
		return true
	})
	return size
}

// securityContext resolves the caller identity from the bearer token, if
// any. Anonymous callers get the zero identity; rejecting them is the
// engine's decision, not the gateway's.
func (s *Server) securityContext(r *http.Request) enginepkg.SecurityContext {
	token := oauthpkg.BearerToken(r)
	if token == "" || s.tokens == nil {
		return enginepkg.SecurityContext{Token: token}
	}
	subject, err := s.tokens.Verify(token)
	if err != nil {
		s.log.Debug("rejecting invalid bearer token", nil)
		return enginepkg.SecurityContext{}
	}
	return enginepkg.SecurityContext{
		UserID: uuid.NewSHA1(uuid.NameSpaceOID, []byte(subject)),
		Token:  token,
	}
}

// recoverer turns a handler panic into a fault envelope. Legacy clients parse
// the body on every status code, so even a panic must not leave them with an
// empty or truncated reply.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("panic: %v", rec)
				s.log.Error("recovered handler panic", err, loggingpkg.LogFields{
					"path": r.URL.Path,
				})
				s.writeFault(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// writeFault emits a well-formed fault envelope. Legacy clients parse the
// body even on error status codes, so the body is never empty or non-XML.
func (s *Server) writeFault(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", contentTypeXML)
	w.WriteHeader(status)
	_, _ = w.Write(s.encoder.Fault(message))
}

func (s *Server) handleDescription(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", contentTypeXML)
	_, _ = w.Write([]byte(serviceDescription))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type statusResponse struct {
	Status    string               `json:"status"`
	StartedAt string               `json:"started_at"`
	UptimeSec int64                `json:"uptime_seconds"`
	Recent    []eventspkg.Executed `json:"recent_executions,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := statusResponse{
		Status:    "ok",
		StartedAt: s.started.UTC().Format(time.RFC3339),
		UptimeSec: int64(time.Since(s.started).Seconds()),
	}
	if s.recent != nil {
		status.Recent = s.recent.Snapshot()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = jsoncodec.Encode(w, status)
}
