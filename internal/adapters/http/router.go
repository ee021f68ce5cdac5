package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/transcript-enrichment/internal/adapters/http/apispec"
	"github.com/kirillkom/transcript-enrichment/internal/config"
	"github.com/kirillkom/transcript-enrichment/internal/core/domain"
	"github.com/kirillkom/transcript-enrichment/internal/core/ports"
	"github.com/kirillkom/transcript-enrichment/internal/observability/metrics"
)

const maxRequestBodyBytes = 1 << 20

// Services are the use cases the router dispatches to.
type Services struct {
	Ingestor  ports.TranscriptIngestor
	Results   ports.ResultReader
	Rescorer  ports.Rescorer
	Jobs      ports.JobStateReader
	Inspector ports.StoreInspector
}

type Router struct {
	cfg config.Config
	svc Services

	httpMetrics    *metrics.HTTPServerMetrics
	metricsHandler http.Handler
}

func NewRouter(cfg config.Config, svc Services) *Router {
	if cfg.TenantHeader == "" {
		cfg.TenantHeader = "X-Tenant-ID"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "transcript-api"
	}
	return &Router{cfg: cfg, svc: svc}
}

// WithMetrics instruments requests and mounts handler on /metrics.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics, handler http.Handler) *Router {
	rt.httpMetrics = m
	rt.metricsHandler = handler
	return rt
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(rt.accessLogMiddleware)
	if rt.httpMetrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.httpMetrics.Middleware(rt.cfg.ServiceName, next)
		})
	}
	r.Use(recoverMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: "Not Found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Detail: "Method Not Allowed"})
	})

	r.Get("/healthz", rt.healthz)
	r.Get("/openapi.yaml", rt.openAPISpec)
	if rt.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", rt.metricsHandler)
	}

	r.Group(func(r chi.Router) {
		if rt.cfg.APIRateLimitRPS > 0 {
			r.Use(rt.rateLimitMiddleware(rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst))
		}
		if rt.cfg.APIMaxInFlight > 0 {
			r.Use(func(next http.Handler) http.Handler {
				return rt.backpressureMiddleware(next, rt.cfg.APIMaxInFlight, rt.cfg.BackpressureWait())
			})
		}

		r.Post("/ingest", rt.ingest)
		r.Get("/results/{conversation_id}", rt.getResult)
		r.Post("/rescore/{conversation_id}", rt.rescore)
		r.Get("/jobs/{conversation_id}", rt.getJobState)
	})

	// Diagnostic surface: deliberately outside tenant scoping.
	if rt.cfg.DebugEndpointEnabled {
		r.Route("/debug", func(r chi.Router) {
			r.Use(debugTokenMiddleware(rt.cfg.DebugToken))
			r.Get("/db", rt.debugDB)
		})
	}

	return r
}

type ingestRequest struct {
	ConversationID *string `json:"conversation_id"`
	Text           *string `json:"text"`
}

type resultResponse struct {
	ConversationID string   `json:"conversation_id"`
	SentimentScore float64  `json:"sentiment_score"`
	Summary        string   `json:"summary"`
	Tags           []string `json:"tags"`
	Status         string   `json:"status"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPISpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(apispec.Raw())
}

func (rt *Router) ingest(w http.ResponseWriter, r *http.Request) {
	tenantID, err := rt.tenantFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	payload, err := decodeIngestRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ack, err := rt.svc.Ingestor.Ingest(r.Context(), tenantID, payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ack)
}

func (rt *Router) getResult(w http.ResponseWriter, r *http.Request) {
	tenantID, err := rt.tenantFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := rt.svc.Results.GetResult(r.Context(), tenantID, chi.URLParam(r, "conversation_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{
		ConversationID: rec.ConversationID,
		SentimentScore: rec.SentimentScore,
		Summary:        rec.Summary,
		Tags:           rec.Tags,
		Status:         rec.Status,
	})
}

func (rt *Router) rescore(w http.ResponseWriter, r *http.Request) {
	tenantID, err := rt.tenantFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ack, err := rt.svc.Rescorer.Rescore(r.Context(), tenantID, chi.URLParam(r, "conversation_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ack)
}

func (rt *Router) getJobState(w http.ResponseWriter, r *http.Request) {
	tenantID, err := rt.tenantFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	state, err := rt.svc.Jobs.GetJobState(r.Context(), tenantID, chi.URLParam(r, "conversation_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) debugDB(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.svc.Inspector.Snapshot(r.Context()))
}

func (rt *Router) tenantFromRequest(r *http.Request) (string, error) {
	tenantID := r.Header.Get(rt.cfg.TenantHeader)
	if strings.TrimSpace(tenantID) == "" {
		return "", domain.WrapError(domain.ErrMissingTenant, "read tenant", fmt.Errorf("header %s is empty", rt.cfg.TenantHeader))
	}
	return tenantID, nil
}

func decodeIngestRequest(w http.ResponseWriter, r *http.Request) (domain.TranscriptPayload, error) {
	var req ingestRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return domain.TranscriptPayload{}, err
		}
		return domain.TranscriptPayload{}, domain.WrapError(domain.ErrValidation, "decode ingest body", errors.New("body must be a JSON object"))
	}
	if req.ConversationID == nil {
		return domain.TranscriptPayload{}, domain.WrapError(domain.ErrValidation, "decode ingest body", errors.New("conversation_id is required"))
	}
	if req.Text == nil {
		return domain.TranscriptPayload{}, domain.WrapError(domain.ErrValidation, "decode ingest body", errors.New("text is required"))
	}
	return domain.TranscriptPayload{ConversationID: *req.ConversationID, Text: *req.Text}, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
