package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/commerce-rag/internal/config"
	"github.com/kirillkom/commerce-rag/internal/core/domain"
	"github.com/kirillkom/commerce-rag/internal/core/ports"
	"github.com/kirillkom/commerce-rag/internal/observability/metrics"
)

const (
	serviceName          = "api"
	maxUploadBytes       = 64 << 20
	multipartMemoryLimit = 8 << 20
)

// Services bundles the inbound ports served over HTTP. Nil ports answer 503.
type Services struct {
	Asker     ports.QuestionAnswerer
	Retriever ports.ContextRetriever
	Intents   ports.IntentDetector
	Ingestor  ports.SourceIngestor
	Sources   ports.SourceReader
	MCP       http.Handler
	Metrics   *metrics.HTTPServerMetrics
}

type Router struct {
	cfg       config.Config
	svc       Services
	validator *requestValidator
}

func NewRouter(cfg config.Config, svc Services) *Router {
	validator, err := newRequestValidator()
	if err != nil {
		slog.Error("openapi_validator_disabled", "error", err)
	}
	return &Router{
		cfg:       cfg,
		svc:       svc,
		validator: validator,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", rt.root)
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPISpec)
	mux.HandleFunc("POST /v1/ask", rt.validated(rt.ask))
	mux.HandleFunc("POST /v1/retrieve", rt.validated(rt.retrieve))
	mux.HandleFunc("POST /v1/intents", rt.validated(rt.detectIntents))
	mux.HandleFunc("POST /v1/sources", rt.uploadSource)
	mux.HandleFunc("GET /v1/sources/{id}", rt.getSourceByID)
	if rt.svc.Metrics != nil {
		mux.Handle("GET /metrics", rt.svc.Metrics.Handler())
	}
	if rt.svc.MCP != nil {
		mux.Handle("/mcp", rt.svc.MCP)
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.svc.Metrics != nil {
		handler = rt.svc.Metrics.Middleware(serviceName, handler)
	}
	handler = recoverMiddleware(handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Commerce RAG service is running",
		"docs":    "/openapi.yaml",
		"health":  "/healthz",
	})
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type queryRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
}

func decodeQueryRequest(w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return req, false
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return req, false
	}
	return req, true
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if rt.svc.Asker == nil {
		writeError(w, http.StatusServiceUnavailable, "answering is not configured")
		return
	}
	req, ok := decodeQueryRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	result, err := rt.svc.Asker.Ask(r.Context(), domain.AskRequest{
		Query:  req.Query,
		UserID: req.UserID,
		Limit:  rt.limitOrDefault(req.Limit),
	})
	if err != nil {
		rt.writeDomainError(w, r, "ask", err)
		return
	}
	if rt.svc.Metrics != nil {
		rt.svc.Metrics.RecordRAGObservation(serviceName, "ask", len(result.Context.Evidence), time.Since(start))
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	if rt.svc.Retriever == nil {
		writeError(w, http.StatusServiceUnavailable, "retrieval is not configured")
		return
	}
	req, ok := decodeQueryRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	aggregated := rt.svc.Retriever.Aggregate(r.Context(), domain.RetrieveRequest{
		Query:  req.Query,
		UserID: req.UserID,
		Limit:  rt.limitOrDefault(req.Limit),
	})
	if rt.svc.Metrics != nil {
		rt.svc.Metrics.RecordRAGObservation(serviceName, "retrieve", len(aggregated.Evidence), time.Since(start))
	}
	writeJSON(w, http.StatusOK, aggregated)
}

func (rt *Router) detectIntents(w http.ResponseWriter, r *http.Request) {
	if rt.svc.Intents == nil {
		writeError(w, http.StatusServiceUnavailable, "intent detection is not configured")
		return
	}
	req, ok := decodeQueryRequest(w, r)
	if !ok {
		return
	}
	intents := rt.svc.Intents.Detect(req.Query)
	if intents == nil {
		intents = []domain.Domain{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"intents": intents})
}

func (rt *Router) uploadSource(w http.ResponseWriter, r *http.Request) {
	if rt.svc.Ingestor == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		writeError(w, http.StatusBadRequest, "multipart form is required")
		return
	}
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	d, err := domain.ParseDomain(r.FormValue("domain"))
	if err != nil {
		rt.writeDomainError(w, r, "upload source", err)
		return
	}

	src, err := rt.svc.Ingestor.Upload(r.Context(), domain.UploadSource{
		Domain:     d,
		Filename:   fileHeader.Filename,
		MimeType:   fileHeader.Header.Get("Content-Type"),
		PolicyType: r.FormValue("policy_type"),
		PolicyID:   r.FormValue("policy_id"),
	}, file)
	if err != nil {
		rt.writeDomainError(w, r, "upload source", err)
		return
	}
	writeJSON(w, http.StatusAccepted, src)
}

func (rt *Router) getSourceByID(w http.ResponseWriter, r *http.Request) {
	if rt.svc.Sources == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion is not configured")
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "source id is required")
		return
	}

	src, err := rt.svc.Sources.GetByID(r.Context(), id)
	if err != nil {
		rt.writeDomainError(w, r, "get source", err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}

func (rt *Router) limitOrDefault(limit int) int {
	if limit > 0 {
		return limit
	}
	return rt.cfg.RAGTopK
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	switch {
	case status == http.StatusUnauthorized:
		message = "upstream provider rejected the configured credentials"
	case domain.IsKind(err, domain.ErrNotConfigured):
		message = "answer generation is not configured"
	case status >= http.StatusInternalServerError:
		message = http.StatusText(status)
	}
	if status == http.StatusUnauthorized || status >= http.StatusInternalServerError {
		requestLogger(r.Context()).Error("request_failed",
			"operation", operation,
			"status", status,
			"error", err,
		)
	}
	writeError(w, status, message)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
