package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/vellum/internal/observe"
	"github.com/MrWong99/vellum/internal/rag"
	"github.com/MrWong99/vellum/pkg/docstore"
	"github.com/MrWong99/vellum/pkg/provider/llm"
)

// maxBodyBytes caps request bodies. Ingest batches of a few hundred chunks
// fit comfortably; anything larger should be split by the client.
const maxBodyBytes = 8 << 20

type ingestRequest struct {
	Texts    []string          `json:"texts"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type ingestResponse struct {
	Status        string `json:"status"`
	IngestedCount int    `json:"ingested_count,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type chatRequest struct {
	Query    string `json:"query"`
	Provider string `json:"provider"`
}

type chatResponse struct {
	Answer  string       `json:"answer"`
	Sources []chatSource `json:"sources,omitempty"`
}

type chatSource struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Distance float64           `json:"distance"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ingestRequest
	if !s.decode(w, r, &req) {
		return
	}

	n, err := s.ingestor.Ingest(r.Context(), req.Texts, req.Source, req.Metadata)
	s.metrics.IngestDuration.Record(r.Context(), time.Since(start).Seconds())

	if errors.Is(err, rag.ErrNoStore) {
		writeJSON(w, http.StatusOK, ingestResponse{
			Status: "SKIP",
			Reason: "no vector store configured",
		})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.metrics.RecordIngested(r.Context(), int64(n), req.Source)
	writeJSON(w, http.StatusOK, ingestResponse{Status: "OK", IngestedCount: n})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req chatRequest
	if !s.decode(w, r, &req) {
		return
	}

	backend := rag.Backend(req.Provider)
	if req.Provider == "" {
		backend = rag.BackendPrimary
	}

	answer, hits, err := s.answerer.Answer(r.Context(), req.Query, backend)
	s.metrics.ChatDuration.Record(r.Context(), time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("backend", string(backend))))

	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if s.history != nil {
		s.history.Add(llm.RoleUser, req.Query)
		s.history.Add(llm.RoleAssistant, answer)
	}

	writeJSON(w, http.StatusOK, chatResponse{Answer: answer, Sources: toChatSources(hits)})
}

func (s *Server) handleTelemetry(w http.ResponseWriter, _ *http.Request) {
	diag := s.diagnostics
	if diag == nil {
		diag = map[string]string{}
	}
	writeJSON(w, http.StatusOK, diag)
}

// decode reads and validates the JSON request body into v. On failure it
// writes a 400 response and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error()})
		return false
	}
	return true
}

// writeError maps orchestrator errors to HTTP responses. Validation problems
// are reported verbatim with 400; upstream failures get a generic 502 body
// while the detail goes to the log only.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *rag.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "invalid " + verr.Field + ": " + verr.Reason,
		})
		return
	}

	var uerr *rag.UpstreamError
	if errors.As(err, &uerr) {
		s.metrics.RecordProviderError(r.Context(), uerr.Provider)
		observe.Logger(r.Context()).LogAttrs(r.Context(), slog.LevelError, "upstream failure",
			slog.String("provider", uerr.Provider),
			slog.String("error", uerr.Err.Error()),
		)
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error: "upstream " + uerr.Provider + " unavailable",
		})
		return
	}

	s.log.Error("unhandled request error", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func toChatSources(hits []docstore.Result) []chatSource {
	if len(hits) == 0 {
		return nil
	}
	out := make([]chatSource, len(hits))
	for i, h := range hits {
		out[i] = chatSource{
			ID:       h.Document.ID,
			Text:     h.Document.Text,
			Distance: h.Distance,
			Metadata: h.Document.Metadata,
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding response"}`, http.StatusInternalServerError)
	}
}
