// File: internal/server/handlers.go
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xkilldash9x/dlsmap/internal/orchestrator"
)

// SubmitRequest is the body of POST /submit-dls. Field values of any JSON type are
// accepted and echoed back as sent.
type SubmitRequest struct {
	Fields orchestrator.FieldSet `json:"fields"`
}

// SubmitResponse is the body of every POST /submit-dls reply. On failure only Success and
// Error are set.
type SubmitResponse struct {
	Success      bool                       `json:"success"`
	Message      string                     `json:"message,omitempty"`
	Fields       orchestrator.FieldSet      `json:"fields,omitempty"`
	Screenshot   string                     `json:"screenshot,omitempty"`
	FieldResults []orchestrator.FieldResult `json:"fieldResults,omitempty"`
	Error        string                     `json:"error,omitempty"`
}

// MarshalJSON keeps "fields" present on success even when it is empty.
func (r SubmitResponse) MarshalJSON() ([]byte, error) {
	type plain SubmitResponse
	if !r.Success {
		return json.Marshal(plain(r))
	}
	fields := r.Fields
	if fields == nil {
		fields = orchestrator.FieldSet{}
	}
	return json.Marshal(struct {
		plain
		Fields orchestrator.FieldSet `json:"fields"`
	}{plain(r), fields})
}

// Handlers holds the HTTP handlers.
type Handlers struct {
	log       *zap.Logger
	submitter Submitter
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(logger *zap.Logger, submitter Submitter) *Handlers {
	return &Handlers{
		log:       logger.Named("handlers"),
		submitter: submitter,
	}
}

// RegisterRoutes sets up the routes that need no request body.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleIndex)
	r.Get("/healthz", h.HandleHealthCheck)
}

// HandleHealthCheck is a simple handler to confirm the server is responsive.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

const indexPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>DLS Map API</title></head>
<body>
<h2>DLS Map API is live</h2>
<p>Use <b>POST /submit-dls</b> to send form data for processing.</p>
<p>Example JSON body:</p>
<pre>{
  "fields": {
    "governorate": "محافظة العاصمة",
    "directorate": "اراضي عمان",
    "village": "اليادودة",
    "basin": "123",
    "sector": "جدول الأحياء (0)",
    "parcel": "00123"
  }
}</pre>
</body>
</html>
`

// HandleIndex serves the usage page.
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(indexPage))
}

// HandleSubmit runs one form submission and returns the screenshot.
func (h *Handlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(zap.String("request_id", middleware.GetReqID(r.Context())))

	var req SubmitRequest
	dec := json.NewDecoder(r.Body)
	// Numbers keep their exact text so the echo matches the input.
	dec.UseNumber()
	// An empty body is treated like {"fields": {}}.
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondWithError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Fields == nil {
		req.Fields = orchestrator.FieldSet{}
	}

	res, err := h.submitter.Submit(r.Context(), req.Fields)
	if err != nil {
		log.Error("Submission failed.", zap.String("stage", orchestrator.Stage(err)), zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respond(w, http.StatusOK, SubmitResponse{
		Success:      true,
		Message:      res.Message,
		Fields:       res.Fields,
		Screenshot:   res.Screenshot,
		FieldResults: res.FieldResults,
	})
}

// respondWithError sends a standardized JSON error response.
func (h *Handlers) respondWithError(w http.ResponseWriter, statusCode int, message string) {
	h.respond(w, statusCode, SubmitResponse{Success: false, Error: message})
}

func (h *Handlers) respond(w http.ResponseWriter, statusCode int, resp SubmitResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}
