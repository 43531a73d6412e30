package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ridgelinehq/docpipe/internal/config"
	"github.com/ridgelinehq/docpipe/internal/core/domain"
	"github.com/ridgelinehq/docpipe/internal/core/ports"
)

type Router struct {
	cfg      config.Config
	ingest   ports.DocumentIngestor
	pipeline ports.PipelineService
	forms    ports.FormReader
	repo     ports.DocumentRepository
}

func NewRouter(
	cfg config.Config,
	ingest ports.DocumentIngestor,
	pipeline ports.PipelineService,
	forms ports.FormReader,
	repo ports.DocumentRepository,
) *Router {
	return &Router{
		cfg:      cfg,
		ingest:   ingest,
		pipeline: pipeline,
		forms:    forms,
		repo:     repo,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.documentRoutes)
	mux.HandleFunc("/v1/forms", rt.getForm)

	var handler http.Handler = mux
	if rt.cfg.APIMaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIAdmissionWait)
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateBurst)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(
		r.Context(),
		r.FormValue("client_id"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) documentRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/documents/"), "/")
	if rest == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		rt.getDocumentByID(w, r, id)
	case action == "status" && r.Method == http.MethodGet:
		rt.getStatus(w, r, id)
	case action == "cancel" && r.Method == http.MethodPost:
		rt.cancelProcessing(w, r, id)
	case action == "reprocess" && r.Method == http.MethodPost:
		rt.reprocessDocument(w, r, id)
	case action == "":
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown document action"})
	}
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := rt.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) getStatus(w http.ResponseWriter, r *http.Request, id string) {
	status, err := rt.pipeline.ProcessingStatus(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (rt *Router) cancelProcessing(w http.ResponseWriter, r *http.Request, id string) {
	cancelled, err := rt.pipeline.CancelProcessing(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": id,
		"cancelled":   cancelled,
	})
}

func (rt *Router) reprocessDocument(w http.ResponseWriter, r *http.Request, id string) {
	var opts domain.RunOptions
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}
	if opts.TaxYear == 0 {
		opts.TaxYear = rt.cfg.TaxYear
	}

	result, err := rt.pipeline.ReprocessDocument(r.Context(), id, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	clientID := strings.TrimSpace(r.URL.Query().Get("client_id"))
	if clientID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "client_id is required"})
		return
	}
	formType, err := parseFormType(r.URL.Query().Get("form_type"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	taxYear := rt.cfg.TaxYear
	if raw := r.URL.Query().Get("tax_year"); raw != "" {
		taxYear, err = strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tax_year must be an integer"})
			return
		}
	}

	form, err := rt.forms.GetForm(r.Context(), clientID, formType, taxYear)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func parseFormType(raw string) (domain.FormType, error) {
	switch domain.FormType(strings.TrimSpace(raw)) {
	case domain.Form1040:
		return domain.Form1040, nil
	case domain.FormScheduleB:
		return domain.FormScheduleB, nil
	case domain.FormScheduleC:
		return domain.FormScheduleC, nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "parse form type", errUnknownFormType)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
