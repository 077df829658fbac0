package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/showfunnel/internal/adreport"
	"github.com/sells-group/showfunnel/internal/model"
	"github.com/sells-group/showfunnel/internal/pipeline"
)

const (
	maxUploadBytes  = 64 << 20
	multipartMemory = 32 << 20
	uploadField     = "files"
)

// NewRouter builds the HTTP handler.
func NewRouter(s *Service, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	h := &handlers{svc: s}
	r.Get("/health", h.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/shows", h.shows)
		r.Get("/shows/{showID}", h.show)
		r.Get("/summary", h.summary)
		r.Get("/timeline", h.timeline)
		r.Get("/funnels", h.funnels)
		r.Get("/ads/{datasetType}", h.adTable)
		r.Post("/ads", h.uploadAds)
		r.Post("/refresh", h.refresh)
	})
	return r
}

// NewServer wraps h in an http.Server with read, write and idle timeouts.
func NewServer(port int, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

type handlers struct {
	svc *Service
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok", "loaded": false}
	if res := h.svc.Current(); res != nil {
		body["loaded"] = true
		body["run_id"] = res.RunID
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *handlers) shows(w http.ResponseWriter, _ *http.Request) {
	if res, ok := h.loaded(w); ok {
		writeJSON(w, http.StatusOK, res.Shows)
	}
}

func (h *handlers) show(w http.ResponseWriter, r *http.Request) {
	res, ok := h.loaded(w)
	if !ok {
		return
	}
	id := chi.URLParam(r, "showID")
	d, found := res.Show(id)
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("show %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handlers) summary(w http.ResponseWriter, _ *http.Request) {
	if res, ok := h.loaded(w); ok {
		writeJSON(w, http.StatusOK, res.Summary)
	}
}

func (h *handlers) timeline(w http.ResponseWriter, _ *http.Request) {
	if res, ok := h.loaded(w); ok {
		writeJSON(w, http.StatusOK, res.Timeline)
	}
}

func (h *handlers) funnels(w http.ResponseWriter, _ *http.Request) {
	if res, ok := h.loaded(w); ok {
		writeJSON(w, http.StatusOK, res.Funnels)
	}
}

func (h *handlers) adTable(w http.ResponseWriter, r *http.Request) {
	dt, valid := model.ParseDatasetType(chi.URLParam(r, "datasetType"))
	if !valid {
		writeError(w, http.StatusBadRequest, "unknown dataset type")
		return
	}
	res, ok := h.loaded(w)
	if !ok {
		return
	}
	t, found := res.Tables[dt]
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no %s report uploaded", dt))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type runResponse struct {
	RunID      string                     `json:"run_id"`
	Shows      int                        `json:"shows"`
	AdRecords  int                        `json:"ad_records"`
	Matched    int                        `json:"matched"`
	Funnels    int                        `json:"funnels"`
	Missing    []string                   `json:"missing_types"`
	Issues     []adreport.ValidationIssue `json:"issues,omitempty"`
	FileErrors []string                   `json:"file_errors,omitempty"`
}

func (h *handlers) uploadAds(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	files := r.MultipartForm.File[uploadField]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("no files in field %q", uploadField))
		return
	}

	uploads := make([]adreport.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("open %s", fh.Filename))
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("read %s", fh.Filename))
			return
		}
		uploads = append(uploads, adreport.Upload{Name: fh.Filename, Data: data})
	}

	res, err := h.svc.Upload(r.Context(), uploads)
	h.respondRun(w, res, err)
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Refresh(r.Context())
	h.respondRun(w, res, err)
}

func (h *handlers) respondRun(w http.ResponseWriter, res *pipeline.Result, err error) {
	var missing *adreport.MissingTypesError
	if err != nil && !errors.As(err, &missing) {
		zap.L().Error("api: run failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	resp := runResponse{
		RunID:     res.RunID,
		Shows:     len(res.Shows),
		AdRecords: res.AdRecordCount(),
		Matched:   res.MatchedCount(),
		Funnels:   len(res.Funnels),
		Missing:   res.MissingNames(),
		Issues:    res.Issues,
	}
	for _, fe := range res.FileErrors {
		resp.FileErrors = append(resp.FileErrors, fe.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) loaded(w http.ResponseWriter) (*pipeline.Result, bool) {
	res := h.svc.Current()
	if res == nil {
		writeError(w, http.StatusServiceUnavailable, "no data loaded")
		return nil, false
	}
	return res, true
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
