package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/kirillkom/medical-intake/internal/config"
	"github.com/kirillkom/medical-intake/internal/core/domain"
	"github.com/kirillkom/medical-intake/internal/core/ports"
	"github.com/kirillkom/medical-intake/internal/observability/metrics"
)

const serviceName = "api"

const maxJSONBodyBytes = 1 << 20

// Services are the inbound ports the HTTP surface dispatches to. Enqueuer, Extractor and
// Metrics are optional.
type Services struct {
	Intake    ports.IntakeProcessor
	Enqueuer  ports.IntakeEnqueuer
	Records   ports.RecordReader
	Catalog   ports.CatalogService
	Extractor ports.TextExtractor
	Metrics   *metrics.HTTPServerMetrics
}

type Router struct {
	svc       Services
	validator *requestValidator

	jwtSecret        string
	devUserID        int64
	limiter          *rate.Limiter
	maxInFlight      int
	backpressureWait time.Duration
	maxUploadBytes   int64
}

func NewRouter(cfg config.Config, svc Services) (*Router, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.APIRateLimitRPS > 0 {
		burst := cfg.APIRateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.APIRateLimitRPS), burst)
	}
	maxUpload := cfg.APIMaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}

	return &Router{
		svc:              svc,
		validator:        validator,
		jwtSecret:        cfg.AuthJWTSecret,
		devUserID:        cfg.AuthDevUserID,
		limiter:          limiter,
		maxInFlight:      cfg.APIMaxInFlight,
		backpressureWait: cfg.APIBackpressureWait,
		maxUploadBytes:   maxUpload,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware, accessLogMiddleware)

	r.Get("/healthz", rt.healthz)
	if rt.svc.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.svc.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(rt.trafficControl)
		r.Use(authMiddleware(rt.jwtSecret, rt.devUserID))

		r.With(limitBody(maxJSONBodyBytes), rt.validator.middleware("/v1/nlp")).Post("/nlp", rt.processIntake)
		r.With(limitBody(maxJSONBodyBytes), rt.validator.middleware("/v1/nlp/async")).Post("/nlp/async", rt.enqueueIntake)
		r.Post("/nlp/upload", rt.uploadIntake)

		r.Get("/historial", rt.listRecords)
		r.Get("/historial/{recordID}", rt.getRecord)

		r.Get("/diagnosticos", rt.listCatalog)
		r.Post("/diagnosticos/seed", rt.seedCatalog)
	})

	var handler http.Handler = r
	if rt.svc.Metrics != nil {
		handler = rt.svc.Metrics.Middleware(serviceName, handler)
	}
	return handler
}

func (rt *Router) trafficControl(next http.Handler) http.Handler {
	var onReject func(string)
	if rt.svc.Metrics != nil {
		onReject = func(reason string) { rt.svc.Metrics.RecordRejected(serviceName, reason) }
	}
	next = backpressureMiddleware(next, rt.maxInFlight, rt.backpressureWait, onReject)
	return rateLimitMiddleware(next, rt.limiter, onReject)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) processIntake(w http.ResponseWriter, r *http.Request) {
	req, err := rt.decodeIntake(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := rt.svc.Intake.Process(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (rt *Router) enqueueIntake(w http.ResponseWriter, r *http.Request) {
	if rt.svc.Enqueuer == nil {
		writeError(w, r, domain.WrapError(domain.ErrTemporary, "enqueue intake", errors.New("async intake is not configured")))
		return
	}
	req, err := rt.decodeIntake(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	job, err := rt.svc.Enqueuer.Enqueue(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobResponse{JobID: job.ID, Status: "queued", EnqueuedAt: job.EnqueuedAt})
}

func (rt *Router) decodeIntake(r *http.Request) (domain.IntakeRequest, error) {
	var payload intakeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return domain.IntakeRequest{}, invalidInput("decode intake", fmt.Errorf("invalid json: %w", err))
	}
	return payload.toDomain(rt.currentUser(r), requestIDFromContext(r.Context()))
}

// uploadIntake runs the pipeline on the text of an uploaded text or PDF document.
func (rt *Router) uploadIntake(w http.ResponseWriter, r *http.Request) {
	if rt.svc.Extractor == nil {
		writeError(w, r, domain.WrapError(domain.ErrTemporary, "upload intake", errors.New("document extraction is not configured")))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes)
	if err := r.ParseMultipartForm(rt.maxUploadBytes); err != nil {
		writeError(w, r, invalidInput("parse upload", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, invalidInput("parse upload", errors.New("multipart field 'file' is required")))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, invalidInput("read upload", err))
		return
	}
	text, err := rt.svc.Extractor.Extract(r.Context(), header.Header.Get("Content-Type"), data)
	if err != nil {
		writeError(w, r, err)
		return
	}

	req := domain.IntakeRequest{
		RawText:   text,
		UserID:    rt.currentUser(r),
		RequestID: requestIDFromContext(r.Context()),
	}
	if raw := strings.TrimSpace(r.FormValue("cita_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, invalidInput("parse upload", fmt.Errorf("cita_id %q is not an integer", raw)))
			return
		}
		req.AppointmentID = &id
	}
	if raw := strings.TrimSpace(r.FormValue("diagnostico_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, invalidInput("parse upload", fmt.Errorf("diagnostico_id %q is not an integer", raw)))
			return
		}
		req.Hint = domain.NewHintByID(id)
	} else if label := strings.TrimSpace(r.FormValue("diagnostico")); label != "" {
		req.Hint = domain.NewHintByLabel(label)
	}

	rec, err := rt.svc.Intake.Process(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (rt *Router) listRecords(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, r, invalidInput("list records", fmt.Errorf("limit %q must be a non-negative integer", raw)))
			return
		}
		limit = parsed
	}

	records, err := rt.svc.Records.ListForUser(r.Context(), rt.currentUser(r), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]recordResponse, 0, len(records))
	for i := range records {
		out = append(out, toRecordResponse(&records[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (rt *Router) getRecord(w http.ResponseWriter, r *http.Request) {
	recordID, err := strconv.ParseInt(chi.URLParam(r, "recordID"), 10, 64)
	if err != nil {
		writeError(w, r, invalidInput("get record", errors.New("record id must be an integer")))
		return
	}
	rec, err := rt.svc.Records.GetForUser(r.Context(), rt.currentUser(r), recordID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (rt *Router) listCatalog(w http.ResponseWriter, r *http.Request) {
	entries, err := rt.svc.Catalog.Entries(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.CatalogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// seedCatalog inserts missing labels; an empty body seeds the built-in catalog.
func (rt *Router) seedCatalog(w http.ResponseWriter, r *http.Request) {
	var payload seedRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, invalidInput("decode seed", fmt.Errorf("invalid json: %w", err)))
		return
	}
	result, err := rt.svc.Catalog.Seed(r.Context(), payload.Diagnosticos)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) currentUser(r *http.Request) int64 {
	userID, _ := userIDFromContext(r.Context())
	return userID
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
