package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kirillkom/medical-intake/internal/config"
	"github.com/kirillkom/medical-intake/internal/core/domain"
	"github.com/kirillkom/medical-intake/internal/observability/metrics"
)

type intakeFake struct {
	err   error
	calls int
	last  domain.IntakeRequest
}

func (f *intakeFake) Process(_ context.Context, req domain.IntakeRequest) (*domain.StructuredRecord, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	catalogID := int64(3)
	return &domain.StructuredRecord{
		ID:           10,
		RequestID:    req.RequestID,
		OriginalText: req.RawText,
		Summary:      "Ardor al orinar.",
		Translation:  "Burning when urinating.",
		Entities: []domain.Entity{
			{Label: "SYMPTOM", Text: "ardor"},
			{Label: "SYMPTOM", Text: "fiebre"},
			{Label: "ANATOMY", Text: "vejiga"},
		},
		Keywords:      []domain.Keyword{{Term: "ardor", Count: 1}},
		Sentiment:     domain.Sentiment{Polarity: domain.PolarityNegative, Score: 0.91},
		Decision:      domain.Decision{DiagnosisID: &catalogID, Label: "Cistitis", Confidence: 0.5, Method: domain.MethodLexical},
		AppointmentID: req.AppointmentID,
		UserID:        req.UserID,
		CreatedAt:     time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC),
	}, nil
}

type enqueuerFake struct {
	last domain.IntakeRequest
	err  error
}

func (f *enqueuerFake) Enqueue(_ context.Context, req domain.IntakeRequest) (*domain.IntakeJob, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	job := domain.NewIntakeJob("job-1", req, time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC))
	return &job, nil
}

type recordsFake struct {
	err       error
	lastLimit int
	lastUser  int64
}

func (f *recordsFake) GetForUser(_ context.Context, userID, recordID int64) (*domain.StructuredRecord, error) {
	f.lastUser = userID
	if f.err != nil {
		return nil, f.err
	}
	return &domain.StructuredRecord{ID: recordID, UserID: userID, Decision: domain.UndeterminedDecision()}, nil
}

func (f *recordsFake) ListForUser(_ context.Context, userID int64, limit int) ([]domain.StructuredRecord, error) {
	f.lastUser = userID
	f.lastLimit = limit
	return []domain.StructuredRecord{{ID: 2, UserID: userID}, {ID: 1, UserID: userID}}, f.err
}

type catalogFake struct {
	seeded    bool
	seedInput []string
}

func (f *catalogFake) Entries(context.Context) ([]domain.CatalogEntry, error) {
	return []domain.CatalogEntry{{ID: 1, Label: "Cistitis intersticial"}}, nil
}

func (f *catalogFake) Seed(_ context.Context, labels []string) (domain.SeedResult, error) {
	f.seeded = true
	f.seedInput = labels
	return domain.SeedResult{Inserted: []string{"Cistitis intersticial"}, Count: 1}, nil
}

type extractorFake struct {
	mime string
}

func (f *extractorFake) Extract(_ context.Context, mimeType string, data []byte) (string, error) {
	f.mime = mimeType
	return string(data), nil
}

type testDeps struct {
	intake    *intakeFake
	enqueuer  *enqueuerFake
	records   *recordsFake
	catalog   *catalogFake
	extractor *extractorFake
}

func newTestDeps() *testDeps {
	return &testDeps{
		intake:    &intakeFake{},
		enqueuer:  &enqueuerFake{},
		records:   &recordsFake{},
		catalog:   &catalogFake{},
		extractor: &extractorFake{},
	}
}

func (d *testDeps) services() Services {
	return Services{
		Intake:    d.intake,
		Enqueuer:  d.enqueuer,
		Records:   d.records,
		Catalog:   d.catalog,
		Extractor: d.extractor,
	}
}

func newTestHandler(t *testing.T, cfg config.Config, svc Services) http.Handler {
	t.Helper()
	if cfg.AuthDevUserID == 0 {
		cfg.AuthDevUserID = 7
	}
	router, err := NewRouter(cfg, svc)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return router.Handler()
}

func postJSON(handler http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestProcessIntakeReturnsRecordWithGroupedEntities(t *testing.T) {
	deps := newTestDeps()
	handler := newTestHandler(t, config.Config{}, deps.services())

	res := postJSON(handler, "/v1/nlp", `{"texto_original":"Tengo ardor al orinar","cita_id":4}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"texto_original", "resumen", "traduccion", "entidades", "palabras_claves", "sentimiento", "diagnosticos_id", "cita_id", "user_id"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("response is missing %q: %s", key, res.Body.String())
		}
	}
	entidades := body["entidades"].(map[string]any)
	if symptoms := entidades["SYMPTOM"].([]any); len(symptoms) != 2 || symptoms[0] != "ardor" {
		t.Fatalf("entities must be grouped by label in order, got %v", entidades)
	}
	if body["user_id"].(float64) != 7 || body["diagnosticos_id"].(float64) != 3 {
		t.Fatalf("unexpected ids in %v", body)
	}
	if deps.intake.last.AppointmentID == nil || *deps.intake.last.AppointmentID != 4 {
		t.Fatalf("cita_id must reach the pipeline, got %+v", deps.intake.last)
	}
	if deps.intake.last.RequestID == "" || deps.intake.last.RequestID != res.Header().Get(requestIDHeader) {
		t.Fatalf("request id must be propagated, got %q", deps.intake.last.RequestID)
	}
}

func TestProcessIntakeDecodesHintUnion(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *domain.DiagnosisHint
	}{
		{name: "integer", body: `{"texto_original":"x","diagnostico":12}`, want: domain.NewHintByID(12)},
		{name: "numeric string stays label", body: `{"texto_original":"x","diagnostico":"12"}`, want: domain.NewHintByLabel("12")},
		{name: "label", body: `{"texto_original":"x","diagnostico":"Cistitis"}`, want: domain.NewHintByLabel("Cistitis")},
		{name: "null", body: `{"texto_original":"x","diagnostico":null}`, want: nil},
		{name: "absent", body: `{"texto_original":"x"}`, want: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deps := newTestDeps()
			res := postJSON(newTestHandler(t, config.Config{}, deps.services()), "/v1/nlp", tc.body)
			if res.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
			}
			got := deps.intake.last.Hint
			if (got == nil) != (tc.want == nil) || (got != nil && *got != *tc.want) {
				t.Fatalf("hint = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestProcessIntakeRejectsInvalidBodies(t *testing.T) {
	for _, body := range []string{
		`{"cita_id":1}`,
		`{"texto_original":""}`,
		`{"texto_original":"x","diagnostico":1.5}`,
		`{"texto_original":"x","cita_id":"uno"}`,
		`not json`,
	} {
		deps := newTestDeps()
		res := postJSON(newTestHandler(t, config.Config{}, deps.services()), "/v1/nlp", body)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, res.Code)
		}
		if deps.intake.calls != 0 {
			t.Fatalf("body %s: pipeline must not run", body)
		}
	}
}

func TestIntakeRoutesRejectOversizedBodies(t *testing.T) {
	body := `{"texto_original":"` + strings.Repeat("a", maxJSONBodyBytes) + `"}`
	for _, path := range []string{"/v1/nlp", "/v1/nlp/async"} {
		deps := newTestDeps()
		res := postJSON(newTestHandler(t, config.Config{}, deps.services()), path, body)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, res.Code)
		}
		if deps.intake.calls != 0 || deps.enqueuer.last.RawText != "" {
			t.Fatalf("%s: oversized body must not reach the use case", path)
		}
	}
}

func TestProcessIntakeMapsDomainErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "validate appointment", errors.New("cita 9 not found")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrAnnotationUnavailable, "embed", errors.New("connection refused")), http.StatusServiceUnavailable},
		{domain.WrapError(domain.ErrTemporary, "persist", errors.New("db down")), http.StatusServiceUnavailable},
		{domain.WrapError(domain.ErrResolution, "resolve", errors.New("dimension mismatch")), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		deps := newTestDeps()
		deps.intake.err = tc.err
		res := postJSON(newTestHandler(t, config.Config{}, deps.services()), "/v1/nlp", `{"texto_original":"x"}`)
		if res.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, res.Code)
		}
		if tc.want == http.StatusInternalServerError && strings.Contains(res.Body.String(), "dimension") {
			t.Fatalf("internal error details must not leak: %s", res.Body.String())
		}
	}
}

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: subject}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestAuthMiddlewareRequiresValidBearer(t *testing.T) {
	deps := newTestDeps()
	handler := newTestHandler(t, config.Config{AuthJWTSecret: "s3cret"}, deps.services())

	cases := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer " + signToken(t, "other", "42"), http.StatusUnauthorized},
		{"Bearer " + signToken(t, "s3cret", "not-a-number"), http.StatusUnauthorized},
		{"Bearer " + signToken(t, "s3cret", "42"), http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/v1/historial", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != tc.want {
			t.Fatalf("header %q: expected %d, got %d", tc.header, tc.want, res.Code)
		}
	}
	if deps.records.lastUser != 42 {
		t.Fatalf("token subject must become the user id, got %d", deps.records.lastUser)
	}
}

func TestHealthzBypassesAuth(t *testing.T) {
	handler := newTestHandler(t, config.Config{AuthJWTSecret: "s3cret"}, newTestDeps().services())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestGetRecordMapsNotFoundAndBadID(t *testing.T) {
	deps := newTestDeps()
	deps.records.err = domain.WrapError(domain.ErrNotFound, "get record", errors.New("id=5"))
	handler := newTestHandler(t, config.Config{}, deps.services())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/historial/5", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/historial/abc", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric id, got %d", res.Code)
	}
}

func TestListRecordsPassesLimit(t *testing.T) {
	deps := newTestDeps()
	handler := newTestHandler(t, config.Config{}, deps.services())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/historial?limit=20", nil))
	if res.Code != http.StatusOK || deps.records.lastLimit != 20 {
		t.Fatalf("expected 200 with limit 20, got %d / %d", res.Code, deps.records.lastLimit)
	}
	var out []map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil || len(out) != 2 {
		t.Fatalf("expected 2 records, got %s", res.Body.String())
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/historial?limit=-1", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative limit, got %d", res.Code)
	}
}

func TestEnqueueIntakeReturns202(t *testing.T) {
	deps := newTestDeps()
	res := postJSON(newTestHandler(t, config.Config{}, deps.services()), "/v1/nlp/async", `{"texto_original":"fiebre alta","diagnostico":"Cistitis"}`)
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	var body jobResponse
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil || body.JobID != "job-1" || body.Status != "queued" {
		t.Fatalf("unexpected job response %s", res.Body.String())
	}
	if deps.enqueuer.last.Hint == nil || deps.enqueuer.last.Hint.Label != "Cistitis" {
		t.Fatalf("hint must be queued, got %+v", deps.enqueuer.last)
	}
}

func TestEnqueueIntakeRejectsUnknownAppointment(t *testing.T) {
	deps := newTestDeps()
	deps.enqueuer.err = domain.WrapError(domain.ErrInvalidInput, "validate appointment", errors.New("cita_id 99 does not exist"))
	res := postJSON(newTestHandler(t, config.Config{}, deps.services()), "/v1/nlp/async", `{"texto_original":"fiebre alta","cita_id":99}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.Code, res.Body.String())
	}
	if strings.Contains(res.Body.String(), "queued") {
		t.Fatalf("rejected request must not report a job: %s", res.Body.String())
	}
}

func TestEnqueueIntakeWithoutQueueIs503(t *testing.T) {
	svc := newTestDeps().services()
	svc.Enqueuer = nil
	res := postJSON(newTestHandler(t, config.Config{}, svc), "/v1/nlp/async", `{"texto_original":"x"}`)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestUploadIntakeExtractsDocumentText(t *testing.T) {
	deps := newTestDeps()
	handler := newTestHandler(t, config.Config{}, deps.services())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="nota.txt"`)
	partHeader.Set("Content-Type", "text/plain; charset=utf-8")
	part, err := mw.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write([]byte("dolor lumbar con fiebre"))
	_ = mw.WriteField("cita_id", "3")
	_ = mw.WriteField("diagnostico_id", "8")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/nlp/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	got := deps.intake.last
	if got.RawText != "dolor lumbar con fiebre" || *got.AppointmentID != 3 || got.Hint.Kind != domain.HintByID || got.Hint.ID != 8 {
		t.Fatalf("unexpected request from upload %+v", got)
	}
	if deps.extractor.mime != "text/plain; charset=utf-8" {
		t.Fatalf("part content type must reach the extractor, got %q", deps.extractor.mime)
	}
}

func TestSeedCatalogWithEmptyBodyUsesDefaults(t *testing.T) {
	deps := newTestDeps()
	handler := newTestHandler(t, config.Config{}, deps.services())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/diagnosticos/seed", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if !deps.catalog.seeded || deps.catalog.seedInput != nil {
		t.Fatalf("expected default seed, got %+v", deps.catalog)
	}
	var result domain.SeedResult
	if err := json.Unmarshal(res.Body.Bytes(), &result); err != nil || result.Count != 1 {
		t.Fatalf("unexpected seed response %s", res.Body.String())
	}
}

func TestListCatalog(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, newTestDeps().services())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/diagnosticos", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"diagnostico":"Cistitis intersticial"`) {
		t.Fatalf("unexpected catalog response %d %s", res.Code, res.Body.String())
	}
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	svc := newTestDeps().services()
	svc.Metrics = metrics.NewHTTPServerMetrics(serviceName)
	handler := newTestHandler(t, config.Config{}, svc)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "intake_http_requests_total") {
		t.Fatalf("expected http metrics, got %d", res.Code)
	}
}
