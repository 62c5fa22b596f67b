package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"auto_course_generator/document"
	"auto_course_generator/extract"
	"auto_course_generator/generator"
	"auto_course_generator/logger"
	"auto_course_generator/pipeline"
	"auto_course_generator/publisher"
	"auto_course_generator/store"
)

func newTestServer(t *testing.T, llm generator.LLMClient) http.Handler {
	return newTestServerWithStore(t, llm, store.NewMemoryStore())
}

func newTestServerWithStore(t *testing.T, llm generator.LLMClient, history store.ConversationStore) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	driver, err := generator.NewDriver(llm, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	p, err := pipeline.New(pipeline.Deps{
		Driver:    driver,
		Decoder:   extract.NewDecoder(3),
		Assembler: document.NewAssembler(document.Options{Transliterate: true}),
		Store:     history,
	}, pipeline.Options{MaxParallelLessons: 2})
	if err != nil {
		t.Fatal(err)
	}
	pub, err := publisher.New(t.TempDir(), logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	srv, err := New(p, pub, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return srv.Routes()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var createBody = map[string]any{
	"name":           "Intro to Graphs",
	"audience_level": "bachelors",
	"difficulty":     "Beginner",
	"module_count":   3,
	"duration":       "12 weeks",
	"credit":         "3",
}

func createCourse(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/courses", createBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID == "" || resp.State != string(pipeline.OutlineGenerated) {
		t.Fatalf("unexpected create response %s", rec.Body.String())
	}
	return resp.ID
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, generator.MockLLM{})
	if rec := do(t, h, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
}

func TestCourseFlow(t *testing.T) {
	h := newTestServer(t, generator.MockLLM{})
	id := createCourse(t, h)
	base := "/api/courses/" + id

	if rec := do(t, h, http.MethodPost, base+"/accept", nil); rec.Code != http.StatusOK {
		t.Fatalf("accept: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodPost, base+"/expand", nil); rec.Code != http.StatusOK {
		t.Fatalf("expand: %d %s", rec.Code, rec.Body.String())
	}
	rec := do(t, h, http.MethodPost, base+"/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rec.Code, rec.Body.String())
	}
	var exp struct {
		Artifact publisher.Artifact `json:"artifact"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &exp); err != nil {
		t.Fatal(err)
	}
	if exp.Artifact.Name != "MOCK101_-_Sample_Course.pdf" || exp.Artifact.ContentType != "application/pdf" {
		t.Fatalf("artifact = %+v", exp.Artifact)
	}

	rec = do(t, h, http.MethodGet, base+"/document", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("document: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment") {
		t.Fatalf("missing content disposition")
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Fatalf("body is not a pdf")
	}

	if rec := do(t, h, http.MethodPost, base+"/export", nil); rec.Code != http.StatusOK {
		t.Fatalf("regenerate: %d %s", rec.Code, rec.Body.String())
	}
}

func TestInvalidTransitionIsConflict(t *testing.T) {
	h := newTestServer(t, generator.MockLLM{})
	id := createCourse(t, h)
	rec := do(t, h, http.MethodPost, "/api/courses/"+id+"/expand", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expand before accept = %d", rec.Code)
	}
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil || env.Error.Code != "invalid_transition" {
		t.Fatalf("unexpected envelope %s", rec.Body.String())
	}
}

func TestDecodeFailureSurfacesExcerpt(t *testing.T) {
	llm := &generator.ScriptedLLM{Respond: func(p generator.Prompt) (string, error) {
		if p.Stage == generator.StageExtract {
			return "I could not produce JSON today.", nil
		}
		return generator.MockLLM{}.Complete(context.Background(), p)
	}}
	h := newTestServer(t, llm)
	id := createCourse(t, h)
	rec := do(t, h, http.MethodPost, "/api/courses/"+id+"/accept", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("accept = %d %s", rec.Code, rec.Body.String())
	}
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Error.Stage != string(generator.StageExtract) || !strings.Contains(env.Error.Excerpt, "could not produce JSON") {
		t.Fatalf("unexpected envelope %+v", env.Error)
	}

	rec = do(t, h, http.MethodPost, "/api/courses/"+id+"/accept", map[string]any{
		"lessons": []map[string]any{{"module": "Module 1", "lessons": []string{"Lesson A"}}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("accept corrected map = %d %s", rec.Code, rec.Body.String())
	}
}

func TestTransportErrorStatus(t *testing.T) {
	h := newTestServer(t, &generator.ScriptedLLM{Respond: func(generator.Prompt) (string, error) {
		return "", errors.New("upstream down")
	}})
	rec := do(t, h, http.MethodPost, "/api/courses", createBody)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
}

// sessionRecorder remembers every session id that reached the store.
type sessionRecorder struct {
	*store.MemoryStore
	mu  sync.Mutex
	ids map[string]bool
}

func (r *sessionRecorder) Save(ctx context.Context, sessionID string, turns []generator.Turn) error {
	r.mu.Lock()
	r.ids[sessionID] = true
	r.mu.Unlock()
	return r.MemoryStore.Save(ctx, sessionID, turns)
}

func TestFailedCreateLeavesNoHistory(t *testing.T) {
	llm := &generator.ScriptedLLM{Respond: func(p generator.Prompt) (string, error) {
		if p.Stage == generator.StageTabulate {
			return "", errors.New("upstream down")
		}
		return "Write the outline.", nil
	}}
	rec := &sessionRecorder{MemoryStore: store.NewMemoryStore(), ids: map[string]bool{}}
	h := newTestServerWithStore(t, llm, rec)
	if resp := do(t, h, http.MethodPost, "/api/courses", createBody); resp.Code != http.StatusBadGateway {
		t.Fatalf("create = %d %s", resp.Code, resp.Body.String())
	}
	if len(rec.ids) != 1 {
		t.Fatalf("expected the first stage to be saved, saw %d sessions", len(rec.ids))
	}
	for id := range rec.ids {
		turns, err := rec.Load(context.Background(), id)
		if err != nil || len(turns) != 0 {
			t.Fatalf("session %s kept %d turns (%v)", id, len(turns), err)
		}
	}
}

func TestCreateValidation(t *testing.T) {
	h := newTestServer(t, generator.MockLLM{})
	body := map[string]any{"name": "X", "audience_level": "PhD", "difficulty": "Beginner", "module_count": 2}
	if rec := do(t, h, http.MethodPost, "/api/courses", body); rec.Code != http.StatusBadRequest {
		t.Fatalf("create = %d", rec.Code)
	}
}

func TestUnknownSession(t *testing.T) {
	h := newTestServer(t, generator.MockLLM{})
	if rec := do(t, h, http.MethodGet, "/api/courses/nope", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get = %d", rec.Code)
	}
}

func TestScheduleAndPreview(t *testing.T) {
	h := newTestServer(t, generator.MockLLM{})
	id := createCourse(t, h)
	base := "/api/courses/" + id

	if rec := do(t, h, http.MethodPost, base+"/schedule", map[string]string{"start_date": "06/01/2025"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, base+"/schedule", map[string]string{"start_date": "2025-01-06"}); rec.Code != http.StatusOK {
		t.Fatalf("schedule = %d %s", rec.Code, rec.Body.String())
	}
	rec := do(t, h, http.MethodGet, base+"/schedule.pdf", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("schedule.pdf = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if rec := do(t, h, http.MethodGet, base+"/outline.pdf", nil); rec.Code != http.StatusOK {
		t.Fatalf("outline.pdf = %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodGet, base+"/preview", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<strong>Course Objectives</strong>") {
		t.Fatalf("preview = %d %s", rec.Code, rec.Body.String())
	}
}

func TestReviseResetAndHistory(t *testing.T) {
	h := newTestServer(t, generator.MockLLM{})
	id := createCourse(t, h)
	base := "/api/courses/" + id

	if rec := do(t, h, http.MethodPost, base+"/changes", nil); rec.Code != http.StatusOK {
		t.Fatalf("changes = %d", rec.Code)
	}
	rec := do(t, h, http.MethodPost, base+"/revise", map[string]any{
		"module_changes": map[string]string{"Module 2: Practice": "add a capstone"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("revise = %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodGet, base+"/history", nil)
	var hist struct {
		Turns []generator.Turn `json:"turns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &hist); err != nil || len(hist.Turns) != 6 {
		t.Fatalf("history = %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodDelete, base+"/history", nil); rec.Code != http.StatusOK {
		t.Fatalf("clear history = %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, base+"/reset", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"state":"collecting"`) {
		t.Fatalf("reset = %d %s", rec.Code, rec.Body.String())
	}
}
