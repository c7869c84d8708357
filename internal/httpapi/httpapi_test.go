package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathprep/taskforge/internal/logger"
	"github.com/mathprep/taskforge/internal/progress"
	"github.com/mathprep/taskforge/internal/snapdiff"
	"github.com/mathprep/taskforge/internal/taskgen"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGenerator struct {
	res  *taskgen.Result
	err  error
	got  taskgen.Request
	hits int
}

func (f *fakeGenerator) Generate(_ context.Context, req taskgen.Request) (*taskgen.Result, error) {
	f.hits++
	f.got = req
	return f.res, f.err
}

type fakeProgress struct {
	vec    progress.Vector
	err    error
	diff   snapdiff.Result
	course string
}

func (f *fakeProgress) Progress(_ context.Context, userID, courseID string) (progress.Vector, error) {
	f.course = courseID
	if f.err != nil {
		return progress.Vector{}, f.err
	}
	v := f.vec
	v.UserID = userID
	return v, nil
}

func (f *fakeProgress) ProgressDiff(_ context.Context, _, courseID string) snapdiff.Result {
	f.course = courseID
	return f.diff
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newTestRouter(t *testing.T, gen Generator, prog ProgressReader, ping Pinger) *gin.Engine {
	t.Helper()
	r, err := NewRouter(Options{Generator: gen, Progress: prog, Health: ping})
	require.NoError(t, err)
	return r
}

func do(r http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func TestGenerateTask_OK(t *testing.T) {
	gen := &fakeGenerator{res: &taskgen.Result{
		Task:         "Решите задания 6 и 9.",
		HardcodeTask: "prompt",
	}}
	r := newTestRouter(t, gen, &fakeProgress{}, nil)

	for _, path := range []string{"/openrouter-task-call", "/api/v1/tasks"} {
		t.Run(path, func(t *testing.T) {
			w := do(r, http.MethodPost, path, `{"user_id":"u1","course_id":1,"target_score":4,"number_of_words":null}`)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var res taskgen.Result
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
			assert.Equal(t, "Решите задания 6 и 9.", res.Task)
			assert.Equal(t, "u1", gen.got.UserID)
			assert.Equal(t, taskgen.CourseID("1"), gen.got.CourseID)
			assert.Equal(t, 4, gen.got.TargetScore)
			assert.Zero(t, gen.got.NumberOfWords)
		})
	}
}

func TestGenerateTask_IntegralFloatCourse(t *testing.T) {
	gen := &fakeGenerator{res: &taskgen.Result{Task: "ok"}}
	r := newTestRouter(t, gen, &fakeProgress{}, nil)

	w := do(r, http.MethodPost, "/openrouter-task-call", `{"user_id":"u1","course_id":1.0}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, taskgen.CourseID("1"), gen.got.CourseID)
}

func TestGenerateTask_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed json", `{"user_id":`},
		{"missing user", `{"course_id":"1"}`},
		{"empty user", `{"user_id":"","course_id":"1"}`},
		{"missing course", `{"user_id":"u1"}`},
		{"bool course", `{"user_id":"u1","course_id":true}`},
		{"negative words", `{"user_id":"u1","course_id":"1","number_of_words":-5}`},
		{"grade out of range", `{"user_id":"u1","course_id":"1","school_grade":14}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{}
			r := newTestRouter(t, gen, &fakeProgress{}, nil)

			w := do(r, http.MethodPost, "/openrouter-task-call", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			e := decodeError(t, w)
			assert.Equal(t, messageBadRequest, e.Response)
			assert.NotEmpty(t, e.Error)
			assert.Zero(t, gen.hits, "generator must not run")
		})
	}
}

func TestGenerateTask_InvalidFromPipeline(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("%w: course_id is required", taskgen.ErrInvalidRequest)}
	r := newTestRouter(t, gen, &fakeProgress{}, nil)

	w := do(r, http.MethodPost, "/openrouter-task-call", `{"user_id":"u1","course_id":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateTask_GenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("%w: %w", taskgen.ErrGeneration, errors.New("upstream 502"))}
	r := newTestRouter(t, gen, &fakeProgress{}, nil)

	w := do(r, http.MethodPost, "/openrouter-task-call", `{"user_id":"u1","course_id":"1"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	e := decodeError(t, w)
	assert.Equal(t, messageGenerationFailed, e.Response)
	assert.Contains(t, e.Error, "upstream 502")
}

func TestProgressEndpoints(t *testing.T) {
	prog := &fakeProgress{
		vec: progress.Vector{Entries: []progress.Entry{
			{Kind: progress.KindTopic, Key: "3.1", Prob: 0.4},
		}},
		diff: snapdiff.Result{Status: snapdiff.StatusNoData, Reason: "not enough snapshots", Entries: []snapdiff.Entry{}},
	}
	r := newTestRouter(t, &fakeGenerator{}, prog, nil)

	w := do(r, http.MethodGet, "/api/v1/progress/u1?course_id=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var v progress.Vector
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, "u1", v.UserID)
	assert.Len(t, v.Entries, 1)
	assert.Equal(t, "2", prog.course)

	w = do(r, http.MethodGet, "/api/v1/progress/u1/diff?course_id=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	var d snapdiff.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, snapdiff.StatusNoData, d.Status)
	assert.Equal(t, "3", prog.course)
}

func TestProgress_Error(t *testing.T) {
	r := newTestRouter(t, &fakeGenerator{}, &fakeProgress{err: errors.New("db down")}, nil)

	w := do(r, http.MethodGet, "/api/v1/progress/u1", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, messageInternal, decodeError(t, w).Response)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, &fakeGenerator{}, &fakeProgress{}, fakePinger{})
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/healthz", "").Code)

	r = newTestRouter(t, &fakeGenerator{}, &fakeProgress{}, fakePinger{err: errors.New("closed")})
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/healthz", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t, &fakeGenerator{}, &fakeProgress{}, nil)

	w := do(r, http.MethodOptions, "/openrouter-task-call", "",
		"Origin", "https://app.example.com",
		"Access-Control-Request-Method", "POST",
		"Access-Control-Request-Headers", "authorization, content-type",
	)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestRequestIDHeader(t *testing.T) {
	r := newTestRouter(t, &fakeGenerator{}, &fakeProgress{}, nil)

	w := do(r, http.MethodGet, "/healthz", "", "X-Request-ID", "req-42")
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))

	w = do(r, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRecoveryEnvelope(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(logger.Nop()))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := do(r, http.MethodGet, "/boom", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, messageInternal, decodeError(t, w).Response)
}
