package taskgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathprep/taskforge/internal/llm"
	"github.com/mathprep/taskforge/internal/snapdiff"
	"github.com/mathprep/taskforge/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := store.Open(store.DriverSQLite, fmt.Sprintf("file:taskgen_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedStudent(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Tasks().Append(ctx, &store.TaskRecord{
		UserID: "u1", CourseID: "1", HardcodeTask: "old prompt", CreatedAt: now.Add(-48 * time.Hour),
	}))
	require.NoError(t, s.Snapshots().Append(ctx, &store.MasterySnapshot{
		UserID: "u1", CourseID: "1",
		RawData:      json.RawMessage(`[{"topic":"3.1","prob":0.2}]`),
		RunTimestamp: now.Add(-48 * time.Hour),
	}))
	for i, correct := range []bool{false, false, true} {
		require.NoError(t, s.Activity().Append(ctx, &store.Activity{
			UserID:     "u1",
			CourseID:   "1",
			QuestionID: fmt.Sprintf("Q%d", i),
			IsCorrect:  correct,
			Topics:     []string{"3.1"},
			CreatedAt:  now.Add(-time.Duration(10-i) * time.Hour),
		}))
	}
	require.NoError(t, s.Profiles().Upsert(ctx, &store.Profile{
		UserID:   "u1",
		Homework: json.RawMessage(`{"fipi": ["Q0", "Q9"]}`),
	}))
}

func validRequest() Request {
	return Request{
		UserID:        "u1",
		CourseID:      "1",
		TargetScore:   4,
		WeeklyHours:   3,
		SchoolGrade:   9,
		DateString:    "1 марта",
		NumberOfWords: 300,
	}
}

func TestGenerate(t *testing.T) {
	s := openTestStore(t)
	seedStudent(t, s)
	ctx := context.Background()

	mock := llm.NewMockProvider(llm.MockResponse{
		Text:  "  Персональное задание на неделю.  ",
		Usage: llm.Usage{InputTokens: 900, OutputTokens: 120},
	})
	p := New(s, mock, DefaultConfig(), nil)

	res, err := p.Generate(ctx, validRequest())
	require.NoError(t, err)

	assert.Equal(t, "Персональное задание на неделю.", res.Task)
	assert.Contains(t, res.HardcodeTask, "Целевой балл: 4")
	assert.Equal(t, "mock", res.Metadata.Model)
	assert.Equal(t, 900, res.Metadata.InputTokens)
	assert.NotZero(t, res.Metadata.TaskID)
	assert.NotZero(t, res.Metadata.SnapshotID)
	require.NotNil(t, res.Metadata.Window)
	assert.True(t, res.Metadata.Window.Open)

	require.Len(t, res.PreviouslyFailedTopics, 1)
	assert.Equal(t, "3.1", res.PreviouslyFailedTopics[0].Code)
	assert.Equal(t, 2, res.PreviouslyFailedTopics[0].Count)

	require.Equal(t, snapdiff.StatusOK, res.ProgressDiff.Status)
	require.NotEmpty(t, res.ProgressDiff.Entries)
	assert.Equal(t, "topic=3.1", res.ProgressDiff.Entries[0].Key)

	assert.False(t, res.Progress.Empty())
	assert.Len(t, res.Homework.Items, 2)

	req, ok := mock.LastCall()
	require.True(t, ok)
	assert.InDelta(t, 0.9, req.Temperature, 1e-9)
	assert.Equal(t, 40000, req.MaxTokens)
	assert.Contains(t, req.System, "около 300 слов")
	require.Len(t, req.Messages, 1)
	assert.Equal(t, res.HardcodeTask, req.Messages[0].Content)

	tasks, err := s.Tasks().Latest(ctx, "u1", "1", 1)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, res.Metadata.TaskID, tasks[0].ID)
	assert.Equal(t, res.HardcodeTask, tasks[0].HardcodeTask)
	assert.Equal(t, res.Task, tasks[0].Task)

	snaps, err := s.Snapshots().Latest(ctx, "u1", "1", 5)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, res.Metadata.SnapshotID, snaps[0].ID)
	require.NotNil(t, res.ProgressDiff.PreviousAt)
	assert.True(t, res.ProgressDiff.PreviousAt.Equal(snaps[1].RunTimestamp))
}

func snapshotCount(t *testing.T, s *store.Store) int {
	t.Helper()
	snaps, err := s.Snapshots().Latest(context.Background(), "u1", "1", 50)
	require.NoError(t, err)
	return len(snaps)
}

func TestGenerate_FailureKeepsSnapshots(t *testing.T) {
	s := openTestStore(t)
	seedStudent(t, s)
	ctx := context.Background()

	mock := llm.NewMockProvider(
		llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("502")}},
		llm.MockResponse{Err: &llm.ErrRateLimit{Err: errors.New("429")}},
		llm.MockResponse{Text: "  "},
	)
	p := New(s, mock, DefaultConfig(), nil)

	for range 3 {
		_, err := p.Generate(ctx, validRequest())
		require.ErrorIs(t, err, ErrGeneration)
		assert.Equal(t, 1, snapshotCount(t, s))
	}

	mock.AddResponse(llm.MockResponse{Text: "Задание."})
	res, err := p.Generate(ctx, validRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, snapshotCount(t, s))

	// The diff still compares against the seeded run, not a failed one.
	require.Equal(t, snapdiff.StatusOK, res.ProgressDiff.Status)
	require.NotNil(t, res.ProgressDiff.PreviousAt)
	assert.WithinDuration(t, time.Now().Add(-48*time.Hour), *res.ProgressDiff.PreviousAt, time.Minute)
}

func TestGenerate_Structured(t *testing.T) {
	s := openTestStore(t)
	seedStudent(t, s)
	cfg := DefaultConfig()
	cfg.Structured = true

	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"task":"  Повторите проценты.  ","focus_topics":["3.1"," 3.1","42.42"]}`),
	})
	p := New(s, mock, cfg, nil)

	res, err := p.Generate(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, "Повторите проценты.", res.Task)
	assert.Equal(t, []string{"3.1"}, res.FocusTopics)

	req, ok := mock.LastCall()
	require.True(t, ok)
	require.NotNil(t, req.Schema)
	assert.Equal(t, "task-envelope", req.Schema.Name)
	assert.Contains(t, req.System, "focus_topics")

	tasks, err := s.Tasks().Latest(context.Background(), "u1", "1", 1)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Повторите проценты.", tasks[0].Task)
}

func TestGenerate_StructuredRejectsBadEnvelope(t *testing.T) {
	s := openTestStore(t)
	seedStudent(t, s)
	cfg := DefaultConfig()
	cfg.Structured = true

	p := New(s, llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"task":"Без тем"}`),
	}), cfg, nil)

	_, err := p.Generate(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrGeneration)
	var inv *llm.ErrInvalidResponse
	assert.ErrorAs(t, err, &inv)
	assert.Equal(t, 1, snapshotCount(t, s))
}

func TestGenerate_PlainModeSendsNoSchema(t *testing.T) {
	s := openTestStore(t)
	mock := llm.NewMockProvider(llm.MockResponse{Text: "ok"})
	p := New(s, mock, DefaultConfig(), nil)

	res, err := p.Generate(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Nil(t, res.FocusTopics)
	req, _ := mock.LastCall()
	assert.Nil(t, req.Schema)
	assert.NotContains(t, req.System, "focus_topics")
}

func TestGenerate_EmptyStudentStillProducesTask(t *testing.T) {
	s := openTestStore(t)
	mock := llm.NewMockProvider(llm.MockResponse{Text: "Задание для новичка."})
	p := New(s, mock, DefaultConfig(), nil)

	res, err := p.Generate(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, "Задание для новичка.", res.Task)
	assert.Nil(t, res.Metadata.Window)
	assert.True(t, res.ProgressDiff.NoData())
	assert.NotNil(t, res.PreviouslyFailedTopics)
	assert.True(t, res.Homework.Empty())
	assert.Contains(t, res.HardcodeTask, "Нет данных")

	b, err := json.Marshal(res)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	for _, key := range []string{"task", "hardcode_task", "previously_failed_topics", "failed_skills", "metadata", "progress_diff", "progress", "homework"} {
		assert.Contains(t, decoded, key)
	}
}

func TestGenerate_LLMFailure(t *testing.T) {
	s := openTestStore(t)
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("502")}})
	p := New(s, mock, DefaultConfig(), nil)

	_, err := p.Generate(context.Background(), validRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneration)
	var unavail *llm.ErrProviderUnavailable
	assert.ErrorAs(t, err, &unavail)

	tasks, err := s.Tasks().Latest(context.Background(), "u1", "1", 1)
	require.NoError(t, err)
	assert.Empty(t, tasks, "no task row on failure")
}

func TestGenerate_EmptyCompletion(t *testing.T) {
	s := openTestStore(t)
	p := New(s, llm.NewMockProvider(llm.MockResponse{Text: "   "}), DefaultConfig(), nil)

	_, err := p.Generate(context.Background(), validRequest())
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestGenerate_InvalidRequest(t *testing.T) {
	s := openTestStore(t)
	mock := llm.NewMockProvider()
	p := New(s, mock, DefaultConfig(), nil)

	_, err := p.Generate(context.Background(), Request{CourseID: "1"})
	require.Error(t, err)
	assert.True(t, IsInvalidRequest(err))
	assert.Zero(t, mock.CallCount())
}

func TestGenerate_WithoutSnapshotCapture(t *testing.T) {
	s := openTestStore(t)
	seedStudent(t, s)
	cfg := DefaultConfig()
	cfg.CaptureSnapshot = false

	p := New(s, llm.NewMockProvider(llm.MockResponse{Text: "ok"}), cfg, nil)
	res, err := p.Generate(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Zero(t, res.Metadata.SnapshotID)
	assert.True(t, res.ProgressDiff.NoData(), "only one stored snapshot")
}

func TestAssemble_DoesNotWrite(t *testing.T) {
	s := openTestStore(t)
	seedStudent(t, s)
	ctx := context.Background()
	mock := llm.NewMockProvider()
	p := New(s, mock, DefaultConfig(), nil)

	a, err := p.Assemble(ctx, validRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, a.Prompt.User)
	assert.Equal(t, snapdiff.StatusOK, a.Diff.Status, "current progress is diffed without storing it")
	assert.Zero(t, mock.CallCount())

	snaps, err := s.Snapshots().Latest(ctx, "u1", "1", 5)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}
