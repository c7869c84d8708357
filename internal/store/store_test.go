package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown database driver")
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		require.NoError(t, s.DB().QueryRow("PRAGMA "+tt.pragma).Scan(&got))
		assert.Equal(t, tt.want, got, "PRAGMA %s", tt.pragma)
	}
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_time_format=sqlite", sqliteDSN("a.db"))
	assert.Equal(t, "file:x?mode=memory&_time_format=sqlite", sqliteDSN("file:x?mode=memory"))
	assert.Equal(t, "a.db?_time_format=sqlite", sqliteDSN("a.db?_time_format=sqlite"))
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestActivityAppendAndList(t *testing.T) {
	s := openTestStore(t)
	repo := s.Activity()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := []*Activity{
		{UserID: "u1", CourseID: "1", QuestionID: "q1", IsCorrect: true, Topics: []string{"1.1"}, CreatedAt: base},
		{UserID: "u1", CourseID: "1", QuestionID: "q2", IsCorrect: false, ProblemNumberType: 6, Skills: []int{3, 4}, CreatedAt: base.Add(time.Hour)},
		{UserID: "u1", QuestionID: "q3", IsCorrect: false, CreatedAt: base.Add(2 * time.Hour)},
		{UserID: "u1", CourseID: "2", QuestionID: "q4", IsCorrect: false, CreatedAt: base.Add(3 * time.Hour)},
		{UserID: "u2", CourseID: "1", QuestionID: "q5", IsCorrect: false, CreatedAt: base},
	}
	for _, a := range rows {
		require.NoError(t, repo.Append(ctx, a))
		assert.NotZero(t, a.ID)
	}

	all, err := repo.List(ctx, ActivityQuery{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "q1", all[0].QuestionID)
	assert.Equal(t, []string{"1.1"}, all[0].Topics)
	assert.Equal(t, []int{3, 4}, all[1].Skills)
	assert.Equal(t, 6, all[1].ProblemNumberType)
	assert.True(t, all[0].CreatedAt.Equal(base))

	// Course filter keeps rows without a course.
	course1, err := repo.List(ctx, ActivityQuery{UserID: "u1", CourseID: "1"})
	require.NoError(t, err)
	assert.Len(t, course1, 3)

	wrong, err := repo.List(ctx, ActivityQuery{
		UserID:        "u1",
		CourseID:      "1",
		From:          base.Add(30 * time.Minute),
		To:            base.Add(2 * time.Hour),
		OnlyIncorrect: true,
	})
	require.NoError(t, err)
	require.Len(t, wrong, 2)
	assert.Equal(t, "q2", wrong[0].QuestionID)
	assert.Equal(t, "q3", wrong[1].QuestionID)
}

func TestActivityTolerantJSON(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.DB().Exec(`INSERT INTO student_activity (user_id, question_id, is_correct, topics, skills, created_at)
		VALUES ('u', 'q', 0, '[1.2, "3.1"]', '["7", 8, "x"]', '2025-01-01 00:00:00+00:00')`)
	require.NoError(t, err)
	_, err = s.DB().Exec(`INSERT INTO student_activity (user_id, question_id, is_correct, topics, skills, created_at)
		VALUES ('u', 'q2', 0, 'not json', NULL, '2025-01-02 00:00:00+00:00')`)
	require.NoError(t, err)

	got, err := s.Activity().List(ctx, ActivityQuery{UserID: "u"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"1.2", "3.1"}, got[0].Topics)
	assert.Equal(t, []int{7, 8}, got[0].Skills)
	assert.Nil(t, got[1].Topics)
	assert.Nil(t, got[1].Skills)
}

func TestSnapshotAppendAndLatest(t *testing.T) {
	s := openTestStore(t)
	repo := s.Snapshots()
	ctx := context.Background()

	none, err := repo.Latest(ctx, "u1", "1", 2)
	require.NoError(t, err)
	assert.Empty(t, none)

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		raw := json.RawMessage(fmt.Sprintf(`[{"topic":"1.1","prob":0.%d}]`, i+1))
		require.NoError(t, repo.Append(ctx, &MasterySnapshot{
			UserID: "u1", CourseID: "1", RawData: raw, RunTimestamp: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, repo.Append(ctx, &MasterySnapshot{UserID: "u1", CourseID: "2", RunTimestamp: base.Add(10 * time.Hour)}))

	got, err := repo.Latest(ctx, "u1", "1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.JSONEq(t, `[{"topic":"1.1","prob":0.3}]`, string(got[0].RawData))
	assert.JSONEq(t, `[{"topic":"1.1","prob":0.2}]`, string(got[1].RawData))
	assert.True(t, got[0].RunTimestamp.After(got[1].RunTimestamp))
}

func TestProfileUpsert(t *testing.T) {
	s := openTestStore(t)
	repo := s.Profiles()
	ctx := context.Background()

	p, err := repo.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, repo.Upsert(ctx, &Profile{
		UserID:       "u1",
		Homework:     json.RawMessage(`{"MCQ":["1"]}`),
		HomeworkName: "hw-1",
	}))
	require.NoError(t, repo.Upsert(ctx, &Profile{
		UserID:       "u1",
		Homework:     json.RawMessage(`{"FIPI":["a",2]}`),
		HomeworkName: "hw-2",
	}))

	p, err = repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "hw-2", p.HomeworkName)
	assert.JSONEq(t, `{"FIPI":["a",2]}`, string(p.Homework))
}

func TestTaskAppendAndLatest(t *testing.T) {
	s := openTestStore(t)
	repo := s.Tasks()
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Append(ctx, &TaskRecord{
			UserID:       "u1",
			CourseID:     "1",
			HardcodeTask: fmt.Sprintf("prompt %d", i),
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		}))
	}

	got, err := repo.Latest(ctx, "u1", "1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "prompt 2", got[0].HardcodeTask)
	assert.Equal(t, "prompt 1", got[1].HardcodeTask)
	assert.Empty(t, got[0].Task)

	other, err := repo.Latest(ctx, "u1", "2", 2)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestQuestionBank(t *testing.T) {
	s := openTestStore(t)
	repo := s.QuestionBank()
	ctx := context.Background()

	require.NoError(t, repo.PutFipiQuestion(ctx, FipiQuestion{QuestionID: "f1", ProblemNumberType: 9, Topics: []string{"3.1"}}))
	require.NoError(t, repo.PutFipiQuestion(ctx, FipiQuestion{QuestionID: "f1", ProblemNumberType: 9, Topics: []string{"3.1", "3.2"}}))
	require.NoError(t, repo.PutQuestionSkills(ctx, "m1", []int{12, 13}))

	fipi, err := repo.FipiQuestions(ctx, []string{"f1", "f2", "f1", ""})
	require.NoError(t, err)
	require.Len(t, fipi, 1)
	assert.Equal(t, []string{"3.1", "3.2"}, fipi["f1"].Topics)
	assert.Equal(t, 9, fipi["f1"].ProblemNumberType)

	skills, err := repo.QuestionSkills(ctx, []string{"m1", "m2"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]int{"m1": {12, 13}}, skills)

	empty, err := repo.QuestionSkills(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestHomeworkForQuestions(t *testing.T) {
	s := openTestStore(t)
	repo := s.Homework()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	yes, no := true, false

	require.NoError(t, repo.Append(ctx, &HomeworkProgress{UserID: "u1", QuestionID: "q1", HomeworkName: "hw", IsCorrect: &no, CompletionStatus: "completed", CreatedAt: base}))
	require.NoError(t, repo.Append(ctx, &HomeworkProgress{UserID: "u1", QuestionID: "q1", HomeworkName: "hw", IsCorrect: &yes, CompletionStatus: "completed", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, repo.Append(ctx, &HomeworkProgress{UserID: "u1", QuestionID: "q2", HomeworkName: "old", CreatedAt: base}))

	got, err := repo.ForQuestions(ctx, "u1", "hw", []string{"q1", "q2"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[1].IsCorrect)
	assert.True(t, *got[1].IsCorrect)

	all, err := repo.ForQuestions(ctx, "u1", "", []string{"q1", "q2"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Nil(t, all[1].IsCorrect)
}

func TestLLMEvents(t *testing.T) {
	s := openTestStore(t)
	repo := s.Events()
	ctx := context.Background()

	require.NoError(t, repo.AppendLLMRequest(ctx, LLMRequestEventData{
		Provider: "openrouter", Model: "m1", Purpose: "task-gen",
		InputTokens: 100, OutputTokens: 50, LatencyMs: 200, Success: true,
		RequestBody: "req", ResponseBody: "resp",
	}))
	require.NoError(t, repo.AppendLLMRequest(ctx, LLMRequestEventData{
		Provider: "openrouter", Model: "m1", Purpose: "task-gen",
		InputTokens: 10, OutputTokens: 5, LatencyMs: 100, Success: false, ErrorMessage: "boom",
	}))
	require.NoError(t, repo.AppendLLMRequest(ctx, LLMRequestEventData{
		Provider: "mock", Model: "m2", Purpose: "other", InputTokens: 1, OutputTokens: 1,
	}))

	events, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 2})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "other", events[0].Purpose)
	assert.Equal(t, "boom", events[1].ErrorMessage)

	e, err := repo.GetLLMEvent(ctx, events[1].ID-1)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "req", e.RequestBody)
	assert.True(t, e.Success)

	missing, err := repo.GetLLMEvent(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	require.NoError(t, err)
	require.Len(t, byPurpose, 2)
	assert.Equal(t, "other", byPurpose[0].Purpose)
	assert.Equal(t, "task-gen", byPurpose[1].Purpose)
	assert.Equal(t, 2, byPurpose[1].Calls)
	assert.Equal(t, 110, byPurpose[1].InputTokens)
	assert.Equal(t, int64(150), byPurpose[1].AvgLatencyMs)

	byModel, err := repo.LLMUsageByModel(ctx)
	require.NoError(t, err)
	require.Len(t, byModel, 2)
	assert.Equal(t, "m1", byModel[0].Model)
	assert.Equal(t, 55, byModel[0].OutputTokens)
}
