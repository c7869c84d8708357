package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathprep/taskforge/internal/failures"
	"github.com/mathprep/taskforge/internal/homework"
	"github.com/mathprep/taskforge/internal/progress"
	"github.com/mathprep/taskforge/internal/snapdiff"
)

func fullInput(t *testing.T) Input {
	t.Helper()
	diff, err := snapdiff.Diff(
		json.RawMessage(`[{"topic":"3.1","prob":0.7},{"skill":12,"prob":0.4},{"problem_type":6,"prob":0.5}]`),
		json.RawMessage(`[{"topic":"3.1","prob":0.5},{"skill":12,"prob":0.6}]`),
		0,
	)
	require.NoError(t, err)

	correct := true
	return Input{
		Params: Params{
			TargetScore:   4,
			WeeklyHours:   3.5,
			SchoolGrade:   9,
			DateString:    "10 марта 2026",
			NumberOfWords: 250,
		},
		Progress: progress.Vector{Entries: []progress.Entry{
			{Kind: progress.KindTopic, Key: "1.2", Name: "Дроби и проценты", Prob: 0.31, Attempts: 6, State: progress.StateLearning},
			{Kind: progress.KindTopic, Key: "3.1", Name: "Уравнения", Prob: 0.55, Attempts: 4, State: progress.StateLearning},
		}},
		Failures: failures.Result{
			Topics: []failures.TopicTally{{Code: "3.1", Name: "Уравнения", Count: 2}},
			Skills: []failures.SkillTally{{ID: 12, Name: "Решение линейных уравнений", Count: 1}},
		},
		Diff: snapdiff.Result{Status: snapdiff.StatusOK, Entries: diff},
		Homework: homework.Report{
			Items: []homework.Item{
				{QuestionID: "F1", Category: "fipi", Status: homework.StatusCorrect, IsCorrect: &correct, Topics: []string{"1.2"}},
				{QuestionID: "M7", Category: "mcq", Status: homework.StatusNotAttempted},
			},
			Summary: homework.Summary{Assigned: 2, Completed: 1, Correct: 1, Accuracy: 1},
		},
	}
}

func TestBuild(t *testing.T) {
	p := NewAssembler(DefaultConfig(), nil).Build(fullInput(t))

	assert.Contains(t, p.System, "ОГЭ")
	assert.Contains(t, p.System, "около 250 слов")

	for _, want := range []string{
		"Целевой балл: 4",
		"Часов в неделю: 3.5",
		"Класс: 9",
		"Сегодня: 10 марта 2026",
		"- 1.2 Дроби и проценты: вероятность решения 31% (попыток: 6)",
		"- 3.1 Уравнения: ошибок 2",
		"Решение линейных уравнений: ошибок 1",
		": +20 п.п.",
		"Задание 6: +50 п.п.",
		"Выполнено 1 из 2, верно 1.",
		"- F1 (fipi): решено верно",
		"- M7 (mcq): не решалось",
	} {
		assert.Contains(t, p.User, want)
	}

	weakIdx := strings.Index(p.User, "1.2 Дроби")
	eqIdx := strings.Index(p.User, "3.1 Уравнения: вероятность")
	assert.Less(t, weakIdx, eqIdx, "weakest topic first")
}

func TestBuild_EmptyData(t *testing.T) {
	p := NewAssembler(DefaultConfig(), nil).Build(Input{
		Diff: snapdiff.Result{Status: snapdiff.StatusNoData},
	})

	assert.Contains(t, p.System, "около 400 слов")
	assert.Contains(t, p.User, "Целевой балл: не указан")
	assert.Contains(t, p.User, "Нет данных")
	assert.Contains(t, p.User, "Не задано")
	assert.NotContains(t, p.User, "Сегодня:")
}

func TestBuild_Caps(t *testing.T) {
	var topics []failures.TopicTally
	for i := range 25 {
		topics = append(topics, failures.TopicTally{Code: fmt.Sprintf("9.%d", i), Name: "t", Count: 1})
	}
	cfg := DefaultConfig()
	cfg.MaxFailedTopics = 3

	p := NewAssembler(cfg, nil).Build(Input{Failures: failures.Result{Topics: topics}})
	assert.Equal(t, 3, strings.Count(p.User, ": ошибок 1"))
}

func TestDescribe(t *testing.T) {
	a := NewAssembler(DefaultConfig(), nil)
	assert.Equal(t, "Задание 9", a.describe(map[string]any{"problem_type": json.Number("9")}))
	assert.Equal(t, "a=1, b=x", a.describe(map[string]any{"b": "x", "a": json.Number("1")}))
}
