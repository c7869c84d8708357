// Package prompt assembles the study-task prompt from a student's
// parameters and the aggregated progress data.
package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/mathprep/taskforge/internal/catalog"
	"github.com/mathprep/taskforge/internal/failures"
	"github.com/mathprep/taskforge/internal/homework"
	"github.com/mathprep/taskforge/internal/progress"
	"github.com/mathprep/taskforge/internal/snapdiff"
)

// Params are the student parameters sent with a generation request.
type Params struct {
	TargetScore   int
	WeeklyHours   float64
	SchoolGrade   int
	DateString    string
	NumberOfWords int
}

// Config caps how much of each section goes into the prompt.
type Config struct {
	MaxProgressEntries int
	MaxFailedTopics    int
	MaxDiffEntries     int
	MaxHomeworkItems   int

	// DefaultWords is used when a request has no word budget.
	DefaultWords int
}

// DefaultConfig returns the standard caps.
func DefaultConfig() Config {
	return Config{
		MaxProgressEntries: 10,
		MaxFailedTopics:    10,
		MaxDiffEntries:     15,
		MaxHomeworkItems:   20,
		DefaultWords:       400,
	}
}

// Input is everything the prompt is built from.
type Input struct {
	Params   Params
	Progress progress.Vector
	Failures failures.Result
	Diff     snapdiff.Result
	Homework homework.Report
}

// Prompt is an assembled system and user message pair.
type Prompt struct {
	System string
	User   string
}

// Assembler renders prompts.
type Assembler struct {
	cfg     Config
	catalog *catalog.Catalog
}

// NewAssembler creates an assembler. A nil catalog uses the embedded one.
func NewAssembler(cfg Config, cat *catalog.Catalog) *Assembler {
	if cat == nil {
		cat = catalog.Default()
	}
	if cfg.DefaultWords <= 0 {
		cfg.DefaultWords = DefaultConfig().DefaultWords
	}
	return &Assembler{cfg: cfg, catalog: cat}
}

// Build renders the prompt for in.
func (a *Assembler) Build(in Input) Prompt {
	words := in.Params.NumberOfWords
	if words <= 0 {
		words = a.cfg.DefaultWords
	}
	return Prompt{
		System: fmt.Sprintf(systemPrompt, words),
		User:   a.userMessage(in, words),
	}
}

const systemPrompt = `Ты опытный репетитор по математике, который готовит школьника к ОГЭ. По данным об успеваемости ученика ты составляешь персональное учебное задание на ближайшие дни.

Правила:
1. Опирайся только на переданные данные. Не придумывай оценки, проценты и темы, которых нет во входных данных.
2. В первую очередь работай со слабыми темами, недавними ошибками и невыполненным домашним заданием.
3. Учитывай целевой балл, класс и количество часов в неделю: объём задания должен быть посильным.
4. Пиши по-русски, обращайся к ученику на «ты», поддерживай и мотивируй без лишних похвал.
5. Формулы записывай обычным текстом, без LaTeX.
6. Объём ответа около %d слов.

Структура ответа:
- Короткий разбор прогресса: что улучшилось, что просело.
- План занятий на ближайшие дни с указанием тем.
- 3-5 задач в формате ОГЭ по слабым темам с ответами в конце.`

func (a *Assembler) userMessage(in Input, words int) string {
	var b strings.Builder

	p := in.Params
	b.WriteString("Параметры ученика:\n")
	b.WriteString(fmt.Sprintf("- Целевой балл: %s\n", intOrUnknown(p.TargetScore)))
	b.WriteString(fmt.Sprintf("- Часов в неделю: %s\n", hoursOrUnknown(p.WeeklyHours)))
	b.WriteString(fmt.Sprintf("- Класс: %s\n", intOrUnknown(p.SchoolGrade)))
	if p.DateString != "" {
		b.WriteString(fmt.Sprintf("- Сегодня: %s\n", p.DateString))
	}
	b.WriteString(fmt.Sprintf("- Объём задания: около %d слов\n", words))

	b.WriteString("\nСамые слабые темы:\n")
	weakest := in.Progress.Weakest(progress.KindTopic, a.cfg.MaxProgressEntries)
	if len(weakest) == 0 {
		b.WriteString("Нет данных\n")
	}
	for _, e := range weakest {
		b.WriteString(fmt.Sprintf("- %s %s: вероятность решения %.0f%% (попыток: %d)\n", e.Key, e.Name, e.Prob*100, e.Attempts))
	}

	b.WriteString("\nОшибки с прошлого задания:\n")
	topics := capSlice(in.Failures.Topics, a.cfg.MaxFailedTopics)
	if len(topics) == 0 {
		b.WriteString("Нет данных\n")
	}
	for _, t := range topics {
		b.WriteString(fmt.Sprintf("- %s %s: ошибок %d\n", t.Code, t.Name, t.Count))
	}
	if skills := capSlice(in.Failures.Skills, a.cfg.MaxFailedTopics); len(skills) > 0 {
		b.WriteString("Навыки с ошибками:\n")
		for _, s := range skills {
			b.WriteString(fmt.Sprintf("- %s: ошибок %d\n", s.Name, s.Count))
		}
	}

	b.WriteString("\nИзменение прогресса с прошлого замера:\n")
	diff := capSlice(in.Diff.Entries, a.cfg.MaxDiffEntries)
	if in.Diff.NoData() || len(diff) == 0 {
		b.WriteString("Нет данных\n")
	}
	for _, e := range diff {
		b.WriteString(fmt.Sprintf("- %s: %+.0f п.п.\n", a.describe(e.Fields), e.Diff*100))
	}

	b.WriteString("\nДомашнее задание:\n")
	items := capSlice(in.Homework.Items, a.cfg.MaxHomeworkItems)
	if len(items) == 0 {
		b.WriteString("Не задано\n")
	} else {
		s := in.Homework.Summary
		b.WriteString(fmt.Sprintf("Выполнено %d из %d, верно %d.\n", s.Completed, s.Assigned, s.Correct))
	}
	for _, it := range items {
		b.WriteString(fmt.Sprintf("- %s (%s): %s%s\n", it.QuestionID, it.Category, statusText(it.Status), a.tags(it)))
	}

	b.WriteString(`
Инструкции:
Составь персональное задание по правилам из системного сообщения. Если каких-то данных нет, опирайся на остальные разделы и на типичные трудности ОГЭ.`)

	return b.String()
}

// describe names a snapshot entry by its key fields.
func (a *Assembler) describe(fields map[string]any) string {
	if v, ok := fields["topic"]; ok {
		code := scalar(v)
		return code + " " + a.catalog.TopicName(code)
	}
	if v, ok := fields["skill"]; ok {
		if id, err := strconv.Atoi(scalar(v)); err == nil {
			return a.catalog.SkillName(id)
		}
	}
	if v, ok := fields["problem_type"]; ok {
		if n, err := strconv.Atoi(scalar(v)); err == nil {
			return catalog.ProblemTypeName(n)
		}
	}
	names := lo.Keys(fields)
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, k+"="+scalar(fields[k]))
	}
	return strings.Join(parts, ", ")
}

func (a *Assembler) tags(it homework.Item) string {
	var names []string
	for _, code := range it.Topics {
		names = append(names, a.catalog.TopicName(code))
	}
	for _, id := range it.Skills {
		names = append(names, a.catalog.SkillName(id))
	}
	if len(names) == 0 {
		return ""
	}
	return "; " + strings.Join(names, ", ")
}

func statusText(s homework.Status) string {
	switch s {
	case homework.StatusCorrect:
		return "решено верно"
	case homework.StatusIncorrect:
		return "решено неверно"
	default:
		return "не решалось"
	}
}

func scalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func intOrUnknown(n int) string {
	if n <= 0 {
		return "не указан"
	}
	return strconv.Itoa(n)
}

func hoursOrUnknown(h float64) string {
	if h <= 0 {
		return "не указано"
	}
	return strconv.FormatFloat(h, 'f', -1, 64)
}

func capSlice[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
