// Package failures finds the questions a student answered incorrectly
// between the two most recent generated tasks.
package failures

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/mathprep/taskforge/internal/catalog"
	"github.com/mathprep/taskforge/internal/logger"
	"github.com/mathprep/taskforge/internal/store"
)

// Window is the time range errors are collected from. Open is set when
// the range ends at the current time rather than at a task row.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
	Open bool      `json:"open"`
}

// Question is one distinct incorrectly answered question.
type Question struct {
	QuestionID        string    `json:"question_id"`
	ProblemNumberType int       `json:"problem_number_type,omitempty"`
	Topics            []string  `json:"topics"`
	Skills            []int     `json:"skills"`
	Mistakes          int       `json:"mistakes"`
	LastAnsweredAt    time.Time `json:"last_answered_at"`
}

// TopicTally counts failed questions per topic.
type TopicTally struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SkillTally counts failed questions per skill.
type SkillTally struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Result is the outcome of an extraction.
type Result struct {
	Window    *Window      `json:"window"`
	Questions []Question   `json:"questions"`
	Topics    []TopicTally `json:"topics"`
	Skills    []SkillTally `json:"skills"`
}

// Empty reports whether no failed questions were found.
func (r Result) Empty() bool {
	return len(r.Questions) == 0
}

// Extractor reads task rows, activity and the question tag tables.
type Extractor struct {
	tasks    store.TaskRepo
	activity store.ActivityRepo
	bank     store.QuestionBankRepo
	catalog  *catalog.Catalog
	log      *logger.Logger
	now      func() time.Time
}

// NewExtractor creates an extractor. A nil catalog uses the embedded one.
func NewExtractor(tasks store.TaskRepo, activity store.ActivityRepo, bank store.QuestionBankRepo, cat *catalog.Catalog, log *logger.Logger) *Extractor {
	if cat == nil {
		cat = catalog.Default()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{
		tasks:    tasks,
		activity: activity,
		bank:     bank,
		catalog:  cat,
		log:      log,
		now:      time.Now,
	}
}

// Window returns the range between the two most recent task rows. With
// a single task row the range runs from it to now. Without task rows it
// returns nil.
func (e *Extractor) Window(ctx context.Context, userID, courseID string) (*Window, error) {
	rows, err := e.tasks.Latest(ctx, userID, courseID, 2)
	if err != nil {
		return nil, fmt.Errorf("load task rows: %w", err)
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return &Window{From: rows[0].CreatedAt, To: e.now().UTC(), Open: true}, nil
	default:
		return &Window{From: rows[1].CreatedAt, To: rows[0].CreatedAt}, nil
	}
}

// Extract collects the failed questions inside the window. Query errors
// are logged and yield an empty result.
func (e *Extractor) Extract(ctx context.Context, userID, courseID string) Result {
	res := emptyResult()
	log := e.log.With("user_id", userID, "course_id", courseID, "stage", "failures")

	w, err := e.Window(ctx, userID, courseID)
	if err != nil {
		log.Warn("error window unavailable", "error", err)
		return res
	}
	if w == nil {
		log.Debug("no task rows, skipping error window")
		return res
	}
	res.Window = w

	rows, err := e.activity.List(ctx, store.ActivityQuery{
		UserID:        userID,
		CourseID:      courseID,
		From:          w.From,
		To:            w.To,
		OnlyIncorrect: true,
	})
	if err != nil {
		log.Warn("failed answers unavailable", "error", err)
		return res
	}
	if len(rows) == 0 {
		return res
	}

	questions := e.collect(rows)
	ids := lo.Map(questions, func(q *Question, _ int) string { return q.QuestionID })

	fipi, err := e.bank.FipiQuestions(ctx, ids)
	if err != nil {
		log.Warn("fipi bank lookup failed, using activity tags", "error", err)
		fipi = nil
	}
	skills, err := e.bank.QuestionSkills(ctx, ids)
	if err != nil {
		log.Warn("skill lookup failed, using activity tags", "error", err)
		skills = nil
	}

	for _, q := range questions {
		if bq, ok := fipi[q.QuestionID]; ok {
			if len(bq.Topics) > 0 {
				q.Topics = bq.Topics
			}
			if bq.ProblemNumberType > 0 {
				q.ProblemNumberType = bq.ProblemNumberType
			}
		}
		if s, ok := skills[q.QuestionID]; ok && len(s) > 0 {
			q.Skills = s
		}
		q.Topics = lo.Uniq(lo.Compact(q.Topics))
		q.Skills = lo.Uniq(q.Skills)
		res.Questions = append(res.Questions, *q)
	}

	res.Topics = e.tallyTopics(res.Questions)
	res.Skills = e.tallySkills(res.Questions)
	return res
}

func emptyResult() Result {
	return Result{
		Questions: []Question{},
		Topics:    []TopicTally{},
		Skills:    []SkillTally{},
	}
}

// collect folds activity rows into one entry per question, in order of
// first mistake.
func (e *Extractor) collect(rows []store.Activity) []*Question {
	byID := make(map[string]*Question)
	var order []*Question
	for _, row := range rows {
		q, ok := byID[row.QuestionID]
		if !ok {
			q = &Question{
				QuestionID:        row.QuestionID,
				ProblemNumberType: row.ProblemNumberType,
			}
			byID[row.QuestionID] = q
			order = append(order, q)
		}
		q.Mistakes++
		q.Topics = append(q.Topics, row.Topics...)
		q.Skills = append(q.Skills, row.Skills...)
		if row.CreatedAt.After(q.LastAnsweredAt) {
			q.LastAnsweredAt = row.CreatedAt
		}
	}
	return order
}

func (e *Extractor) tallyTopics(questions []Question) []TopicTally {
	counts := lo.CountValues(lo.FlatMap(questions, func(q Question, _ int) []string { return q.Topics }))
	out := make([]TopicTally, 0, len(counts))
	for code, n := range counts {
		out = append(out, TopicTally{Code: code, Name: e.catalog.TopicName(code), Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return catalog.CompareCodes(out[i].Code, out[j].Code) < 0
	})
	return out
}

func (e *Extractor) tallySkills(questions []Question) []SkillTally {
	counts := lo.CountValues(lo.FlatMap(questions, func(q Question, _ int) []int { return q.Skills }))
	out := make([]SkillTally, 0, len(counts))
	for id, n := range counts {
		out = append(out, SkillTally{ID: id, Name: e.catalog.SkillName(id), Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// TopicCodes returns the failed topic codes, most frequent first.
func (r Result) TopicCodes() []string {
	return lo.Map(r.Topics, func(t TopicTally, _ int) string { return t.Code })
}

// SkillIDs returns the failed skill IDs, most frequent first.
func (r Result) SkillIDs() []int {
	return lo.Map(r.Skills, func(s SkillTally, _ int) int { return s.ID })
}
