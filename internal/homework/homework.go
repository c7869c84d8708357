// Package homework reconciles the homework assigned to a student with the
// completion records of that homework.
package homework

import (
	"context"
	"math"
	"time"

	"github.com/samber/lo"

	"github.com/mathprep/taskforge/internal/logger"
	"github.com/mathprep/taskforge/internal/store"
)

// Status is the outcome of one assigned question.
type Status string

const (
	StatusCorrect      Status = "correct"
	StatusIncorrect    Status = "incorrect"
	StatusNotAttempted Status = "not_attempted"
)

// Item is one assigned question and its outcome.
type Item struct {
	QuestionID       string     `json:"question_id"`
	Category         string     `json:"category"`
	Status           Status     `json:"status"`
	IsCorrect        *bool      `json:"is_correct"`
	CompletionStatus string     `json:"completion_status,omitempty"`
	AnsweredAt       *time.Time `json:"answered_at,omitempty"`
	Topics           []string   `json:"topics"`
	Skills           []int      `json:"skills"`
}

// Summary aggregates a report.
type Summary struct {
	Assigned  int     `json:"assigned"`
	Completed int     `json:"completed"`
	Correct   int     `json:"correct"`
	Accuracy  float64 `json:"accuracy"`
}

// Report is the reconciled state of a student's homework.
type Report struct {
	HomeworkName string  `json:"homework_name,omitempty"`
	Items        []Item  `json:"items"`
	Summary      Summary `json:"summary"`
}

// Empty reports whether nothing is assigned.
func (r Report) Empty() bool {
	return len(r.Items) == 0
}

// Pending returns the items not attempted yet.
func (r Report) Pending() []Item {
	return lo.Filter(r.Items, func(it Item, _ int) bool { return it.Status == StatusNotAttempted })
}

// Reconciler builds homework reports.
type Reconciler struct {
	profiles store.ProfileRepo
	progress store.HomeworkRepo
	bank     store.QuestionBankRepo
	log      *logger.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(profiles store.ProfileRepo, progress store.HomeworkRepo, bank store.QuestionBankRepo, log *logger.Logger) *Reconciler {
	if log == nil {
		log = logger.Nop()
	}
	return &Reconciler{profiles: profiles, progress: progress, bank: bank, log: log}
}

func emptyReport() Report {
	return Report{Items: []Item{}}
}

// Reconcile produces one item per assigned question. A question listed
// under several categories is reported once, under the first category in
// name order. Questions without a completion record are reported as not
// attempted. A missing profile or unreadable homework blob yields an empty
// report.
func (r *Reconciler) Reconcile(ctx context.Context, userID string) Report {
	log := r.log.With("user_id", userID, "stage", "homework")

	profile, err := r.profiles.Get(ctx, userID)
	if err != nil {
		log.Warn("profile unavailable", "error", err)
		return emptyReport()
	}
	if profile == nil {
		log.Debug("no profile, skipping homework")
		return emptyReport()
	}

	assignments, err := ParseAssignments(profile.Homework)
	if err != nil {
		log.Warn("homework blob unreadable", "error", err)
		return emptyReport()
	}
	report := emptyReport()
	report.HomeworkName = profile.HomeworkName
	if len(assignments) == 0 {
		return report
	}

	seen := make(map[string]bool)
	for i := range assignments {
		assignments[i].QuestionIDs = lo.Filter(assignments[i].QuestionIDs, func(id string, _ int) bool {
			if seen[id] {
				return false
			}
			seen[id] = true
			return true
		})
	}

	var allIDs, fipiIDs, mcqIDs []string
	for _, a := range assignments {
		allIDs = append(allIDs, a.QuestionIDs...)
		if ResolutionFor(a.Category) == ResolveSkills {
			mcqIDs = append(mcqIDs, a.QuestionIDs...)
		} else {
			fipiIDs = append(fipiIDs, a.QuestionIDs...)
		}
	}

	latest := make(map[string]store.HomeworkProgress)
	records, err := r.progress.ForQuestions(ctx, userID, profile.HomeworkName, allIDs)
	if err != nil {
		log.Warn("homework progress unavailable, treating all as not attempted", "error", err)
	}
	for _, rec := range records {
		// Records arrive oldest first.
		latest[rec.QuestionID] = rec
	}

	topics := map[string]store.FipiQuestion{}
	if len(fipiIDs) > 0 {
		if topics, err = r.bank.FipiQuestions(ctx, fipiIDs); err != nil {
			log.Warn("fipi bank lookup failed", "error", err)
			topics = map[string]store.FipiQuestion{}
		}
	}
	skills := map[string][]int{}
	if len(mcqIDs) > 0 {
		if skills, err = r.bank.QuestionSkills(ctx, mcqIDs); err != nil {
			log.Warn("skill lookup failed", "error", err)
			skills = map[string][]int{}
		}
	}

	for _, a := range assignments {
		res := ResolutionFor(a.Category)
		for _, id := range a.QuestionIDs {
			item := Item{
				QuestionID: id,
				Category:   a.Category,
				Status:     StatusNotAttempted,
				Topics:     []string{},
				Skills:     []int{},
			}
			if rec, ok := latest[id]; ok {
				item.CompletionStatus = rec.CompletionStatus
				if rec.IsCorrect != nil {
					correct := *rec.IsCorrect
					at := rec.CreatedAt
					item.IsCorrect = &correct
					item.AnsweredAt = &at
					item.Status = StatusIncorrect
					if correct {
						item.Status = StatusCorrect
					}
				}
			}
			switch res {
			case ResolveSkills:
				if s := skills[id]; len(s) > 0 {
					item.Skills = s
				}
			default:
				if q, ok := topics[id]; ok && len(q.Topics) > 0 {
					item.Topics = q.Topics
				}
			}
			report.Items = append(report.Items, item)
		}
	}

	report.Summary = summarize(report.Items)
	return report
}

func summarize(items []Item) Summary {
	s := Summary{Assigned: len(items)}
	for _, it := range items {
		switch it.Status {
		case StatusCorrect:
			s.Completed++
			s.Correct++
		case StatusIncorrect:
			s.Completed++
		}
	}
	if s.Completed > 0 {
		s.Accuracy = math.Round(float64(s.Correct)/float64(s.Completed)*1000) / 1000
	}
	return s
}
