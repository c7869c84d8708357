// Package progress computes a student's mastery-probability vector from
// answered questions and records it as mastery snapshots.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/mathprep/taskforge/internal/catalog"
	"github.com/mathprep/taskforge/internal/logger"
	"github.com/mathprep/taskforge/internal/store"
)

// Entry is the estimate for one topic, skill or problem type.
type Entry struct {
	Kind     Kind         `json:"kind"`
	Key      string       `json:"key"`
	Name     string       `json:"name"`
	Prob     float64      `json:"prob"`
	Attempts int          `json:"attempts"`
	Correct  int          `json:"correct"`
	State    MasteryState `json:"state"`
}

// Vector is a student's mastery estimate at a point in time.
type Vector struct {
	UserID     string    `json:"user_id"`
	CourseID   string    `json:"course_id"`
	ComputedAt time.Time `json:"computed_at"`
	Entries    []Entry   `json:"entries"`
}

// Empty reports whether the vector has no entries.
func (v Vector) Empty() bool {
	return len(v.Entries) == 0
}

// ByKind returns the entries of one kind in vector order.
func (v Vector) ByKind(k Kind) []Entry {
	var out []Entry
	for _, e := range v.Entries {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// Weakest returns up to n entries of kind k with the lowest probability.
// Mastered entries are skipped. n <= 0 means no limit.
func (v Vector) Weakest(k Kind, n int) []Entry {
	var out []Entry
	for _, e := range v.ByKind(k) {
		if e.State != StateMastered {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Prob < out[j].Prob
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// RawData encodes the vector in the mastery_snapshots raw_data shape:
// a list of {topic|skill|problem_type, prob} objects.
func (v Vector) RawData() (json.RawMessage, error) {
	items := make([]map[string]any, 0, len(v.Entries))
	for _, e := range v.Entries {
		item := map[string]any{"prob": roundProb(e.Prob)}
		switch e.Kind {
		case KindTopic:
			item["topic"] = e.Key
		case KindSkill, KindProblemType:
			n, err := strconv.Atoi(e.Key)
			if err != nil {
				item[string(e.Kind)] = e.Key
			} else {
				item[string(e.Kind)] = n
			}
		}
		items = append(items, item)
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

func roundProb(p float64) float64 {
	return math.Round(p*1e4) / 1e4
}

// Aggregator computes vectors and captures snapshots.
type Aggregator struct {
	activity  store.ActivityRepo
	snapshots store.SnapshotRepo
	catalog   *catalog.Catalog
	cfg       Config
	log       *logger.Logger
	now       func() time.Time
}

// NewAggregator creates an aggregator. A nil catalog uses the embedded one.
func NewAggregator(activity store.ActivityRepo, snapshots store.SnapshotRepo, cat *catalog.Catalog, cfg Config, log *logger.Logger) *Aggregator {
	if cat == nil {
		cat = catalog.Default()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{
		activity:  activity,
		snapshots: snapshots,
		catalog:   cat,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Compute builds the current vector for a student. On a read error it
// returns an empty vector together with the error.
func (a *Aggregator) Compute(ctx context.Context, userID, courseID string) (Vector, error) {
	now := a.now().UTC()
	v := Vector{UserID: userID, CourseID: courseID, ComputedAt: now, Entries: []Entry{}}

	rows, err := a.activity.List(ctx, store.ActivityQuery{UserID: userID, CourseID: courseID})
	if err != nil {
		return v, fmt.Errorf("load activity: %w", err)
	}
	v.Entries = a.aggregate(rows, now)
	return v, nil
}

// Capture computes the vector and appends it as a mastery snapshot.
func (a *Aggregator) Capture(ctx context.Context, userID, courseID string) (*store.MasterySnapshot, Vector, error) {
	v, err := a.Compute(ctx, userID, courseID)
	if err != nil {
		return nil, v, err
	}
	snap, err := a.Store(ctx, v)
	return snap, v, err
}

// Store appends an already computed vector as a mastery snapshot stamped
// with the vector's computation time.
func (a *Aggregator) Store(ctx context.Context, v Vector) (*store.MasterySnapshot, error) {
	raw, err := v.RawData()
	if err != nil {
		return nil, err
	}
	snap := &store.MasterySnapshot{
		UserID:       v.UserID,
		CourseID:     v.CourseID,
		RawData:      raw,
		RunTimestamp: v.ComputedAt,
	}
	if err := a.snapshots.Append(ctx, snap); err != nil {
		return nil, fmt.Errorf("append snapshot: %w", err)
	}
	a.log.Debug("mastery snapshot captured",
		"user_id", v.UserID,
		"course_id", v.CourseID,
		"snapshot_id", snap.ID,
		"entries", len(v.Entries),
	)
	return snap, nil
}

type entryKey struct {
	kind Kind
	key  string
}

func (a *Aggregator) aggregate(rows []store.Activity, now time.Time) []Entry {
	obs := make(map[entryKey][]observation)
	add := func(k entryKey, row store.Activity) {
		obs[k] = append(obs[k], observation{correct: row.IsCorrect, at: row.CreatedAt})
	}

	for _, row := range rows {
		for _, code := range lo.Uniq(lo.Compact(row.Topics)) {
			add(entryKey{KindTopic, code}, row)
		}
		for _, id := range lo.Uniq(row.Skills) {
			add(entryKey{KindSkill, strconv.Itoa(id)}, row)
		}
		if row.ProblemNumberType > 0 {
			add(entryKey{KindProblemType, strconv.Itoa(row.ProblemNumberType)}, row)
		}
	}

	entries := make([]Entry, 0, len(obs))
	for k, list := range obs {
		correct := 0
		for _, o := range list {
			if o.correct {
				correct++
			}
		}
		prob := a.cfg.estimate(list, now)
		entries = append(entries, Entry{
			Kind:     k.kind,
			Key:      k.key,
			Name:     a.name(k),
			Prob:     prob,
			Attempts: len(list),
			Correct:  correct,
			State:    a.cfg.state(prob, len(list)),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Kind != entries[j].Kind {
			return kindOrder[entries[i].Kind] < kindOrder[entries[j].Kind]
		}
		return catalog.CompareCodes(entries[i].Key, entries[j].Key) < 0
	})
	return entries
}

func (a *Aggregator) name(k entryKey) string {
	switch k.kind {
	case KindTopic:
		return a.catalog.TopicName(k.key)
	case KindSkill:
		id, _ := strconv.Atoi(k.key)
		return a.catalog.SkillName(id)
	default:
		n, _ := strconv.Atoi(k.key)
		return catalog.ProblemTypeName(n)
	}
}
