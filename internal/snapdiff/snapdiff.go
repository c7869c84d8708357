// Package snapdiff compares two mastery snapshots entry by entry.
//
// Snapshot entries are JSON objects holding a "prob" field plus any number
// of key fields ({"topic": "1.2", "prob": 0.4}, {"skill": 12, "prob": 0.7}).
// Entries are matched on the values of their key fields.
package snapdiff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// MaxEntries caps the number of diff entries returned.
const MaxEntries = 30

// ProbField is the field holding the probability.
const ProbField = "prob"

const keySeparator = "|"

// Entry is the change of one snapshot entry.
type Entry struct {
	// Key is the composite key: name=value pairs in field-name order.
	Key string
	// Fields holds the key fields as they appear in the snapshot.
	Fields   map[string]any
	Recent   *float64
	Previous *float64
	Diff     float64
}

// MarshalJSON flattens the key fields next to the diff, so an entry reads
// like a snapshot entry with prob replaced by diff.
func (e Entry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+3)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["diff"] = e.Diff
	if e.Recent != nil {
		out["recent_prob"] = *e.Recent
	}
	if e.Previous != nil {
		out["previous_prob"] = *e.Previous
	}
	return json.Marshal(out)
}

type snapshotEntry struct {
	key    string
	fields map[string]any
	prob   float64
}

// Diff compares a recent snapshot with a previous one. Entries only in
// recent get diff = recent prob, entries only in previous get
// diff = -previous prob. The result is ordered by descending |diff| with
// ties broken by key, and truncated to limit (MaxEntries when limit <= 0).
func Diff(recent, previous json.RawMessage, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = MaxEntries
	}
	rec, err := parse(recent)
	if err != nil {
		return nil, fmt.Errorf("parse recent snapshot: %w", err)
	}
	prev, err := parse(previous)
	if err != nil {
		return nil, fmt.Errorf("parse previous snapshot: %w", err)
	}

	prevByKey := lo.KeyBy(prev, func(e snapshotEntry) string { return e.key })
	recByKey := lo.KeyBy(rec, func(e snapshotEntry) string { return e.key })

	out := make([]Entry, 0, len(recByKey)+len(prevByKey))
	for key, r := range recByKey {
		rp := r.prob
		e := Entry{Key: key, Fields: r.fields, Recent: &rp, Diff: rp}
		if p, ok := prevByKey[key]; ok {
			pp := p.prob
			e.Previous = &pp
			e.Diff = rp - pp
		}
		out = append(out, e)
	}
	for key, p := range prevByKey {
		if _, ok := recByKey[key]; ok {
			continue
		}
		pp := p.prob
		out = append(out, Entry{Key: key, Fields: p.fields, Previous: &pp, Diff: -pp})
	}

	sort.Slice(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].Diff), math.Abs(out[j].Diff)
		if ai != aj {
			return ai > aj
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// parse decodes a snapshot array. A JSON string holding an array is
// unwrapped first. Objects without a numeric prob are skipped; later
// duplicates of a key replace earlier ones.
func parse(raw json.RawMessage) ([]snapshotEntry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, err
		}
		raw = json.RawMessage(inner)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var items []map[string]any
	if err := dec.Decode(&items); err != nil {
		return nil, err
	}

	out := make([]snapshotEntry, 0, len(items))
	for _, item := range items {
		prob, ok := probOf(item[ProbField])
		if !ok {
			continue
		}
		fields := lo.OmitByKeys(item, []string{ProbField})
		out = append(out, snapshotEntry{key: compositeKey(fields), fields: fields, prob: prob})
	}
	return out, nil
}

func probOf(v any) (float64, bool) {
	switch p := v.(type) {
	case json.Number:
		f, err := p.Float64()
		return f, err == nil
	case float64:
		return p, true
	default:
		return 0, false
	}
}

// compositeKey joins the field values in sorted field-name order. Values
// are qualified by field name so {"skill": 6} and {"problem_type": 6}
// stay distinct.
func compositeKey(fields map[string]any) string {
	names := lo.Keys(fields)
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+keyValue(fields[name]))
	}
	return strings.Join(parts, keySeparator)
}

func keyValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
