package homework

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Assignment is the list of question IDs assigned under one category.
type Assignment struct {
	Category    string
	QuestionIDs []string
}

// Resolution says which tags a category's questions are described by.
type Resolution int

const (
	// ResolveTopics looks questions up in the FIPI bank.
	ResolveTopics Resolution = iota
	// ResolveSkills looks questions up in the skills table.
	ResolveSkills
)

// ResolutionFor classifies a category by name. Multiple-choice categories
// carry skill tags, everything else is treated as FIPI questions.
func ResolutionFor(category string) Resolution {
	c := strings.ToLower(category)
	if strings.Contains(c, "mcq") || strings.Contains(c, "skill") {
		return ResolveSkills
	}
	return ResolveTopics
}

// ParseAssignments decodes a profile's homework blob: an object mapping
// category to a list of question IDs. IDs may be strings or numbers.
// Values that are not lists and list items of other types are skipped.
// Categories come back sorted by name; duplicate IDs within a category
// are dropped.
func ParseAssignments(raw json.RawMessage) ([]Assignment, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("decode homework: %w", err)
		}
		raw = bytes.TrimSpace([]byte(inner))
	}

	var doc map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode homework: %w", err)
	}

	categories := make([]string, 0, len(doc))
	for c := range doc {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var out []Assignment
	for _, c := range categories {
		ids := questionIDs(doc[c])
		if len(ids) == 0 {
			continue
		}
		out = append(out, Assignment{Category: c, QuestionIDs: ids})
	}
	return out, nil
}

func questionIDs(raw json.RawMessage) []string {
	var items []any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		return nil
	}
	seen := make(map[string]bool, len(items))
	var out []string
	for _, item := range items {
		var id string
		switch v := item.(type) {
		case string:
			id = strings.TrimSpace(v)
		case json.Number:
			if n, err := v.Int64(); err == nil {
				id = strconv.FormatInt(n, 10)
			} else {
				id = v.String()
			}
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
