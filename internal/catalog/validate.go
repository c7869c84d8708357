package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// validate performs all structural checks on a decoded taxonomy.
// Returns a combined error describing all problems found, or nil if valid.
func validate(doc document) error {
	var errs []string

	sectionSet := make(map[string]bool, len(doc.Sections))
	topicSet := make(map[string]bool)
	prereqs := make(map[string][]string)

	for _, s := range doc.Sections {
		if s.Code == "" {
			errs = append(errs, fmt.Sprintf("section %q has empty code", s.Name))
		}
		if sectionSet[s.Code] {
			errs = append(errs, fmt.Sprintf("duplicate section code: %q", s.Code))
		}
		sectionSet[s.Code] = true

		for _, t := range s.Topics {
			if t.Code == "" {
				errs = append(errs, fmt.Sprintf("topic %q in section %q has empty code", t.Name, s.Code))
				continue
			}
			if topicSet[t.Code] {
				errs = append(errs, fmt.Sprintf("duplicate topic code: %q", t.Code))
			}
			topicSet[t.Code] = true
			prereqs[t.Code] = t.Prerequisites
		}
	}

	// Dangling prerequisites.
	for code, ps := range prereqs {
		for _, p := range ps {
			if !topicSet[p] {
				errs = append(errs, fmt.Sprintf("topic %q references nonexistent prerequisite %q", code, p))
			}
		}
	}

	// Skills.
	skillSet := make(map[int]bool, len(doc.Skills))
	for _, sk := range doc.Skills {
		if skillSet[sk.ID] {
			errs = append(errs, fmt.Sprintf("duplicate skill ID: %d", sk.ID))
		}
		skillSet[sk.ID] = true
		if !topicSet[sk.Topic] {
			errs = append(errs, fmt.Sprintf("skill %d references nonexistent topic %q", sk.ID, sk.Topic))
		}
	}

	// Cycles (Kahn's algorithm over the prerequisite edges).
	inDegree := make(map[string]int, len(prereqs))
	adj := make(map[string][]string)
	for code, ps := range prereqs {
		for _, p := range ps {
			if topicSet[p] {
				inDegree[code]++
				adj[p] = append(adj[p], code)
			}
		}
	}
	var queue []string
	for code := range prereqs {
		if inDegree[code] == 0 {
			queue = append(queue, code)
		}
	}
	visited := 0
	for len(queue) > 0 {
		code := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range adj[code] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if visited != len(prereqs) {
		var cyclic []string
		for code, d := range inDegree {
			if d > 0 {
				cyclic = append(cyclic, code)
			}
		}
		sort.Strings(cyclic)
		errs = append(errs, fmt.Sprintf("prerequisite cycle among topics: %s", strings.Join(cyclic, ", ")))
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("catalog validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
