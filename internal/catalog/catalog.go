// Package catalog holds the OGE mathematics topic and skill taxonomy.
//
// Topics are identified by codifier codes ("1.2", "7.4") grouped into
// sections; skills are identified by integer IDs and belong to one topic.
// Question banks and activity rows reference both.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed oge_math.yaml
var ogeMathYAML []byte

// Section is a top-level group of topics.
type Section struct {
	Code   string  `yaml:"code"`
	Name   string  `yaml:"name"`
	Topics []Topic `yaml:"topics"`
}

// Topic is a single codifier entry.
type Topic struct {
	Code          string   `yaml:"code"`
	Name          string   `yaml:"name"`
	Prerequisites []string `yaml:"prerequisites"`
	Section       string   `yaml:"-"`
}

// Skill is a fine-grained skill tagged on multiple-choice questions.
type Skill struct {
	ID    int    `yaml:"id"`
	Name  string `yaml:"name"`
	Topic string `yaml:"topic"`
}

type document struct {
	Sections []Section `yaml:"sections"`
	Skills   []Skill   `yaml:"skills"`
}

// Catalog is an indexed, read-only topic and skill taxonomy.
type Catalog struct {
	sections      []Section
	topics        map[string]*Topic
	topicOrder    []string
	skills        map[int]*Skill
	skillsByTopic map[string][]Skill
	dependents    map[string][]string
}

// def is the package-level catalog, set by init() from the embedded YAML.
var def *Catalog

func init() {
	c, err := Parse(ogeMathYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded taxonomy is invalid: %v", err))
	}
	def = c
}

// Default returns the embedded OGE mathematics catalog.
func Default() *Catalog {
	return def
}

// Parse decodes a YAML taxonomy, indexes it and validates it.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := validate(doc); err != nil {
		return nil, err
	}
	return build(doc), nil
}

func build(doc document) *Catalog {
	c := &Catalog{
		sections:      doc.Sections,
		topics:        make(map[string]*Topic),
		skills:        make(map[int]*Skill, len(doc.Skills)),
		skillsByTopic: make(map[string][]Skill),
		dependents:    make(map[string][]string),
	}

	for si := range c.sections {
		sec := &c.sections[si]
		for ti := range sec.Topics {
			t := &sec.Topics[ti]
			t.Section = sec.Code
			c.topics[t.Code] = t
			c.topicOrder = append(c.topicOrder, t.Code)
			for _, p := range t.Prerequisites {
				c.dependents[p] = append(c.dependents[p], t.Code)
			}
		}
	}

	for i := range doc.Skills {
		s := doc.Skills[i]
		c.skills[s.ID] = &s
		c.skillsByTopic[s.Topic] = append(c.skillsByTopic[s.Topic], s)
	}
	for code := range c.skillsByTopic {
		skills := c.skillsByTopic[code]
		sort.Slice(skills, func(i, j int) bool { return skills[i].ID < skills[j].ID })
	}
	for code := range c.dependents {
		sort.Strings(c.dependents[code])
	}

	return c
}

// Sections returns all sections in codifier order.
func (c *Catalog) Sections() []Section {
	return c.sections
}

// Topics returns all topics in codifier order.
func (c *Catalog) Topics() []Topic {
	out := make([]Topic, 0, len(c.topicOrder))
	for _, code := range c.topicOrder {
		out = append(out, *c.topics[code])
	}
	return out
}

// TopicsBySection returns the topics of one section, or nil.
func (c *Catalog) TopicsBySection(section string) []Topic {
	for _, s := range c.sections {
		if s.Code == section {
			return s.Topics
		}
	}
	return nil
}

// Topic looks up a topic by code.
func (c *Catalog) Topic(code string) (Topic, bool) {
	t, ok := c.topics[code]
	if !ok {
		return Topic{}, false
	}
	return *t, true
}

// TopicName returns the topic's display name, or the code itself when the
// code is not in the catalog.
func (c *Catalog) TopicName(code string) string {
	if t, ok := c.topics[code]; ok {
		return t.Name
	}
	return code
}

// Skill looks up a skill by ID.
func (c *Catalog) Skill(id int) (Skill, bool) {
	s, ok := c.skills[id]
	if !ok {
		return Skill{}, false
	}
	return *s, true
}

// SkillName returns the skill's display name, or "skill N" when unknown.
func (c *Catalog) SkillName(id int) string {
	if s, ok := c.skills[id]; ok {
		return s.Name
	}
	return "skill " + strconv.Itoa(id)
}

// SkillsForTopic returns the skills attached to a topic, ordered by ID.
func (c *Catalog) SkillsForTopic(code string) []Skill {
	return c.skillsByTopic[code]
}

// Prerequisites returns the direct prerequisites of a topic.
func (c *Catalog) Prerequisites(code string) []string {
	if t, ok := c.topics[code]; ok {
		return t.Prerequisites
	}
	return nil
}

// Dependents returns topics that list code as a direct prerequisite.
func (c *Catalog) Dependents(code string) []string {
	return c.dependents[code]
}
