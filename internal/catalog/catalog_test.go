package catalog

import (
	"strings"
	"testing"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c := Default()
	if c == nil {
		t.Fatal("expected embedded catalog")
	}
	if got := len(c.Sections()); got != 8 {
		t.Errorf("sections = %d, want 8", got)
	}
	if len(c.Topics()) == 0 {
		t.Fatal("expected topics")
	}
}

func TestTopicLookup(t *testing.T) {
	c := Default()

	topic, ok := c.Topic("7.2")
	if !ok {
		t.Fatal("expected topic 7.2")
	}
	if topic.Name != "Треугольник" {
		t.Errorf("name = %q", topic.Name)
	}
	if topic.Section != "7" {
		t.Errorf("section = %q, want 7", topic.Section)
	}

	if got := c.TopicName("99.9"); got != "99.9" {
		t.Errorf("unknown topic name = %q, want code fallback", got)
	}
}

func TestSkillLookup(t *testing.T) {
	c := Default()

	s, ok := c.Skill(37)
	if !ok {
		t.Fatal("expected skill 37")
	}
	if s.Topic != "7.2" {
		t.Errorf("topic = %q, want 7.2", s.Topic)
	}
	if got := c.SkillName(1000); got != "skill 1000" {
		t.Errorf("unknown skill name = %q", got)
	}

	skills := c.SkillsForTopic("3.1")
	if len(skills) < 2 {
		t.Fatalf("expected several skills for 3.1, got %d", len(skills))
	}
	for i := 1; i < len(skills); i++ {
		if skills[i-1].ID >= skills[i].ID {
			t.Errorf("skills not sorted by ID: %d then %d", skills[i-1].ID, skills[i].ID)
		}
	}
}

func TestPrerequisitesAndDependents(t *testing.T) {
	c := Default()

	if got := c.Prerequisites("2.5"); len(got) != 2 {
		t.Errorf("prerequisites of 2.5 = %v", got)
	}
	deps := c.Dependents("3.1")
	want := map[string]bool{"3.2": true, "3.3": true, "5.1": true}
	for _, d := range deps {
		delete(want, d)
	}
	if len(want) != 0 {
		t.Errorf("missing dependents of 3.1: %v (got %v)", want, deps)
	}
}

func TestTopicsBySection(t *testing.T) {
	c := Default()
	if got := len(c.TopicsBySection("3")); got != 3 {
		t.Errorf("section 3 topics = %d, want 3", got)
	}
	if c.TopicsBySection("42") != nil {
		t.Error("expected nil for unknown section")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "duplicate topic",
			yaml: `
sections:
  - code: "1"
    topics:
      - {code: "1.1", name: a}
      - {code: "1.1", name: b}
`,
			want: "duplicate topic code",
		},
		{
			name: "dangling prerequisite",
			yaml: `
sections:
  - code: "1"
    topics:
      - {code: "1.1", name: a, prerequisites: ["9.9"]}
`,
			want: "nonexistent prerequisite",
		},
		{
			name: "skill on unknown topic",
			yaml: `
sections:
  - code: "1"
    topics:
      - {code: "1.1", name: a}
skills:
  - {id: 1, name: s, topic: "2.2"}
`,
			want: "nonexistent topic",
		},
		{
			name: "cycle",
			yaml: `
sections:
  - code: "1"
    topics:
      - {code: "1.1", name: a, prerequisites: ["1.2"]}
      - {code: "1.2", name: b, prerequisites: ["1.1"]}
`,
			want: "prerequisite cycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestCompareCodes(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.2", "1.10", -1},
		{"1.10", "1.2", 1},
		{"2.1", "2.1", 0},
		{"3", "3.1", -1},
		{"7.4", "10.1", -1},
		{"x", "1", 1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			if got := CompareCodes(tt.a, tt.b); got != tt.want {
				t.Errorf("CompareCodes(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestProblemTypeName(t *testing.T) {
	if got := ProblemTypeName(6); got != "Задание 6" {
		t.Errorf("ProblemTypeName(6) = %q", got)
	}
}
