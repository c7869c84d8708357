package progress

// MasteryState is an entry's position in the mastery lifecycle.
type MasteryState string

const (
	StateNew      MasteryState = "new"
	StateLearning MasteryState = "learning"
	StateMastered MasteryState = "mastered"
)

// Kind identifies what an entry is keyed by.
type Kind string

const (
	KindTopic       Kind = "topic"
	KindSkill       Kind = "skill"
	KindProblemType Kind = "problem_type"
)

// kindOrder fixes the order kinds appear in a vector.
var kindOrder = map[Kind]int{
	KindTopic:       0,
	KindSkill:       1,
	KindProblemType: 2,
}
