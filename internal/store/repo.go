package store

import (
	"context"
	"encoding/json"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // id > After
	Before int64     // id < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// Activity is one answered question.
type Activity struct {
	ID                int64
	UserID            string
	CourseID          string // empty when the row has no course
	QuestionID        string
	IsCorrect         bool
	ProblemNumberType int // 0 when unknown
	Topics            []string
	Skills            []int
	CreatedAt         time.Time
}

// ActivityQuery filters activity rows. Zero values disable a filter.
type ActivityQuery struct {
	UserID        string
	CourseID      string // rows without a course always match
	From          time.Time
	To            time.Time
	OnlyIncorrect bool
	Limit         int
}

// ActivityRepo provides access to student_activity.
type ActivityRepo interface {
	// Append records an answer attempt.
	Append(ctx context.Context, a *Activity) error

	// List returns matching rows ordered by created_at ascending.
	List(ctx context.Context, q ActivityQuery) ([]Activity, error)
}

// MasterySnapshot is a point-in-time mastery vector. RawData is kept as the
// stored JSON so readers decide how to interpret it.
type MasterySnapshot struct {
	ID           int64
	UserID       string
	CourseID     string
	RawData      json.RawMessage
	RunTimestamp time.Time
}

// SnapshotRepo manages mastery snapshots.
type SnapshotRepo interface {
	// Append stores a new snapshot.
	Append(ctx context.Context, snap *MasterySnapshot) error

	// Latest returns up to n snapshots, newest first.
	Latest(ctx context.Context, userID, courseID string, n int) ([]MasterySnapshot, error)
}

// Profile holds the per-user homework assignment.
type Profile struct {
	UserID       string
	Homework     json.RawMessage
	HomeworkName string
	UpdatedAt    time.Time
}

// ProfileRepo provides access to profiles.
type ProfileRepo interface {
	// Get returns the profile, or nil if none exists.
	Get(ctx context.Context, userID string) (*Profile, error)

	// Upsert inserts or replaces a profile.
	Upsert(ctx context.Context, p *Profile) error
}

// TaskRecord is one generated study task.
type TaskRecord struct {
	ID           int64
	UserID       string
	CourseID     string
	HardcodeTask string
	Task         string
	CreatedAt    time.Time
}

// TaskRepo provides access to stories_and_telegram.
type TaskRepo interface {
	// Append stores a generated task.
	Append(ctx context.Context, t *TaskRecord) error

	// Latest returns up to n task rows, newest first.
	Latest(ctx context.Context, userID, courseID string, n int) ([]TaskRecord, error)
}

// FipiQuestion is a FIPI bank entry.
type FipiQuestion struct {
	QuestionID        string
	ProblemNumberType int
	Topics            []string
}

// QuestionBankRepo reads the question tag tables.
type QuestionBankRepo interface {
	// FipiQuestions returns bank entries keyed by question ID. IDs not in
	// the bank are absent from the map.
	FipiQuestions(ctx context.Context, ids []string) (map[string]FipiQuestion, error)

	// QuestionSkills returns skill IDs keyed by question ID.
	QuestionSkills(ctx context.Context, ids []string) (map[string][]int, error)

	// PutFipiQuestion inserts or replaces a bank entry.
	PutFipiQuestion(ctx context.Context, q FipiQuestion) error

	// PutQuestionSkills inserts or replaces a question's skills.
	PutQuestionSkills(ctx context.Context, questionID string, skills []int) error
}

// HomeworkProgress is one homework completion record.
type HomeworkProgress struct {
	ID               int64
	UserID           string
	QuestionID       string
	HomeworkName     string
	IsCorrect        *bool
	CompletionStatus string
	CreatedAt        time.Time
}

// HomeworkRepo provides access to homework_progress.
type HomeworkRepo interface {
	// Append records a homework attempt.
	Append(ctx context.Context, h *HomeworkProgress) error

	// ForQuestions returns a user's records for the given questions, oldest
	// first. An empty homeworkName matches every assignment.
	ForQuestions(ctx context.Context, userID, homeworkName string, questionIDs []string) ([]HomeworkProgress, error)
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEventRecord is a stored LLM request event.
type LLMRequestEventRecord struct {
	ID        int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMUsageStats aggregates usage for one purpose.
type LLMUsageStats struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// LLMModelUsage aggregates usage for one model.
type LLMModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// EventRepo provides append and query access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEventRecord, error)

	// GetLLMEvent returns one event, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int64) (*LLMRequestEventRecord, error)

	// LLMUsageByPurpose aggregates token usage per purpose.
	LLMUsageByPurpose(ctx context.Context) ([]LLMUsageStats, error)

	// LLMUsageByModel aggregates token usage per model.
	LLMUsageByModel(ctx context.Context) ([]LLMModelUsage, error)
}
