package taskgen

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mathprep/taskforge/internal/prompt"
)

var (
	// ErrInvalidRequest marks requests rejected before any work is done.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrGeneration marks a failed LLM call.
	ErrGeneration = errors.New("task generation failed")
)

// CourseID accepts both string and numeric JSON values.
type CourseID string

func (c *CourseID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = CourseID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("course_id must be a string or a number")
	}
	*c = NumericCourseID(n)
	return nil
}

// NumericCourseID formats a numeric course id. Integral values are written
// without a fraction or exponent, so 1, 1.0 and 1e0 all give "1".
func NumericCourseID(n json.Number) CourseID {
	if i, err := n.Int64(); err == nil {
		return CourseID(strconv.FormatInt(i, 10))
	}
	if f, err := n.Float64(); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return CourseID(strconv.FormatInt(int64(f), 10))
	}
	return CourseID(n.String())
}

func (c CourseID) String() string {
	return string(c)
}

// Request is a task-generation request.
type Request struct {
	UserID        string   `json:"user_id"`
	CourseID      CourseID `json:"course_id"`
	TargetScore   int      `json:"target_score,omitempty"`
	WeeklyHours   float64  `json:"weekly_hours,omitempty"`
	SchoolGrade   int      `json:"school_grade,omitempty"`
	DateString    string   `json:"date_string,omitempty"`
	NumberOfWords int      `json:"number_of_words,omitempty"`
}

// Validate checks the required fields and value ranges.
func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.UserID) == "":
		return fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	case r.CourseID == "":
		return fmt.Errorf("%w: course_id is required", ErrInvalidRequest)
	case r.TargetScore < 0:
		return fmt.Errorf("%w: target_score must not be negative", ErrInvalidRequest)
	case r.WeeklyHours < 0:
		return fmt.Errorf("%w: weekly_hours must not be negative", ErrInvalidRequest)
	case r.SchoolGrade < 0:
		return fmt.Errorf("%w: school_grade must not be negative", ErrInvalidRequest)
	case r.NumberOfWords < 0:
		return fmt.Errorf("%w: number_of_words must not be negative", ErrInvalidRequest)
	}
	return nil
}

// Params returns the prompt parameters carried by the request.
func (r Request) Params() prompt.Params {
	return prompt.Params{
		TargetScore:   r.TargetScore,
		WeeklyHours:   r.WeeklyHours,
		SchoolGrade:   r.SchoolGrade,
		DateString:    r.DateString,
		NumberOfWords: r.NumberOfWords,
	}
}
