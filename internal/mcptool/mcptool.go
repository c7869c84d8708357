// Package mcptool exposes task generation and progress data as MCP tools,
// so an assistant can request a study task for a student over stdio.
//
// Each tool follows the same shape:
// - a struct holding its dependency, injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes a call and returns a result
package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mathprep/taskforge/internal/progress"
	"github.com/mathprep/taskforge/internal/snapdiff"
	"github.com/mathprep/taskforge/internal/taskgen"
)

// Generator runs the task-generation pipeline.
type Generator interface {
	Generate(ctx context.Context, req taskgen.Request) (*taskgen.Result, error)
}

// ProgressReader serves a student's progress data.
type ProgressReader interface {
	Progress(ctx context.Context, userID, courseID string) (progress.Vector, error)
	ProgressDiff(ctx context.Context, userID, courseID string) snapdiff.Result
}

// NewServer builds an MCP server with every tool registered.
func NewServer(version string, gen Generator, prog ProgressReader) *server.MCPServer {
	s := server.NewMCPServer(
		"taskforge",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	generate := NewGenerateTaskTool(gen)
	s.AddTool(generate.Definition(), generate.Handle)

	progTool := NewProgressTool(prog)
	s.AddTool(progTool.Definition(), progTool.Handle)

	diff := NewProgressDiffTool(prog)
	s.AddTool(diff.Definition(), diff.Handle)

	return s
}

// GenerateTaskTool handles the generate_task tool.
type GenerateTaskTool struct {
	gen Generator
}

func NewGenerateTaskTool(gen Generator) *GenerateTaskTool {
	return &GenerateTaskTool{gen: gen}
}

func (t *GenerateTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("generate_task",
		mcp.WithDescription("Generate a personalized OGE math study task for a student from their progress, recent mistakes and homework."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Student ID")),
		mcp.WithString("course_id", mcp.Required(), mcp.Description("Course ID")),
		mcp.WithNumber("target_score", mcp.Description("Target exam grade")),
		mcp.WithNumber("weekly_hours", mcp.Description("Hours per week the student can study")),
		mcp.WithNumber("school_grade", mcp.Description("Current school grade")),
		mcp.WithString("date_string", mcp.Description("Exam date as shown to the student")),
		mcp.WithNumber("number_of_words", mcp.Description("Word budget for the task text")),
	)
}

func (t *GenerateTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r := taskgen.Request{
		UserID:        strings.TrimSpace(req.GetString("user_id", "")),
		CourseID:      taskgen.CourseID(courseArg(req)),
		TargetScore:   intArg(req, "target_score", 0),
		WeeklyHours:   req.GetFloat("weekly_hours", 0),
		SchoolGrade:   intArg(req, "school_grade", 0),
		DateString:    req.GetString("date_string", ""),
		NumberOfWords: intArg(req, "number_of_words", 0),
	}
	res, err := t.gen.Generate(ctx, r)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("generate task: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString(res.Task)
	if len(res.FocusTopics) > 0 {
		sb.WriteString("\n\n---\nFocus topics: " + strings.Join(res.FocusTopics, ", "))
	}
	if len(res.PreviouslyFailedTopics) > 0 {
		sb.WriteString("\n\n---\nFailed topics:")
		for _, tp := range res.PreviouslyFailedTopics {
			sb.WriteString(fmt.Sprintf("\n- %s %s (%d)", tp.Code, tp.Name, tp.Count))
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// ProgressTool handles the student_progress tool.
type ProgressTool struct {
	prog ProgressReader
}

func NewProgressTool(prog ProgressReader) *ProgressTool {
	return &ProgressTool{prog: prog}
}

func (t *ProgressTool) Definition() mcp.Tool {
	return mcp.NewTool("student_progress",
		mcp.WithDescription("Return a student's current mastery estimates per topic, skill and problem type as JSON."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Student ID")),
		mcp.WithString("course_id", mcp.Description("Course ID")),
	)
}

func (t *ProgressTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := strings.TrimSpace(req.GetString("user_id", ""))
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	v, err := t.prog.Progress(ctx, userID, courseArg(req))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load progress: %v", err)), nil
	}
	return jsonResult(v)
}

// ProgressDiffTool handles the progress_diff tool.
type ProgressDiffTool struct {
	prog ProgressReader
}

func NewProgressDiffTool(prog ProgressReader) *ProgressDiffTool {
	return &ProgressDiffTool{prog: prog}
}

func (t *ProgressDiffTool) Definition() mcp.Tool {
	return mcp.NewTool("progress_diff",
		mcp.WithDescription("Compare a student's two most recent mastery snapshots and list the largest changes as JSON."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Student ID")),
		mcp.WithString("course_id", mcp.Description("Course ID")),
	)
}

func (t *ProgressDiffTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := strings.TrimSpace(req.GetString("user_id", ""))
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	return jsonResult(t.prog.ProgressDiff(ctx, userID, courseArg(req)))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// courseArg accepts course_id as a string or a JSON number.
func courseArg(req mcp.CallToolRequest) string {
	switch v := req.GetArguments()["course_id"].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return taskgen.NumericCourseID(json.Number(strconv.FormatFloat(v, 'f', -1, 64))).String()
	}
	return ""
}

// intArg extracts an integer argument; JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}
