package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mathprep/taskforge/internal/taskgen"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a study task for a student",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := requestFromFlags(cmd)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		structured, _ := cmd.Flags().GetBool("structured")

		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		if structured {
			e.cfg.Task.Structured = true
		}

		ctx := cmd.Context()
		p, err := e.pipeline(ctx, true)
		if err != nil {
			return err
		}
		res, err := p.Generate(ctx, req)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		fmt.Println(res.Task)
		fmt.Println()
		fmt.Println(strings.Repeat("─", 60))
		m := res.Metadata
		fmt.Printf("Model:     %s\n", m.Model)
		fmt.Printf("Tokens:    %d in / %d out\n", m.InputTokens, m.OutputTokens)
		if m.EstimatedCostUSD > 0 {
			fmt.Printf("Cost:      %s\n", formatCost(m.EstimatedCostUSD))
		}
		fmt.Printf("Latency:   %dms\n", m.LatencyMs)
		if len(res.FocusTopics) > 0 {
			fmt.Printf("Focus:     %s\n", strings.Join(res.FocusTopics, ", "))
		}
		if len(res.PreviouslyFailedTopics) > 0 {
			fmt.Println("Failed topics:")
			for _, t := range res.PreviouslyFailedTopics {
				fmt.Printf("  %-6s %-50s %d\n", t.Code, truncate(t.Name, 50), t.Count)
			}
		}
		return nil
	},
}

// addRequestFlags registers the student and task parameter flags.
func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("user", "u", "", "Student ID (required)")
	cmd.Flags().StringP("course", "c", "", "Course ID (required)")
	cmd.Flags().Int("target-score", 0, "Target exam grade")
	cmd.Flags().Float64("weekly-hours", 0, "Study hours per week")
	cmd.Flags().Int("grade", 0, "School grade")
	cmd.Flags().String("date", "", "Exam date as shown to the student")
	cmd.Flags().Int("words", 0, "Word budget for the task text")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("course")
}

func requestFromFlags(cmd *cobra.Command) (taskgen.Request, error) {
	f := cmd.Flags()
	user, _ := f.GetString("user")
	course, _ := f.GetString("course")
	target, _ := f.GetInt("target-score")
	hours, _ := f.GetFloat64("weekly-hours")
	grade, _ := f.GetInt("grade")
	date, _ := f.GetString("date")
	words, _ := f.GetInt("words")

	req := taskgen.Request{
		UserID:        strings.TrimSpace(user),
		CourseID:      taskgen.CourseID(strings.TrimSpace(course)),
		TargetScore:   target,
		WeeklyHours:   hours,
		SchoolGrade:   grade,
		DateString:    date,
		NumberOfWords: words,
	}
	return req, req.Validate()
}

func init() {
	addRequestFlags(generateCmd)
	generateCmd.Flags().Bool("json", false, "Print the full result as JSON")
	generateCmd.Flags().Bool("structured", false, "Request a schema-checked JSON envelope (overrides TASKFORGE_TASK_STRUCTURED)")
}
