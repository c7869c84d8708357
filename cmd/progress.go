package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mathprep/taskforge/internal/progress"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show a student's current mastery estimates",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, course := studentFlags(cmd)
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		p, err := e.pipeline(ctx, false)
		if err != nil {
			return err
		}
		v, err := p.Progress(ctx, user, course)
		if err != nil {
			return err
		}
		printVector(v)
		return nil
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Compute and store a mastery snapshot for a student",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, course := studentFlags(cmd)
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		p, err := e.pipeline(ctx, false)
		if err != nil {
			return err
		}
		snap, v, err := p.Snapshot(ctx, user, course)
		if err != nil {
			return err
		}
		fmt.Printf("Stored snapshot %d at %s (%d entries)\n",
			snap.ID, snap.RunTimestamp.Local().Format("2006-01-02 15:04:05"), len(v.Entries))
		return nil
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Diff a student's two most recent mastery snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, course := studentFlags(cmd)
		asJSON, _ := cmd.Flags().GetBool("json")
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		p, err := e.pipeline(ctx, false)
		if err != nil {
			return err
		}
		res := p.ProgressDiff(ctx, user, course)

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		if res.NoData() {
			fmt.Printf("No diff: %s\n", res.Reason)
			return nil
		}

		fmt.Printf("%-40s  %8s  %8s  %8s\n", "Key", "Previous", "Recent", "Diff")
		fmt.Println(strings.Repeat("─", 72))
		for _, d := range res.Entries {
			fmt.Printf("%-40s  %8s  %8s  %+8.4f\n", truncate(d.Key, 40), probText(d.Previous), probText(d.Recent), d.Diff)
		}
		return nil
	},
}

func studentFlags(cmd *cobra.Command) (user, course string) {
	user, _ = cmd.Flags().GetString("user")
	course, _ = cmd.Flags().GetString("course")
	return strings.TrimSpace(user), strings.TrimSpace(course)
}

func probText(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *p)
}

func printVector(v progress.Vector) {
	if v.Empty() {
		fmt.Println("No answers recorded yet.")
		return
	}
	fmt.Printf("%-13s  %-8s  %-44s  %6s  %8s  %s\n", "Kind", "Key", "Name", "Prob", "Answers", "State")
	fmt.Println(strings.Repeat("─", 100))
	for _, en := range v.Entries {
		fmt.Printf("%-13s  %-8s  %-44s  %6.3f  %4d/%-3d  %s\n",
			en.Kind, truncate(en.Key, 8), truncate(en.Name, 44), en.Prob, en.Correct, en.Attempts, en.State)
	}
}

func init() {
	for _, c := range []*cobra.Command{progressCmd, snapshotCmd, diffCmd} {
		c.Flags().StringP("user", "u", "", "Student ID (required)")
		c.Flags().StringP("course", "c", "", "Course ID")
		_ = c.MarkFlagRequired("user")
	}
	diffCmd.Flags().Bool("json", false, "Print the result as JSON")
}
