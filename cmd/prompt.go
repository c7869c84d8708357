package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the prompt that would be sent for a student (no LLM call)",
	Long: `Gather the student's progress, recent mistakes, progress diff and homework
and print the assembled prompt.

Nothing is written to the database and the LLM is not called. Useful for
checking prompt quality against real student data.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := requestFromFlags(cmd)
		if err != nil {
			return err
		}

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
		a, err := p.Assemble(ctx, req)
		if err != nil {
			return err
		}

		sep := strings.Repeat("─", 60)
		fmt.Printf("Progress entries:  %d\n", len(a.Progress.Entries))
		fmt.Printf("Failed questions:  %d\n", len(a.Failures.Questions))
		if w := a.Failures.Window; w != nil {
			fmt.Printf("Error window:      %s → %s\n",
				w.From.Local().Format("2006-01-02 15:04"), w.To.Local().Format("2006-01-02 15:04"))
		}
		fmt.Printf("Progress diff:     %s (%d entries)\n", a.Diff.Status, len(a.Diff.Entries))
		fmt.Printf("Homework pending:  %d of %d\n", len(a.Homework.Pending()), a.Homework.Summary.Assigned)

		fmt.Println()
		fmt.Println(sep)
		fmt.Println("SYSTEM")
		fmt.Println(sep)
		fmt.Println(a.Prompt.System)
		fmt.Println(sep)
		fmt.Println("USER")
		fmt.Println(sep)
		fmt.Println(a.Prompt.User)
		return nil
	},
}

func init() {
	addRequestFlags(promptCmd)
}
