package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mathprep/taskforge/internal/catalog"
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Browse the OGE topic codifier",
}

var topicsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all topics (optionally filtered by section)",
	RunE: func(cmd *cobra.Command, args []string) error {
		section, _ := cmd.Flags().GetString("section")
		cat := catalog.Default()

		topics := cat.Topics()
		if section != "" {
			topics = cat.TopicsBySection(section)
			if len(topics) == 0 {
				return fmt.Errorf("no topics found for section %q", section)
			}
		}

		fmt.Printf("%-8s  %-60s  %6s  %s\n", "Code", "Name", "Skills", "Prerequisites")
		fmt.Println(strings.Repeat("─", 100))
		for _, t := range topics {
			name := t.Name
			if len([]rune(name)) > 60 {
				name = string([]rune(name)[:57]) + "..."
			}
			fmt.Printf("%-8s  %-60s  %6d  %s\n",
				t.Code, name, len(cat.SkillsForTopic(t.Code)), strings.Join(t.Prerequisites, ", "))
		}

		fmt.Printf("\n%d topics\n", len(topics))
		return nil
	},
}

var topicsSkillsCmd = &cobra.Command{
	Use:   "skills <topic-code>",
	Short: "List the skills tagged under a topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := catalog.Default()
		t, ok := cat.Topic(args[0])
		if !ok {
			return fmt.Errorf("unknown topic %q", args[0])
		}
		fmt.Printf("%s %s\n\n", t.Code, t.Name)
		skills := cat.SkillsForTopic(t.Code)
		if len(skills) == 0 {
			fmt.Println("No skills.")
			return nil
		}
		for _, s := range skills {
			fmt.Printf("%5d  %s\n", s.ID, s.Name)
		}
		return nil
	},
}

func init() {
	topicsListCmd.Flags().String("section", "", "Filter by section code (e.g. 3)")

	topicsCmd.AddCommand(topicsListCmd)
	topicsCmd.AddCommand(topicsSkillsCmd)
}
