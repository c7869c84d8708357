package cmd

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/mathprep/taskforge/internal/mcptool"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the task tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol; the logger writes to stderr.
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		p, err := e.pipeline(cmd.Context(), true)
		if err != nil {
			return err
		}
		return server.ServeStdio(mcptool.NewServer(version, p, p))
	},
}
