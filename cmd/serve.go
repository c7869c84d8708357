package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/mathprep/taskforge/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the task-generation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			e.cfg.HTTP.Addr = addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := e.pipeline(ctx, true)
		if err != nil {
			return err
		}

		if e.cfg.LogMode == "prod" || e.cfg.LogMode == "production" {
			gin.SetMode(gin.ReleaseMode)
		}
		router, err := httpapi.NewRouter(httpapi.Options{
			Generator: p,
			Progress:  p,
			Health:    e.store,
			Log:       e.log,
		})
		if err != nil {
			return err
		}
		return httpapi.Serve(ctx, e.cfg.HTTP.Addr, router, e.cfg.HTTP.ShutdownTimeout, e.log)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides TASKFORGE_HTTP_ADDR)")
}
