package cmd

import (
	"github.com/spf13/cobra"

	"github.com/priyansh1913/open-deep-research-web/internal/server"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Start the HTTP API used by the web client.

Endpoints:
  POST /api/research              research a topic
  POST /api/follow-up             answer a question about a report
  POST /api/follow-up-questions   suggest follow-up questions
  POST /api/generate-image        generate an image
  POST /api/refine-prompt         refine an image prompt
  GET  /api/runs[/{id}[/report]]  stored runs
  GET  /api/stream                websocket with per-step progress

The server shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.New(a.svc, a.cfg.Server, a.logger)
			return srv.ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().String("addr", "", "Listen address (overrides config, e.g. :8000)")
	cmd.Flags().Bool("cpu", false, "Force CPU image generation")

	return cmd
}
