package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/refreshd/internal/httpserver"
)

const shutdownTimeout = 10 * time.Second

func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the refresh scheduler and the status server",
		Long: `Run the refresh scheduler until interrupted.

A tick runs immediately and then once per refresh.tick_period. The latest
tick is served as JSON on GET /status; GET /healthz reports liveness.
Pass --addr "" to disable the status server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Status.Addr = addr
			}
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			rt, err := newRuntime(ctx, cfg, logger, noCache)
			if err != nil {
				return err
			}
			defer rt.Close()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return rt.scheduler.Run(gctx) })

			if cfg.Status.Addr != "" {
				srv := httpserver.New(cfg.Status.Addr, rt.scheduler, logger)
				g.Go(srv.Start)
				g.Go(func() error {
					<-gctx.Done()
					sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer cancel()
					return srv.Stop(sctx)
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "status server address (overrides status.addr)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the enrichment response cache")
	return cmd
}
