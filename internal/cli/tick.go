package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) tickCommand() *cobra.Command {
	var (
		asJSON  bool
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one refresh tick and print its status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			rt, err := newRuntime(ctx, cfg, logger, noCache)
			if err != nil {
				return err
			}
			defer rt.Close()

			prog := newProgress(logger)
			st, err := rt.scheduler.Tick(ctx)
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Tick %s finished", st.TickID))

			if asJSON {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			c.printTickStatus(st)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the status as JSON")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the enrichment response cache")
	return cmd
}
