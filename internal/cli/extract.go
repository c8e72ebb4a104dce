package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/matzehuels/refreshd/pkg/extract"
)

func (c *CLI) extractCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "extract <url>",
		Short: "Fetch a page and print the metadata refreshd would extract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ex := extract.New(cfg.ExtractOptions(), loggerFromContext(ctx))

			spin := newSpinner(ctx, c.errOut(), "Fetching "+args[0])
			spin.Start()
			res, err := ex.Extract(ctx, args[0])
			spin.Stop()
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			c.printExtraction(res)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
