package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/refreshd/pkg/config"
)

func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect refreshd configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "example",
		Short: "Print a config file with the built-in defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(c.out, config.Example())
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			c.printSuccess("Configuration is valid")
			c.printKeyValue("store", cfg.Store.Driver+" "+cfg.Store.DSN)
			c.printKeyValue("cache", cfg.Cache.Backend)
			c.printKeyValue("interval", fmt.Sprintf("%d days", cfg.Refresh.IntervalDays))
			return nil
		},
	})

	return cmd
}
