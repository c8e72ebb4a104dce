package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	errs "github.com/matzehuels/refreshd/pkg/errors"
	"github.com/matzehuels/refreshd/pkg/integrations/github"
)

func (c *CLI) enrichCommand() *cobra.Command {
	var (
		asJSON  bool
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "enrich <repo-url>",
		Short: "Fetch repository details from GitHub",
		Long: `Fetch stars, archive state, last commit, languages and license of a
GitHub repository, the same way a refresh tick does.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, repo, ok := github.ParseRepoURL(args[0])
			if !ok {
				return errs.New(errs.ErrCodeInvalidInput, "not a GitHub repository URL: %s", args[0])
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rc, err := openCache(ctx, cfg, noCache)
			if err != nil {
				return err
			}
			defer rc.Close()

			spin := newSpinner(ctx, c.errOut(), "Enriching "+owner+"/"+repo)
			spin.Start()
			e, err := newGitHub(cfg, rc).Enrich(ctx, owner, repo)
			spin.Stop()
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(e)
			}
			c.printEnrichment(e)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the response cache")
	return cmd
}
