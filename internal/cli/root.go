// Package cli implements the regagent command line
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bububa/regulation-agents/internal/config"
	"github.com/bububa/regulation-agents/internal/logger"
)

func Execute() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// options are the persistent flags shared by every subcommand
type options struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := new(options)

	cmd := &cobra.Command{
		Use:          "regagent",
		Short:        "Aviation regulation agents: route questions to EASA, DEF-STAN, EDA, FAA and JSSG experts",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			logger.Init(cfg.Logger, cmd.ErrOrStderr())
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default ./regagent.yaml or $HOME/.regagent/regagent.yaml)")

	cmd.AddCommand(
		serveCmd(opts),
		askCmd(opts),
		routeCmd(opts),
		domainsCmd(opts),
		crawlCmd(opts),
		ecfrCmd(opts),
		ingestCmd(opts),
	)
	return cmd
}
