// Command flowctl is the operator CLI: it validates flow documents, encodes
// and decodes edge handles, moves flows to and from the builder and seeds a
// development database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flowsmith/backend/internal/config"
	"flowsmith/backend/internal/logging"
)

type app struct {
	configFile string
	cfg        *config.Config
	logger     *logging.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "flowctl",
		Short:        "Inspect and move Langflow flows",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(a.configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.NewLogger(cfg.Log.Mode)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "path to config file")

	root.AddCommand(
		newValidateCmd(a),
		newHandleCmd(),
		newPushCmd(a),
		newPullCmd(a),
		newSeedCmd(a),
	)
	return root
}
