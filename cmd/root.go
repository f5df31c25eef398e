package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/schoolshare/dss-geo/internal/config"
	"github.com/schoolshare/dss-geo/internal/explorer"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dss",
	Short: "Explore school-sharing optimization results",
	Long:  "Reads precomputed school-sharing optimization results and census block-group polygons, and serves choropleth layers, coverage statistics and pairing tables per state.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

// newService validates the loaded configuration for mode and builds the
// explorer service.
func newService(mode string) (*explorer.Service, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	return explorer.New(cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
