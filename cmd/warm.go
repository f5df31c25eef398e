package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/schoolshare/dss-geo/internal/model"
)

var warmService string

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Preload every available artifact into the cache",
	Long:  "Loads the national block-group index and every coverage, pairing, facility and summary artifact of the available states, reporting any that fail validation.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var services []model.Service
		if warmService != "" {
			svc, err := model.ParseService(warmService)
			if err != nil {
				return err
			}
			services = append(services, svc)
		}

		s, err := newService("compose")
		if err != nil {
			return err
		}
		n, err := s.Warm(ctx, services...)
		stats := s.CacheStats()
		zap.L().Info("warm complete",
			zap.Int("states", n),
			zap.Int("entries", stats.Entries),
			zap.Int64("failed", stats.Failed),
		)
		return err
	},
}

func init() {
	warmCmd.Flags().StringVar(&warmService, "service", "", "only warm this service (default all)")
	rootCmd.AddCommand(warmCmd)
}
