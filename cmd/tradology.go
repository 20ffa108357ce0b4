package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qaliblog/tradology/pkg/app"
	"github.com/qaliblog/tradology/utilities"
)

const banner = `
  __                     .___     .__
_/  |_____________     __| _/____ |  |   ____   ____ ___.__.
\   __\_  __ \__  \   / __ |/  _ \|  |  /  _ \ / ___<   |  |
 |  |  |  | \// __ \_/ /_/ (  <_> )  |_(  <_> ) /_/  >___  |
 |__|  |__|  (____  /\____ |\____/|____/\____/\___  // ____|
                  \/      \/                 /_____/ \/

        Multi-source market data, reconciled.
[]=========================================================================[]`

var (
	cfgFile string
	cfg     utilities.AppConfig
	logger  zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tradology",
	Short: "tradology market-analysis dashboard backend",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("json")
		viper.AutomaticEnv()
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("failed to unmarshal config: %w", err)
		}
		cfg.ApplyDefaults()
		logger = utilities.NewLogger(cfg.Logging)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(banner)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigChan
			logger.Warn().Str("signal", sig.String()).Msg("received signal, initiating graceful shutdown")
			cancel()
		}()

		return app.Run(ctx, &cfg, logger)
	},
}

// Execute runs the root command.
func Execute() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.json", "config file path")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
