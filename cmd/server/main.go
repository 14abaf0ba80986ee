package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"api-gateway/internal/app"
	"api-gateway/internal/config"
	"api-gateway/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Caching, rate-limited gateway for a single upstream API",
	Long: `gateway exposes GET /api/proxy, which forwards to one fixed upstream URL.

Each request is:
  - authenticated with the x-api-key header
  - rate limited per client address in fixed windows
  - served from an in-memory cache while the cached response is fresh`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment")
	flags.Int("port", 3000, "Port to listen on (PORT)")
	flags.String("env", "development", "Runtime environment; production switches to JSON logs (APP_ENV)")
	flags.String("api-url", "", "Upstream URL to proxy (API_URL)")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	// A missing .env file is fine; the environment and defaults still apply.
	if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
		return fmt.Errorf("load env file %s: %w", envFile, err)
	}

	v, err := config.NewViper()
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("failed to init app", zap.Error(err))
		return err
	}

	log.Info("API endpoints:",
		zap.Strings("routes", []string{
			"GET    /api/proxy",
			"GET    /health",
			"GET    /metrics",
		}),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := application.Run(ctx); err != nil {
		log.Error("application stopped", zap.Error(err))
		return err
	}
	return nil
}

// bindFlags lets explicitly set flags override environment values.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for flagName, key := range map[string]string{
		"port":    config.KeyPort,
		"env":     config.KeyEnv,
		"api-url": config.KeyAPIURL,
	} {
		f := flags.Lookup(flagName)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", flagName, err)
		}
	}
	return nil
}
