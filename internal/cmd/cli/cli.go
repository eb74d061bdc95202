package cli

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/clambin/go-common/charmer"
	"github.com/clambin/wunderground/internal/app"
	"github.com/clambin/wunderground/internal/collector"
	"github.com/clambin/wunderground/internal/configuration"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFilename string
	RootCmd        = cobra.Command{
		Use:   "wunderground",
		Short: "Publishes current conditions and forecasts from Weather Underground",
		Args:  cobra.NoArgs,
		RunE:  runOnce,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&configFilename, "config", "", "Configuration file")
	_ = charmer.SetPersistentFlags(&RootCmd, viper.GetViper(), configuration.Arguments)
	RootCmd.AddCommand(&scheduleCmd, &credentialsCmd)
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env file", "err", err)
	}

	if configFilename != "" {
		viper.SetConfigFile(configFilename)
	} else {
		viper.AddConfigPath("/etc/wunderground/")
		viper.AddConfigPath("$HOME/.wunderground")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	configuration.SetDefaults(viper.GetViper())

	viper.SetEnvPrefix("WUNDERGROUND")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// the configuration may come from flags and environment only
		var notFound viper.ConfigFileNotFoundError
		if configFilename != "" || !errors.As(err, &notFound) {
			slog.Error("failed to read config file", "err", err)
			os.Exit(1)
		}
	}
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	var opts slog.HandlerOptions
	if debug {
		opts.Level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &opts))
}

// runOnce performs a single run: the scheduled-job contract.
func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, err := configuration.Load(viper.GetViper())
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Debug)
	logger.Debug("starting", "version", cmd.Root().Version)

	registry := prometheus.NewRegistry()
	job, err := app.New(cfg, cmd.OutOrStdout(), registry, logger)
	if err != nil {
		return err
	}
	defer func() { _ = job.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Schedule.Timeout)
	defer cancel()
	summary, err := job.Run(ctx)

	if cfg.Prometheus.Pushgateway != "" {
		c := collector.Collector{Logger: logger.With("component", "collector")}
		c.Update(summary)
		registry.MustRegister(&c)
		if pushErr := push.New(cfg.Prometheus.Pushgateway, cfg.Prometheus.Job).Gatherer(registry).Push(); pushErr != nil {
			logger.Warn("failed to push metrics", "err", pushErr)
		}
	}
	return err
}
