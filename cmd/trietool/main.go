// Command trietool ingests, inspects, scans and compacts hash trie stores.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xtdb/hashtrie"
)

const (
	envPrefix         = "TRIETOOL"
	defaultConfigName = ".trietool"
)

type config struct {
	DB        string `mapstructure:"db"`
	LogLevel  string `mapstructure:"log-level"`
	LogLimit  int    `mapstructure:"log-limit"`
	PageLimit int    `mapstructure:"page-limit"`
	Verbose   bool   `mapstructure:"verbose"`
	Metrics   bool   `mapstructure:"metrics"`
}

var (
	cfgFile string
	cfg     config
	logger  *slog.Logger
	reg     = prometheus.NewRegistry()
	metrics = hashtrie.NewMetrics(reg)
)

var rootCmd = &cobra.Command{
	Use:           "trietool",
	Short:         "Ingest, inspect, scan and compact bitemporal hash trie stores",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initConfig(cmd)
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if cfg.Metrics {
			dumpMetrics()
		}
	},
}

// initConfig layers the config file and TRIETOOL_* variables under the
// command line flags.
func initConfig(cmd *cobra.Command) error {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(defaultConfigName)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfgErr := v.ReadInConfig()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	initLogger()
	if cfgErr != nil {
		if _, ok := cfgErr.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return fmt.Errorf("read config: %w", cfgErr)
		}
	}
	return nil
}

func initLogger() {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	if cfg.Verbose && level > slog.LevelDebug {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func dumpMetrics() {
	mfs, err := reg.Gather()
	if err != nil {
		logger.Error("gather metrics", "err", err)
		return
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(os.Stderr, mf); err != nil {
			logger.Error("write metrics", "err", err)
			return
		}
	}
}

func openStore() (*hashtrie.Store, error) {
	return hashtrie.Open(cfg.DB, hashtrie.Options{
		Logger:  logger,
		Verbose: cfg.Verbose,
		Metrics: metrics,
	})
}

func liveOptions() hashtrie.LiveOptions {
	return hashtrie.LiveOptions{LogLimit: cfg.LogLimit, PageLimit: cfg.PageLimit}
}

func initFlags() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", fmt.Sprintf("config file (default is $HOME/%s.yaml)", defaultConfigName))
	pf.String("db", "trietool.db", "Bolt database file")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.Int("log-limit", hashtrie.DefaultLogLimit, "live trie leaf log size")
	pf.Int("page-limit", hashtrie.DefaultPageLimit, "live trie leaf page size before splitting")
	pf.Bool("verbose", false, "log every trie operation")
	pf.Bool("metrics", false, "print Prometheus metrics to stderr on exit")

	rootCmd.AddCommand(ingestCmd(), dumpCmd(), scanCmd(), compactCmd())
}

func main() {
	initFlags()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "trietool:", err)
		os.Exit(1)
	}
}
