// Command tabsync bulk-loads tournament rosters from CSV files into a
// Tabbycat instance through its JSON API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hvedges/tabsync/internal/api"
	"github.com/hvedges/tabsync/internal/config"
)

var (
	flagConfigPath string
	flagLogLevel   string
	flagLogJSON    bool
	flagLogFile    string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tabsync",
	Short: "Bulk roster synchronization for Tabbycat tournaments",
	Long: `tabsync imports institutions, teams, speakers, judges, rooms and
pairwise conflicts from CSV files into a Tabbycat tournament.

Imports are idempotent: entities that already exist on the remote side are
matched and skipped, so a partially failed run can simply be repeated after
the input is fixed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = buildLogger()
		if err != nil {
			return err
		}
		if flagConfigPath == "" {
			flagConfigPath, err = config.DefaultPath()
			if err != nil {
				return err
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "emit logs as JSON")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "also write logs to this file, with rotation")

	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(clashCmd)
	rootCmd.AddCommand(sensibleCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(runsCmd)
}

// buildLogger assembles the zap logger from the persistent flags. Console
// output goes to stderr; an optional rotating file sink is added on top.
func buildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(flagLogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", flagLogLevel, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if flagLogJSON {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		devCfg := zap.NewDevelopmentEncoderConfig()
		devCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(devCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level),
	}
	if flagLogFile != "" {
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   flagLogFile,
			MaxSize:    20, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
		})
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg), sink, level))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

// loadClient reads the config and builds the rate-limited API client.
func loadClient() (*api.Client, error) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return api.New(cfg.TabbycatURL, cfg.TournamentSlug, cfg.APIKey, logger), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
