package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	nexus "github.com/obinexus/nexus-search"
)

var (
	cfgFile string
	cfg     CLIConfig
	engine  *nexus.SearchEngine
	logger  = log.NewWithOptions(os.Stderr, log.Options{Prefix: "nexus"})

	rootCmd = &cobra.Command{
		Use:   "nexus",
		Short: "Embeddable full-text search engine CLI",
		Long:  "nexus indexes and searches semi-structured documents from the command line.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			loaded, err := loadCLIConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			return openEngine(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if engine == nil {
				return nil
			}
			return engine.Close(cmd.Context())
		},
	}
)

func openEngine(ctx context.Context) error {
	econf := nexus.DefaultEngineConfig(cfg.IndexName)

	fields := make([]nexus.FieldConfig, 0, len(cfg.Fields))
	for path, weight := range cfg.Fields {
		fields = append(fields, nexus.FieldConfig{Path: path, Weight: weight, MaxWordLength: 64})
	}
	if len(fields) > 0 {
		econf.Fields = fields
	}
	econf.Logger = logger
	econf.Cache.Capacity = cfg.CacheSize
	econf.Cache.TTL = time.Duration(cfg.CacheTTLMs) * time.Millisecond

	store, err := nexus.OpenBoltStore(filepath.Join(cfg.DataDir, cfg.IndexName+".bolt"))
	if err != nil {
		return err
	}
	econf.Store = store

	engine = nexus.NewSearchEngine(econf)
	return engine.Initialize(ctx)
}

func logRegisteredFlags(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		logger.Debug("flag registered", "name", f.Name, "default", f.DefValue)
	})
}

// Execute runs the root command.
func Execute() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.nexus/config.toml)")
	rootCmd.AddCommand(indexCmd, searchCmd)
	logRegisteredFlags(rootCmd.PersistentFlags())
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
