// Package app provides the book QA server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/studyforge/bookqa/internal/bookqa"
)

const commandDesc = `Grounded question answering over the Physical AI & Humanoid
Robotics Essentials textbook.

This server provides:
  - Citation-backed chat answers retrieved from the indexed book
  - Conversation sessions with history and clearing
  - Difficulty rewrites and translations of whole chapters
  - Admin book ingestion into the vector index

Configuration can be provided via command-line flags, environment
variables (prefix: BOOKQA_) and a YAML configuration file.`

var configFile string

// NewCommand creates the root cobra command.
func NewCommand() *cobra.Command {
	opts := bookqa.NewOptions()

	cmd := &cobra.Command{
		Use:           bookqa.Name,
		Short:         "Grounded book question-answering service",
		Long:          commandDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd, opts); err != nil {
				return err
			}
			if err := opts.Complete(); err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			return run(opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to the YAML configuration file")
	opts.AddFlags(cmd.Flags())
	return cmd
}

// loadConfig merges the config file and environment into the options.
// Explicit command-line flags keep the highest priority.
func loadConfig(cmd *cobra.Command, opts *bookqa.Options) error {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	v.SetEnvPrefix("BOOKQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Unmarshal overwrites the flag-bound fields, so capture explicit
	// command-line values first and re-apply them afterwards.
	explicit := map[string]string{}
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		explicit[flag.Name] = flag.Value.String()
	})

	if err := v.Unmarshal(opts); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for name, value := range explicit {
		if err := cmd.Flags().Set(name, value); err != nil {
			return fmt.Errorf("failed to re-apply flag %s: %w", name, err)
		}
	}
	return nil
}

func run(opts *bookqa.Options) error {
	cfg, err := opts.Config()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := setupSignalContext()

	server, err := cfg.NewServer(ctx)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return server.Run(ctx)
}

// setupSignalContext returns a context that is cancelled on SIGINT or
// SIGTERM. A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
