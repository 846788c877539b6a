// Package app provides the DataBridge server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kart-io/databridge/cmd/databridge/app/options"
)

const (
	// Name is the name of the application.
	Name = "databridge-server"

	// commandDesc is the description of the command.
	commandDesc = `DataBridge Service

The document ingestion and retrieval orchestration service.

This server provides:
  - Document ingestion with chunking, rules and vector embeddings
  - Permission-scoped semantic retrieval with optional LLM reranking
  - Grounded question answering
  - Persistent LLM context caches`
)

// NewApp creates and returns the root command.
func NewApp() *cobra.Command {
	opts := options.NewServerOptions()
	var configFile string

	cmd := &cobra.Command{
		Use:          Name,
		Long:         commandDesc,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(configFile, opts); err != nil {
				return err
			}
			return run(opts)
		},
	}

	opts.AddFlags(cmd.Flags())
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to the configuration file.")

	return cmd
}

// loadConfig merges the optional configuration file into the options.
// Flags take precedence over file values.
func loadConfig(configFile string, opts *options.ServerOptions) error {
	if configFile == "" {
		return nil
	}

	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", configFile, err)
	}
	if err := viper.Unmarshal(opts); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) error {
	if err := opts.Complete(); err != nil {
		return fmt.Errorf("failed to complete options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

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
