package studygraph

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/studygraph"
	"github.com/soundprediction/studygraph/pkg/config"
	"github.com/soundprediction/studygraph/pkg/logger"
	"github.com/soundprediction/studygraph/pkg/server"
	"github.com/soundprediction/studygraph/pkg/telemetry"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the studygraph HTTP server",
	Long: `Start the studygraph HTTP server to provide REST API access to the
retrieval engine.

The server provides endpoints for:
- Retrieving study material for a query
- Searching concepts by name
- Building a corpus
- Health checks

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "debug", "Server mode (debug, release, test)")

	serverCmd.Flags().String("db-uri", "", "Neo4j URI")
	serverCmd.Flags().String("db-username", "", "Neo4j username")
	serverCmd.Flags().String("db-password", "", "Neo4j password")
	serverCmd.Flags().String("db-database", "", "Neo4j database name")

	serverCmd.Flags().String("index-backend", "", "Index backend (badger, opensearch)")
	serverCmd.Flags().String("index-url", "", "OpenSearch base URL")
	serverCmd.Flags().String("index-path", "", "Badger data directory")

	serverCmd.Flags().String("embedding-provider", "", "Embedding provider (local, openai)")
	serverCmd.Flags().String("embedding-model", "", "Embedding model")
	serverCmd.Flags().String("embedding-api-key", "", "Embedding API key")

	serverCmd.Flags().String("corpus", "", "Default corpus namespace")
	serverCmd.Flags().String("telemetry-parquet-path", "", "Directory for error telemetry parquet files")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	overrideConfigWithFlags(cmd, cfg)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if cfg.Database.URI == "" {
		return fmt.Errorf("database URI is required")
	}

	telemetrySink := setupLogging(cfg)
	if telemetrySink != nil {
		defer func() {
			if err := telemetrySink.Flush(); err != nil {
				slog.Warn("flushing error telemetry failed", "error", err)
			}
		}()
	}

	registry := studygraph.NewRegistry(func(ctx context.Context, corpusID string) (studygraph.Engine, error) {
		corpusCfg := *cfg
		corpusCfg.Graph.Namespace = corpusID
		return studygraph.NewClient(ctx, &corpusCfg)
	})
	defer registry.Close(context.Background())

	srv := server.New(cfg, registry, cfg.Graph.Namespace)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		slog.Info("received signal, shutting down", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	}
}

// setupLogging installs the colored handler, wrapped with Parquet
// error telemetry when a path is configured. The returned handler is
// non-nil when telemetry is active; callers should Flush it on
// shutdown.
func setupLogging(cfg *config.Config) *telemetry.ParquetHandler {
	level := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler = logger.NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	var sink *telemetry.ParquetHandler
	if cfg.Telemetry.ParquetPath != "" {
		parquetHandler, err := telemetry.NewParquetHandler(handler, cfg.Telemetry.ParquetPath)
		if err != nil {
			slog.Warn("error telemetry disabled", "error", err)
		} else {
			handler = parquetHandler
			sink = parquetHandler
		}
	}

	slog.SetDefault(slog.New(handler))
	return sink
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}

	if cmd.Flags().Changed("db-uri") {
		cfg.Database.URI, _ = cmd.Flags().GetString("db-uri")
	}
	if cmd.Flags().Changed("db-username") {
		cfg.Database.Username, _ = cmd.Flags().GetString("db-username")
	}
	if cmd.Flags().Changed("db-password") {
		cfg.Database.Password, _ = cmd.Flags().GetString("db-password")
	}
	if cmd.Flags().Changed("db-database") {
		cfg.Database.Database, _ = cmd.Flags().GetString("db-database")
	}

	if cmd.Flags().Changed("index-backend") {
		cfg.Index.Backend, _ = cmd.Flags().GetString("index-backend")
	}
	if cmd.Flags().Changed("index-url") {
		cfg.Index.BaseURL, _ = cmd.Flags().GetString("index-url")
	}
	if cmd.Flags().Changed("index-path") {
		cfg.Index.Path, _ = cmd.Flags().GetString("index-path")
	}

	if cmd.Flags().Changed("embedding-provider") {
		cfg.Embedding.Provider, _ = cmd.Flags().GetString("embedding-provider")
	}
	if cmd.Flags().Changed("embedding-model") {
		cfg.Embedding.Model, _ = cmd.Flags().GetString("embedding-model")
	}
	if cmd.Flags().Changed("embedding-api-key") {
		cfg.Embedding.APIKey, _ = cmd.Flags().GetString("embedding-api-key")
	}

	if cmd.Flags().Changed("corpus") {
		cfg.Graph.Namespace, _ = cmd.Flags().GetString("corpus")
	}
	if cmd.Flags().Changed("telemetry-parquet-path") {
		cfg.Telemetry.ParquetPath, _ = cmd.Flags().GetString("telemetry-parquet-path")
	}
}
