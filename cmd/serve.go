package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxtasks/internal/calendar"
	"github.com/teemow/inboxtasks/internal/classify"
	"github.com/teemow/inboxtasks/internal/gmail"
	"github.com/teemow/inboxtasks/internal/google"
	"github.com/teemow/inboxtasks/internal/instrumentation"
	"github.com/teemow/inboxtasks/internal/pipeline"
	"github.com/teemow/inboxtasks/internal/server"
	"github.com/teemow/inboxtasks/internal/store"
	"github.com/teemow/inboxtasks/internal/task"
	"github.com/teemow/inboxtasks/internal/task/googletasks"
	"github.com/teemow/inboxtasks/internal/task/todoist"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func newServeCmd() *cobra.Command {
	var (
		debugMode bool
		addr      string
		dataDir   string
		account   string
		taskList  string
		// Metrics server configuration
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server that exposes the email processing pipeline,
the task and event history, and the Google OAuth flow.

OAuth Configuration:
  GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars are required.
  GOOGLE_REDIRECT_URI defaults to http://localhost:5001/oauth2callback.
  Visit /authorize on the running server to authenticate.

Task Backends:
  Google Tasks is always available once authenticated.
  Set TODOIST_API_TOKEN to enable the Todoist backend.

Classification:
  Set OPENAI_API_KEY to classify with the OpenAI API. Without it a
  keyword rule engine is used. OPENAI_MODEL overrides the model.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			metricsConfig := MetricsConfig{
				Enabled: metricsEnabled,
				Addr:    metricsAddr,
			}
			if addrEnv := os.Getenv("METRICS_ADDR"); addrEnv != "" && !cmd.Flags().Changed("metrics-addr") {
				metricsConfig.Addr = addrEnv
			}
			if os.Getenv("METRICS_ENABLED") == "false" && !cmd.Flags().Changed("metrics-enabled") {
				metricsConfig.Enabled = false
			}

			return runServe(addr, dataDir, account, taskList, debugMode, metricsConfig)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&addr, "addr", server.DefaultAddr, "HTTP server listen address")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory for tokens and state files (default: per-user cache dir)")
	cmd.Flags().StringVar(&account, "account", "default", "Google account name to use")
	cmd.Flags().StringVar(&taskList, "task-list", googletasks.DefaultListTitle, "Google Tasks list to create tasks in")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(addr, dataDir, account, taskList string, debugMode bool, metricsConfig MetricsConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(debugMode)

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error during instrumentation shutdown: %v", err)
		}
	}()

	// Start metrics server on its own port if enabled
	var metricsServer *server.MetricsServer
	if metricsConfig.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsConfig.Addr,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		logger.Info("metrics server started", slog.String("addr", metricsServer.Addr()))

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error during metrics server shutdown: %v", err)
			}
		}()
	}

	oauthCfg := google.ConfigFromEnv()
	if oauthCfg.ClientID == "" || oauthCfg.ClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
	}

	stores, err := openStores(dataDir)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Addr:         addr,
		Account:      account,
		OAuth:        oauthCfg,
		Tokens:       stores.tokens,
		Settings:     stores.settings,
		History:      stores.history,
		NewProcessor: newProcessorFactory(oauthCfg, stores, account, taskList, logger, provider.Metrics()),
		Logger:       logger,
		Metrics:      provider.Metrics(),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	srv.Health().SetReady(true)

	return srv.Run(shutdownCtx)
}

// appStores bundles the flat-file state a running instance works with.
type appStores struct {
	tokens    *google.TokenStore
	processed *store.ProcessedStore
	history   *store.HistoryStore
	settings  *store.SettingsStore
}

func openStores(dataDir string) (*appStores, error) {
	if dataDir == "" {
		dataDir = google.DefaultCacheDir()
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	processed, err := store.NewProcessedStore(filepath.Join(dataDir, "processed.json"))
	if err != nil {
		return nil, err
	}
	history, err := store.NewHistoryStore(
		filepath.Join(dataDir, "tasks_history.json"),
		filepath.Join(dataDir, "events_history.json"),
	)
	if err != nil {
		return nil, err
	}
	settings, err := store.NewSettingsStore(filepath.Join(dataDir, "settings.json"))
	if err != nil {
		return nil, err
	}

	return &appStores{
		tokens:    google.NewTokenStore(dataDir),
		processed: processed,
		history:   history,
		settings:  settings,
	}, nil
}

// newProcessorFactory returns a factory that assembles the full pipeline
// for an authenticated account. Construction is deferred because the
// Gmail and Calendar clients need a stored OAuth token.
func newProcessorFactory(oauthCfg google.OAuthConfig, stores *appStores, account, taskList string, logger *slog.Logger, metrics *instrumentation.Metrics) server.ProcessorFactory {
	return func(ctx context.Context) (*pipeline.Processor, error) {
		mailbox, err := gmail.NewClientForAccount(ctx, oauthCfg, stores.tokens, account)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gmail client for account %s: %w", account, err)
		}
		mailbox.SetMetrics(metrics)

		cal, err := calendar.NewClientForAccount(ctx, oauthCfg, stores.tokens, account)
		if err != nil {
			return nil, fmt.Errorf("failed to create Calendar client for account %s: %w", account, err)
		}
		cal.SetMetrics(metrics)

		registry, err := newProviderRegistry(ctx, oauthCfg, stores.tokens, account, taskList, metrics)
		if err != nil {
			return nil, err
		}

		return pipeline.New(pipeline.Config{
			Mailbox:         mailbox,
			Classifier:      newClassifier(logger),
			ClassifyOptions: classifyOptions(stores.settings.Get()),
			Providers:       registry,
			Calendar:        cal,
			Processed:       stores.processed,
			History:         stores.history,
			Logger:          logger,
			Metrics:         metrics,
		})
	}
}

// classifyOptions maps the persisted category settings onto the
// classifier options for a run.
func classifyOptions(settings store.Settings) classify.Options {
	return classify.Options{
		TaskCategories:     classify.NormalizeCategories(settings.TaskCategories),
		CalendarCategories: classify.NormalizeCategories(settings.CalendarCategories),
	}
}

func newProviderRegistry(ctx context.Context, oauthCfg google.OAuthConfig, tokens *google.TokenStore, account, taskList string, metrics *instrumentation.Metrics) (*task.Registry, error) {
	googleBackend, err := googletasks.NewClient(ctx, oauthCfg, tokens, account, taskList)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Tasks client: %w", err)
	}
	googleBackend.SetMetrics(metrics)

	providers := []task.Provider{googleBackend}
	if token := os.Getenv("TODOIST_API_TOKEN"); token != "" {
		todoistBackend, err := todoist.NewClient(token)
		if err != nil {
			return nil, fmt.Errorf("failed to create Todoist client: %w", err)
		}
		providers = append(providers, todoistBackend)
	}

	return task.NewRegistry(providers...), nil
}

func newClassifier(logger *slog.Logger) classify.Classifier {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return classify.NewRuleClassifier()
	}

	var opts []classify.OpenAIOption
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		opts = append(opts, classify.WithModel(model))
	}
	classifier, err := classify.NewOpenAIClassifier(apiKey, opts...)
	if err != nil {
		logger.Warn("falling back to rule classifier", slog.Any("error", err))
		return classify.NewRuleClassifier()
	}
	return classifier
}

func newLogger(debugMode bool) *slog.Logger {
	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
