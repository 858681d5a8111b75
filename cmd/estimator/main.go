/*
main.go - Application entry point

PURPOSE:
  Runs the patient estimate engine as an HTTP service, or computes
  estimates offline from a JSON request file.

COMMANDS:
  serve       Start the HTTP API (config from env / .env, flags override)
  estimate    Compute one estimate from a request file and print it as JSON
  scenarios   List the built-in scenarios, or run one with --run

STARTUP SEQUENCE (serve):
  1. Load config (viper), apply flag overrides
  2. Initialize logging (zerolog)
  3. Open the SQLite estimate log
  4. Configure the HTTP router
  5. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  estimator serve --port 3000 --db ":memory:"
  estimator estimate --file request.json --pretty
  estimator scenarios --run carve-out-cob

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment settings
  - factory/estimate.go: Request file format
*/
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/warp/estimate-engine/adjudication"
	"github.com/warp/estimate-engine/api"
	"github.com/warp/estimate-engine/config"
	"github.com/warp/estimate-engine/factory"
	"github.com/warp/estimate-engine/logging"
	"github.com/warp/estimate-engine/store/sqlite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "estimator",
		Short:         "Patient cost estimates with coordination of benefits",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newEstimateCmd())
	rootCmd.AddCommand(newScenariosCmd())
	return rootCmd
}

// =============================================================================
// SERVE
// =============================================================================

func newServeCmd() *cobra.Command {
	var (
		port   string
		dbPath string
		noSave bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the estimate API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = dbPath
			}
			if noSave {
				cfg.SaveEstimates = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "HTTP server port (overrides PORT)")
	cmd.Flags().StringVar(&dbPath, "db", "", `SQLite database path, ":memory:" for in-memory (overrides DB_PATH)`)
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Compute estimates without storing them")
	return cmd
}

func runServer(cfg *config.Config) error {
	logging.Init(cfg.Env, cfg.LogLevel)

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer store.Close()
	log.Info().Str("db", cfg.DBPath).Bool("save_estimates", cfg.SaveEstimates).Msg("estimate log opened")

	handler := api.NewHandler(store, cfg.SaveEstimates)
	router := api.NewRouter(handler, routerOptions(cfg))

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("env", cfg.Env).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

// routerOptions mounts the admin routes only in development.
func routerOptions(cfg *config.Config) api.Options {
	return api.Options{
		CORSOrigins: cfg.CORSOrigins,
		EnableAdmin: cfg.IsDev(),
	}
}

// =============================================================================
// ESTIMATE
// =============================================================================

func newEstimateCmd() *cobra.Command {
	var (
		file   string
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Compute an estimate from a JSON request file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				body []byte
				err  error
			)
			if file == "-" {
				body, err = io.ReadAll(cmd.InOrStdin())
			} else {
				body, err = os.ReadFile(file)
			}
			if err != nil {
				return fmt.Errorf("reading request: %w", err)
			}

			in, err := factory.ParseEstimate(body)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), adjudication.CalculateCombinedEstimate(in), pretty)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", `Request JSON file ("-" for stdin)`)
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent the JSON output")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// =============================================================================
// SCENARIOS
// =============================================================================

func newScenariosCmd() *cobra.Command {
	var (
		run    string
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List built-in scenarios, or run one",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if run == "" {
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tEXPECTED\tNAME")
				for _, s := range factory.Scenarios() {
					fmt.Fprintf(tw, "%s\t$%s\t%s\n", s.ID, s.Expected, s.Name)
				}
				return tw.Flush()
			}

			sc, ok := factory.FindScenario(run)
			if !ok {
				return fmt.Errorf("%w: %s", api.ErrUnknownScenario, run)
			}
			in, err := factory.Build(sc.Request)
			if err != nil {
				return err
			}
			return printJSON(out, adjudication.CalculateCombinedEstimate(in), pretty)
		},
	}

	cmd.Flags().StringVar(&run, "run", "", "Scenario id to run")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent the JSON output")
	return cmd
}

func printJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
