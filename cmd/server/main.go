/*
main.go - Application entry point

PURPOSE:
  Command-line front end of the loan ledger. The serve command runs the
  HTTP API; the other commands work directly against the store or against
  loan documents on disk.

COMMANDS:
  serve      Run the HTTP server (and the audit scheduler if enabled)
  schedule   Print the schedule generated from a loan document
  audit      Run one aggregate audit pass and exit
  config     Write the default configuration to a file
  version    Print the version

STARTUP SEQUENCE (serve):
  1. Load config (defaults, then --config file, then LOANLEDGER_* env)
  2. Build the logrus logger
  3. Open the store (sqlite3 or postgres)
  4. Create the loan service and HTTP handler
  5. Start the audit scheduler when audit.enabled
  6. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the audit scheduler
  4. Close database connection

EXAMPLES:
  # Run with defaults (loans.db in the working directory)
  ./server serve

  # Run in memory on a different port
  LOANLEDGER_DATABASE_DSN=":memory:" ./server serve --port 3000

  # Preview a schedule
  ./server schedule loan.yaml

SEE ALSO:
  - config/config.go: Configuration keys and environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/warp/loan-ledger/api"
	"github.com/warp/loan-ledger/config"
	"github.com/warp/loan-ledger/loan"
	"github.com/warp/loan-ledger/logging"
	"github.com/warp/loan-ledger/store/sqlite"
)

const version = "0.3.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app carries what every command needs once config is loaded.
type app struct {
	configPath string
	cfg        *config.Config
	log        *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "server",
		Short:         "Loan amortization and repayment ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logging.New(cfg.Log)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (YAML or JSON)")

	root.AddCommand(
		a.serveCmd(),
		a.scheduleCmd(),
		a.auditCmd(),
		configCmd(),
		versionCmd(),
	)
	return root
}

// openService opens the configured store and builds the loan service on it.
func (a *app) openService() (*loan.Service, *sqlite.Store, error) {
	st, err := sqlite.Open(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	svc := loan.NewService(st,
		loan.WithLogger(a.log),
		loan.WithLedger(loan.Ledger{
			ReopenCompleted: a.cfg.Ledger.ReopenCompleted,
			CapOverpayment:  a.cfg.Ledger.CapOverpayment,
		}),
	)
	return svc, st, nil
}

// =============================================================================
// SERVE
// =============================================================================

func (a *app) serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (overrides config)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	svc, st, err := a.openService()
	if err != nil {
		return err
	}
	defer st.Close()

	handler := api.NewHandler(svc)
	router := api.NewRouter(handler, a.cfg.Server.CORSOrigins)

	var scheduler *api.AuditScheduler
	if a.cfg.Audit.Enabled {
		scheduler = api.NewAuditScheduler(svc, a.cfg.Audit.Schedule, a.log)
		if err := scheduler.Start(); err != nil {
			return err
		}
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.log.WithFields(logrus.Fields{
			"port":   a.cfg.Server.Port,
			"driver": a.cfg.Database.Driver,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// Wait for interrupt signal
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errc:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if scheduler != nil {
		scheduler.Stop()
	}

	a.log.Info("server stopped")
	return nil
}
