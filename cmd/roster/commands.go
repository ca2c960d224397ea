package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jbweber/homelab/roster/internal/api"
	"github.com/jbweber/homelab/roster/internal/config"
	"github.com/jbweber/homelab/roster/internal/datastore"
	"github.com/jbweber/homelab/roster/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// options collects the persistent flags shared by every subcommand
type options struct {
	configFile string
	envFile    string
	dbDriver   string
	dbDSN      string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "roster",
		Short:         "User registry backed by a generic repository layer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Path to a dotenv file (ignored when missing)")
	root.PersistentFlags().StringVar(&opts.dbDriver, "db-driver", "", "Database driver: sqlite or pgx (env ROSTER_DB_DRIVER)")
	root.PersistentFlags().StringVar(&opts.dbDSN, "db-dsn", "", "Database DSN or SQLite path (env ROSTER_DB_DSN)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (env ROSTER_LOG_LEVEL)")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newMigrateCmd(opts))
	return root
}

// load resolves the configuration and builds the logger. Flags override
// every other source and the result is validated once they are applied.
func (o *options) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configFile, o.envFile)
	if err != nil {
		return nil, nil, err
	}
	if o.dbDriver != "" {
		cfg.DB.Driver = o.dbDriver
	}
	if o.dbDSN != "" {
		cfg.DB.DSN = o.dbDSN
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	log := logging.New(logging.Config{
		Env:         cfg.Log.Env,
		Level:       cfg.Log.Level,
		ServiceName: "roster",
	})
	zap.ReplaceGlobals(log)
	return cfg, log, nil
}

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ds, err := cfg.InitializeDatastore(log)
			if err != nil {
				return err
			}
			defer closeDatastore(ds, log)

			log.Info("migrations applied", zap.String("driver", cfg.DB.Driver))
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newServeCmd(opts *options) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if port != "" {
				cfg.HTTP.Port = port
			}

			ds, err := cfg.InitializeDatastore(log)
			if err != nil {
				return err
			}
			defer closeDatastore(ds, log)

			a, err := api.NewAPI(ds, log, nil)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, net.JoinHostPort("", cfg.HTTP.Port), a.Router(), log)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "HTTP port (env ROSTER_HTTP_PORT)")
	return cmd
}

// serve runs the HTTP server until ctx is done, then shuts it down gracefully
func serve(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting roster web service", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func closeDatastore(ds *datastore.Datastore, log *zap.Logger) {
	if err := ds.Close(); err != nil {
		log.Warn("failed to close datastore", zap.Error(err))
	}
}
