/*
main.go - Application entry point

PURPOSE:
  Starts the personal finance backend or prints a balance summary.
  Handles configuration, dependency injection, and graceful shutdown.

COMMANDS:
  serve     Run the REST backend (default when no command is given)
  summary   Print accounts, instruments and totals, either from the local
            database snapshot or from a running backend (--remote)

FLAGS (persistent):
  --config  TOML config path (default: finance.toml, optional)
  --port    HTTP server port, overrides [server].port
  --db      SQLite database path, overrides [server].db
            Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server serve --db=./data/finance.db
  ./server serve --port=3000
  ./server summary --db=./data/finance.db
  ./server summary --remote=http://localhost:8080 --token=s3cret

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration file format
*/
package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/finance-engine/config"
)

var (
	configPath string
	portFlag   int
	dbFlag     string
)

var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "Personal finance ledger backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "finance.toml", "TOML config path")
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", 0, "HTTP server port (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "SQLite database path (overrides config)")
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if portFlag != 0 {
		cfg.Server.Port = portFlag
	}
	if dbFlag != "" {
		cfg.Server.DB = dbFlag
	}
	return cfg, cfg.Validate()
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Printf("[server] %v", err)
		os.Exit(1)
	}
}
