package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/regretsim/regretsim/report"
	"github.com/regretsim/regretsim/server"
	"github.com/regretsim/regretsim/sim"
)

var (
	// CLI flags shared by the subcommands
	seed       int64    // Seed for the partitioned simulation RNG
	logLevel   string   // Log verbosity level
	configPath string   // Optional YAML configuration file
	addr       string   // HTTP listen address (serve)
	dbPath     string   // Optional SQLite path for planning-run records (serve)
	reportDir  string   // Default directory for analysis archives
	patients   []string // Severity names to spawn before planning (eval)
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "regretsim",
	Short: "Regret-learning scheduler for emergency-unit agents",
}

// setupLogging applies the --log flag process-wide.
func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadConfig resolves the effective configuration: the YAML file when one
// is given, the built-in defaults otherwise.
func loadConfig() *sim.Config {
	cfg := sim.DefaultConfig()
	if configPath != "" {
		loaded, err := sim.LoadConfig(configPath)
		if err != nil {
			logrus.Fatalf("unable to read config: %v", err)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	return cfg
}

// serveCmd runs the HTTP scheduling service
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scheduling API over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg := loadConfig()

		var store *report.Store
		if dbPath != "" {
			var err error
			store, err = report.Open(dbPath)
			if err != nil {
				logrus.Fatalf("unable to open run store: %v", err)
			}
			defer store.Close()
			logrus.Infof("recording planning runs to %s", dbPath)
		}

		svc := sim.NewService(cfg, seed)
		srv := server.NewServer(svc, store, reportDir)

		logrus.Infof("scheduling service listening on %s (seed=%d)", addr, seed)
		if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
			logrus.Fatalf("server stopped: %v", err)
		}
	},
}

// evalCmd runs one offline planning call and prints the result
var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Plan once for a fixed roster and print the result as JSON",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg := loadConfig()

		svc := sim.NewService(cfg, seed)
		for _, name := range patients {
			severity, ok := sim.ParseSeverity(name)
			if !ok {
				logrus.Warnf("unknown severity %q, treating as Minor", name)
			}
			svc.Spawn(severity)
		}

		result := svc.Plan()
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			logrus.Fatalf("unable to encode result: %v", err)
		}
		fmt.Println(string(out))
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 42, "Seed for deterministic strategy sampling and noise")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&reportDir, "report-dir", "output", "Directory for exported analysis archives")

	serveCmd.Flags().StringVar(&addr, "addr", ":5000", "HTTP listen address")
	serveCmd.Flags().StringVar(&dbPath, "db", "", "SQLite file for planning-run records (disabled when empty)")

	evalCmd.Flags().StringSliceVar(&patients, "patients", []string{"Critical", "Moderate", "Minor"}, "Comma-separated severities to spawn before planning")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(evalCmd)
}
