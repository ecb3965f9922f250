package commands

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/panyam/pfa/runtime"
	"github.com/spf13/cobra"
)

// Global flags
var (
	envFile  string
	logLevel string
	timeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "pfa",
	Short: "PFA runs and checks scoring engine documents",
	Long: `pfa type checks PFA scoring engine documents written in JSON or YAML
and runs their engines over JSON-lines input.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvironment(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Environment file to load if it exists")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (default: PFA_LOG_LEVEL env var)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Timeout for every routine (default: PFA_TIMEOUT_MS env var or the document's options)")
}

// AddCommand allows adding subcommands from other files.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// loadEnvironment reads the env file and applies PFA_LOG_LEVEL and
// PFA_TIMEOUT_MS where the matching flag was not given.
func loadEnvironment(cmd *cobra.Command) error {
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	level := logLevel
	if level == "" {
		level = os.Getenv("PFA_LOG_LEVEL")
	}
	if level != "" {
		l, err := runtime.ParseLogLevel(level)
		if err != nil {
			return err
		}
		runtime.SetLogLevel(l)
	}

	if !cmd.Flags().Changed("timeout") {
		if ms := os.Getenv("PFA_TIMEOUT_MS"); ms != "" {
			n, err := strconv.Atoi(ms)
			if err != nil {
				return fmt.Errorf("PFA_TIMEOUT_MS: %w", err)
			}
			timeout = time.Duration(n) * time.Millisecond
		}
	}
	return nil
}

// hostOptions are the engine options given on the command line.
func hostOptions() runtime.Options {
	return runtime.Options{Timeout: timeout}
}
