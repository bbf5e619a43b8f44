// Command voiced is the voicecore daemon: it answers room-join requests,
// wires each room's LiveKit media to a SessionManager-owned session, and
// serves the WebSocket control sidechannel and Prometheus metrics.
//
// Grounded on the teacher's cmd/cli/main.go (cobra root command +
// godotenv env-file loading + persistent flags) and cmd/lk-go/main.go
// (the slog logger + /metrics mux pattern), rewritten for a long-running
// server instead of the teacher's one-shot pipeline-testing subcommands.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "voiced",
	Short: "Real-time voice agent orchestration daemon",
}

func init() {
	cobra.OnInitialize(loadEnvFile)

	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "environment file to load")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(newServeCmd())
}

// loadEnvFile loads --env into the process environment if present, silently
// skipping when the file doesn't exist (matching the teacher's tolerant
// godotenv.Load handling in cmd/cli/main.go's initConfig).
func loadEnvFile() {
	if envFile == "" {
		return
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: could not load env file %s: %v\n", envFile, err)
	}
}

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
