package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/chriscow/voicecore/internal/chathistory"
	"github.com/chriscow/voicecore/internal/config"
	"github.com/chriscow/voicecore/internal/retrieval"
	"github.com/chriscow/voicecore/internal/session"
	"github.com/chriscow/voicecore/internal/sessionmanager"
	"github.com/chriscow/voicecore/internal/transport"
	"github.com/chriscow/voicecore/pkg/provider"
	"github.com/chriscow/voicecore/pkg/registry"
	"github.com/chriscow/voicecore/plugins/silero"

	// Blank-imported so their init() functions register adapters against
	// registry.Global() before the resolver ever runs, the same
	// load-bearing-side-effect pattern the teacher's plugins packages use.
	_ "github.com/chriscow/voicecore/plugins/deepgram"
	_ "github.com/chriscow/voicecore/plugins/openai"
	_ "github.com/chriscow/voicecore/plugins/pgvector"
	_ "github.com/chriscow/voicecore/plugins/silero"
)

var (
	addr          string
	metricsAddr   string
	vadProviderID string
	tokenizerPath string
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the voiced daemon: join rooms and orchestrate voice sessions",
		RunE:  runServe,
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "address for the control/admin HTTP server")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address for the Prometheus /metrics server")
	cmd.Flags().StringVar(&vadProviderID, "vad-provider", "silero", "registered VAD provider id")
	cmd.Flags().StringVar(&tokenizerPath, "tokenizer-path", os.Getenv("VOICED_TOKENIZER_PATH"), "path to a sugarme/tokenizer tokenizer.json; falls back to whitespace counting when unset")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	livekitURL := os.Getenv("LIVEKIT_URL")
	apiKey := os.Getenv("LIVEKIT_API_KEY")
	apiSecret := os.Getenv("LIVEKIT_API_SECRET")
	if livekitURL == "" || apiKey == "" || apiSecret == "" {
		return errors.New("LIVEKIT_URL, LIVEKIT_API_KEY, and LIVEKIT_API_SECRET must be set")
	}

	metrics := session.NewCollector("voicecore")
	tokenCounter := newTokenCounter(log)

	resolver := &sessionmanager.RegistryResolver{
		Registry:       registry.Global(),
		RetrievalCache: retrieval.NewQueryCache(nil, 60*time.Second, log),
		VADProviderID:  vadProviderID,
	}

	mgr := sessionmanager.New(cfg, resolver, tokenCounter, metrics, log)
	defer mgr.ShutdownAll(shutdownTimeout)

	hub := transport.NewControlHub(log)

	rooms := NewRoomRegistry(livekitURL, apiKey, apiSecret, mgr, hub, func(string) (provider.AgentConfig, error) {
		return staticAgentConfig(), nil
	}, log)

	srv := newHTTPServer(addr, hub, rooms)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: metricsMux}

	go func() {
		log.Info("metrics server listening", "addr", metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err)
		}
	}()

	go func() {
		log.Info("control server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("control server failed", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	metricsSrv.Shutdown(shutdownCtx)
	return nil
}

// newTokenCounter loads a real tokenizer from --tokenizer-path when given
// one, falling back to whitespace counting otherwise. The fallback keeps
// voiced usable without shipping tokenizer weights, at the cost of a rougher
// context-budget estimate (§4.4's trim accounting is approximate either way).
func newTokenCounter(log *slog.Logger) chathistory.TokenCounter {
	if tokenizerPath == "" {
		log.Warn("no --tokenizer-path set, falling back to whitespace token counting")
		return silero.WhitespaceTokenCounter{}
	}
	counter, err := silero.NewTokenCounter(tokenizerPath)
	if err != nil {
		log.Warn("failed to load tokenizer, falling back to whitespace token counting", "path", tokenizerPath, "error", err)
		return silero.WhitespaceTokenCounter{}
	}
	return counter
}
