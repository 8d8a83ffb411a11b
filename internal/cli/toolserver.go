package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/deskmate-ai/deskmate/internal/config"
	"github.com/deskmate-ai/deskmate/internal/logger"
	"github.com/deskmate-ai/deskmate/internal/toolserver"
	"github.com/spf13/cobra"
)

var toolServerAddr string

var toolServerCmd = &cobra.Command{
	Use:   "tool-server",
	Short: "Run the built-in helpdesk MCP tool server",
	Long: `Run the built-in helpdesk tool server over the MCP streamable HTTP
transport. The chat agent connects to it via mcp.server_url.`,
	RunE: runToolServer,
}

func init() {
	rootCmd.AddCommand(toolServerCmd)

	toolServerCmd.Flags().StringVar(&toolServerAddr, "addr", "", "listen address (overrides tool_server.addr)")
}

func runToolServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return err
	}
	defer lg.Close()
	zl := lg.GetZerolog()

	addr := cfg.ToolServer.Addr
	if toolServerAddr != "" {
		addr = toolServerAddr
	}

	srv := toolserver.New(cfg.ToolServer, zl)

	mux := http.NewServeMux()
	mux.Handle("/mcp", srv.Handler())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		zl.Info().Str("addr", addr).Msg("Helpdesk tool server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("tool server failed: %w", err)
	case <-ctx.Done():
		zl.Info().Msg("Shutting down tool server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
