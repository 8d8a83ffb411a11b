package cli

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/deskmate-ai/deskmate/internal/config"
	"github.com/deskmate-ai/deskmate/internal/logger"
	"github.com/deskmate-ai/deskmate/internal/observability"
	"github.com/deskmate-ai/deskmate/internal/tracing"
	"github.com/deskmate-ai/deskmate/pkg/agent"
	"github.com/deskmate-ai/deskmate/pkg/commandqueue"
	"github.com/deskmate-ai/deskmate/pkg/dispatch"
	"github.com/deskmate-ai/deskmate/pkg/session"
	"github.com/deskmate-ai/deskmate/pkg/toolsession"
	"github.com/spf13/cobra"
)

var (
	chatSession   string
	chatMaxRounds int
	chatVerbose   bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive helpdesk chat",
	Long: `Start an interactive chat session. Each line you type runs one
agent turn against the configured model and MCP tool server.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVar(&chatSession, "session", agent.DefaultSessionID, "session identifier")
	chatCmd.Flags().IntVar(&chatMaxRounds, "max-rounds", 0, "override the per-turn round budget")
	chatCmd.Flags().BoolVar(&chatVerbose, "verbose", false, "print tool activity as it happens")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   false,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return err
	}
	defer lg.Close()
	zl := lg.GetZerolog()

	if err := tracing.InitOpenTelemetry("deskmate"); err != nil {
		zl.Warn().Err(err).Msg("Tracing disabled")
	}
	defer tracing.ShutdownOpenTelemetry(context.Background())

	if cfg.Metrics.Enabled {
		go func() {
			zl.Info().Str("addr", cfg.Metrics.Addr).Msg("Serving metrics")
			if err := http.ListenAndServe(cfg.Metrics.Addr, observability.MetricsHandler()); err != nil {
				zl.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	ctx := cmd.Context()
	tools, err := toolsession.Connect(ctx, toolsession.Config{
		ServerURL: cfg.MCP.ServerURL,
		Timeout:   time.Duration(cfg.MCP.TimeoutSeconds) * time.Second,
	}, zl)
	if err != nil {
		return fmt.Errorf("failed to connect to tool server at %s: %w", cfg.MCP.ServerURL, err)
	}

	model, err := agent.NewModelClient(agent.ModelConfig{
		Provider:    cfg.Model.Provider,
		APIKey:      cfg.Model.APIKey,
		Model:       cfg.Model.Model,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
	})
	if err != nil {
		return err
	}

	queue := commandqueue.New(zl)
	defer queue.Close()

	client, err := agent.NewClient(agent.Config{
		Store:         session.NewStore(zl),
		Tools:         tools,
		Model:         model,
		Queue:         queue,
		Logger:        zl,
		SystemPrompt:  cfg.Agent.SystemPrompt,
		MaxRounds:     cfg.Agent.MaxRounds,
		HistoryWindow: cfg.Agent.HistoryWindow,
		CachePolicy: &dispatch.Policy{
			Enabled:      cfg.Cache.Enabled,
			TTL:          time.Duration(cfg.Cache.TTLSeconds) * time.Second,
			ExcludeTools: cfg.Cache.ExcludeTools,
		},
		CompactionMaxChars:    cfg.Compaction.MaxChars,
		CompactionTargetChars: cfg.Compaction.TargetChars,
	})
	if err != nil {
		return err
	}
	defer client.Cleanup()

	fmt.Printf("deskmate %s - session %q, model %s/%s\n", version, chatSession, cfg.Model.Provider, cfg.Model.Model)
	fmt.Println(`Type your request; "exit" quits.`)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" {
			break
		}

		opts := []agent.QueryOption{
			agent.WithSession(chatSession),
			agent.WithOnStep(renderStep),
		}
		if chatMaxRounds > 0 {
			opts = append(opts, agent.WithMaxRounds(chatMaxRounds))
		}

		answer, err := client.ProcessQuery(ctx, query, opts...)
		if answer != "" {
			fmt.Println(answer)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}

	return scanner.Err()
}

// renderStep prints tool activity between the prompt and the answer.
func renderStep(event agent.StepEvent) {
	if !chatVerbose {
		return
	}
	switch event.Type {
	case agent.StepPlan:
		fmt.Printf("  [round %d] %s\n", event.Round, event.Content)
	case agent.StepToolCall:
		fmt.Printf("  [round %d] calling %s\n", event.Round, event.ToolName)
	case agent.StepToolResult:
		status := "ok"
		if event.ToolFailed {
			status = "failed"
		}
		fmt.Printf("  [round %d] %s %s: %s\n", event.Round, event.ToolName, status, truncate(event.ToolResult, 120))
	case agent.StepFinal:
		// The answer is printed by the caller.
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
