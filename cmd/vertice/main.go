// Package main provides the CLI entry point for the Vertice coding agent runtime.
//
// Vertice drives a tool-using LLM agent loop over a local workspace: it reads
// a YAML configuration, builds one or more agents behind a multi-agent
// orchestrator, and exposes them through a single-shot command or an
// interactive REPL.
//
// # Basic Usage
//
// Start an interactive session:
//
//	vertice
//
// Run a single message non-interactively:
//
//	vertice run "summarize the diff in this repo"
//
// Validate a configuration file:
//
//	vertice config validate
//
// # Environment Variables
//
//   - VERTICE_CONFIG: Path to configuration file (default: vertice.yaml)
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/JuanCS-Dev/vertice-code/internal/agent"
	"github.com/JuanCS-Dev/vertice-code/internal/agent/providers"
	"github.com/JuanCS-Dev/vertice-code/internal/config"
	"github.com/JuanCS-Dev/vertice-code/internal/multiagent"
	"github.com/JuanCS-Dev/vertice-code/internal/sessions"
	"github.com/JuanCS-Dev/vertice-code/internal/tools/exec"
	"github.com/JuanCS-Dev/vertice-code/internal/tools/security"
	"github.com/JuanCS-Dev/vertice-code/internal/workspace"
	"github.com/JuanCS-Dev/vertice-code/pkg/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "vertice",
		Short: "Vertice - tool-using coding agent runtime",
		Long: `Vertice drives a tool-using LLM agent loop over a local workspace.

Invoked with no subcommand, it opens an interactive REPL. The "run" subcommand
answers a single message and exits.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd.Context(), resolveConfigPath(configPath))
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file (default: vertice.yaml)")

	rootCmd.AddCommand(
		buildRunCmd(&configPath),
		buildConfigCmd(&configPath),
		buildAgentsCmd(&configPath),
		buildSetupCmd(&configPath),
	)

	return rootCmd
}

func resolveConfigPath(path string) string {
	if strings.TrimSpace(path) != "" {
		return path
	}
	if env := strings.TrimSpace(os.Getenv("VERTICE_CONFIG")); env != "" {
		return env
	}
	return "vertice.yaml"
}

// buildRunCmd creates the "run" subcommand for single-shot, non-interactive use.
func buildRunCmd(configPath *string) *cobra.Command {
	var agentID string

	cmd := &cobra.Command{
		Use:   "run [message]",
		Short: "Answer a single message and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runtime, err := buildRuntime(resolveConfigPath(*configPath))
			if err != nil {
				return err
			}

			session, err := runtime.sessions.GetOrCreate(cmd.Context(), "cli-run-"+uuid.NewString(), agentOrDefault(agentID, runtime.orch), models.ChannelCLI, "run")
			if err != nil {
				return fmt.Errorf("create session: %w", err)
			}

			msg := &models.Message{
				ID:        uuid.NewString(),
				SessionID: session.ID,
				Channel:   models.ChannelCLI,
				Direction: models.DirectionInbound,
				Role:      models.RoleUser,
				Content:   args[0],
				CreatedAt: time.Now(),
			}

			chunks, err := runtime.orch.Process(cmd.Context(), session, msg)
			if err != nil {
				return fmt.Errorf("process message: %w", err)
			}
			return printChunks(cmd.OutOrStdout(), chunks)
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "Agent ID to address (defaults to the configured default agent)")
	return cmd
}

// buildConfigCmd creates the "config" command group.
func buildConfigCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath(*configPath)
			if _, err := config.Load(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid\n", path)
			return nil
		},
	})
	return cmd
}

// buildAgentsCmd creates the "agents" command group.
func buildAgentsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List configured agents",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered agents and their descriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			runtime, err := buildRuntime(resolveConfigPath(*configPath))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, def := range runtime.orch.ListAgents() {
				fmt.Fprintf(out, "%s\t%s\n", def.ID, def.Description)
			}
			return nil
		},
	})
	return cmd
}

// buildSetupCmd creates the "setup" command for bootstrapping a workspace.
func buildSetupCmd(configPath *string) *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write bootstrap workspace files (AGENTS.md, SOUL.md, ...)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &config.Config{Workspace: config.DefaultWorkspaceConfig()}
			if loaded, err := config.Load(resolveConfigPath(*configPath)); err == nil {
				cfg = loaded
			}
			files := workspace.BootstrapFilesForConfig(cfg)
			result, err := workspace.EnsureWorkspaceFiles(cfg.Workspace.Path, files, overwrite)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Workspace ready: %s\n", cfg.Workspace.Path)
			for _, path := range result.Created {
				fmt.Fprintf(out, "  created %s\n", path)
			}
			for _, path := range result.Skipped {
				fmt.Fprintf(out, "  skipped %s (exists)\n", path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing bootstrap files")
	return cmd
}

// vrRuntime bundles the orchestrator with the session store it was built with.
type vrRuntime struct {
	orch     *multiagent.Orchestrator
	sessions sessions.Store
}

// buildRuntime loads configuration and wires an orchestrator with one agent
// per configured multi-agent definition, falling back to a single default
// agent when none are configured.
func buildRuntime(configPath string) (*vrRuntime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildSessionStore(cfg)
	if err != nil {
		return nil, err
	}

	maConfig := defaultMultiAgentConfig(cfg)
	orch := multiagent.NewOrchestrator(maConfig, provider, store)

	execManager := exec.NewManager(cfg.Workspace.Path)
	execManager.SetValidator(buildCommandValidator(cfg))
	orch.RegisterToolForAll(exec.NewExecTool("execute_command", execManager))
	orch.RegisterToolForAll(exec.NewProcessTool(execManager))

	return &vrRuntime{orch: orch, sessions: store}, nil
}

// buildCommandValidator constructs the C1 shell command validator from
// cfg.Tools.Execution.CommandValidation, defaulting to strict mode with the
// built-in allow-list when unconfigured.
func buildCommandValidator(cfg *config.Config) *security.CommandValidator {
	cv := cfg.Tools.Execution.CommandValidation
	v := security.NewCommandValidator()
	if cv.Strict != nil {
		v.Strict = *cv.Strict
	}
	v.Audit = cv.Audit
	if cv.Audit {
		v.OnAudit = func(command, reason string) {
			slog.Warn("command validator audit bypass", "command", command, "reason", reason)
		}
	}
	if len(cv.ExtraAllow) > 0 {
		allow := make(map[string]security.AllowedCommand, len(security.DefaultAllowList)+len(cv.ExtraAllow))
		for k, val := range security.DefaultAllowList {
			allow[k] = val
		}
		for _, name := range cv.ExtraAllow {
			allow[name] = security.AllowedCommand{BaseName: name, Category: "configured", Description: "added via command_validation.extra_allow"}
		}
		v.AllowList = allow
	}
	return v
}

func buildProvider(cfg *config.Config) (agent.LLMProvider, error) {
	providerName := strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	providerCfg := cfg.LLM.Providers[providerName]

	switch providerName {
	case "", "anthropic":
		apiKey := providerCfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:  apiKey,
			BaseURL: providerCfg.BaseURL,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", providerName)
	}
}

func buildSessionStore(cfg *config.Config) (sessions.Store, error) {
	if strings.TrimSpace(cfg.Database.URL) == "" {
		return sessions.NewMemoryStore(), nil
	}
	pool := sessions.DefaultCockroachConfig()
	pool.DSN = cfg.Database.URL
	if cfg.Database.MaxConnections > 0 {
		pool.MaxOpenConns = cfg.Database.MaxConnections
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		pool.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	}
	return sessions.NewCockroachStore(pool)
}

// defaultMultiAgentConfig builds a single-agent multi-agent configuration
// from the top-level config when no dedicated agent roster is configured.
func defaultMultiAgentConfig(cfg *config.Config) *multiagent.MultiAgentConfig {
	return &multiagent.MultiAgentConfig{
		DefaultAgentID: cfg.Session.DefaultAgentID,
		Agents: []multiagent.AgentDefinition{
			{
				ID:                 cfg.Session.DefaultAgentID,
				Name:               "Main",
				Description:        "General-purpose coding assistant",
				SystemPrompt:       "You are a careful, direct coding assistant working in a local workspace.",
				CanReceiveHandoffs: true,
				MaxIterations:      cfg.Tools.Execution.MaxIterations,
			},
		},
	}
}

func agentOrDefault(agentID string, orch *multiagent.Orchestrator) string {
	if strings.TrimSpace(agentID) != "" {
		return agentID
	}
	return orch.Config().DefaultAgentID
}

// printChunks drains a response stream to the given writer, returning the
// first error observed (if any) after the stream completes.
func printChunks(out interface{ Write([]byte) (int, error) }, chunks <-chan *agent.ResponseChunk) error {
	var firstErr error
	for chunk := range chunks {
		if chunk.Text != "" {
			fmt.Fprint(out, chunk.Text)
		}
		if chunk.Error != nil && firstErr == nil {
			firstErr = chunk.Error
		}
	}
	fmt.Fprintln(out)
	return firstErr
}

// runREPL drives an interactive read-eval-print loop against the default
// agent, holding a single session for the lifetime of the process.
func runREPL(ctx context.Context, configPath string) error {
	runtime, err := buildRuntime(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := runtime.sessions.GetOrCreate(ctx, "cli-repl-"+uuid.NewString(), runtime.orch.Config().DefaultAgentID, models.ChannelCLI, "repl")
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	fmt.Println("vertice interactive session. Type /help for commands, /quit to exit.")
	reader := bufio.NewScanner(os.Stdin)
	reader.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !reader.Scan() {
			return reader.Err()
		}
		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if done := handleSlashCommand(line, runtime); done {
				return nil
			}
			continue
		}

		msg := &models.Message{
			ID:        uuid.NewString(),
			SessionID: session.ID,
			Channel:   models.ChannelCLI,
			Direction: models.DirectionInbound,
			Role:      models.RoleUser,
			Content:   line,
			CreatedAt: time.Now(),
		}

		chunks, err := runtime.orch.Process(ctx, session, msg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if err := printChunks(os.Stdout, chunks); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

// handleSlashCommand processes a REPL-internal command. It returns true when
// the REPL should exit.
func handleSlashCommand(line string, runtime *vrRuntime) bool {
	switch strings.Fields(line)[0] {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Println("/help             show this message")
		fmt.Println("/agents           list configured agents")
		fmt.Println("/quit, /exit      leave the session")
	case "/agents":
		for _, def := range runtime.orch.ListAgents() {
			fmt.Printf("  %s - %s\n", def.ID, def.Description)
		}
	default:
		fmt.Printf("unknown command: %s (try /help)\n", line)
	}
	return false
}
