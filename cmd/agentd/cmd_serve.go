package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/user/agentd/internal/agent"
	"github.com/user/agentd/internal/bus"
	"github.com/user/agentd/internal/config"
	"github.com/user/agentd/internal/dispatch"
	"github.com/user/agentd/internal/prompt"
	"github.com/user/agentd/internal/scheduler"
	"github.com/user/agentd/internal/state"
	"github.com/user/agentd/internal/telegram"
	"github.com/user/agentd/internal/tool"
	"github.com/user/agentd/internal/tool/builtin"
	"github.com/user/agentd/internal/types"
	"github.com/user/agentd/internal/webhook"
	"github.com/user/agentd/pkg/llm"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agentd daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "agentd.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

// newProvider builds the gateway client from config. Family overrides and
// disabled families come straight from the llm section.
func newProvider(cfg *config.Config) (*llm.Client, error) {
	var families map[string]llm.ProtocolFamily
	if len(cfg.LLM.Families) > 0 {
		families = make(map[string]llm.ProtocolFamily, len(cfg.LLM.Families))
		for pattern, family := range cfg.LLM.Families {
			families[pattern] = llm.ProtocolFamily(family)
		}
	}
	var disabled []llm.ProtocolFamily
	for _, family := range cfg.LLM.Disabled {
		disabled = append(disabled, llm.ProtocolFamily(family))
	}
	return llm.New(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Mode:        cfg.LLM.Mode,
		Families:    families,
		Disabled:    disabled,
		Temperature: cfg.LLM.Temperature,
		TopP:        cfg.LLM.TopP,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	// Stores
	sessions := state.NewSessionStore(cfg.DataDir)
	events := state.NewEventStore(cfg.DataDir)
	artifacts := state.NewArtifactStore(cfg.DataDir)
	taskStore := state.NewTaskStore(filepath.Join(cfg.DataDir, "tasks.json"))

	// LLM gateway client
	provider, err := newProvider(cfg)
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}

	// Prompt engine
	engine, err := prompt.New(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve)
	if err != nil {
		return fmt.Errorf("create prompt engine: %w", err)
	}
	if cfg.PromptFile != "" {
		if err := engine.LoadTemplate(cfg.PromptFile); err != nil {
			return fmt.Errorf("load prompt file: %w", err)
		}
	}
	memoryPath := filepath.Join(cfg.DataDir, "memory.md")
	engine.SetMemoryPath(memoryPath)

	// Tool registry
	registry := tool.NewRegistry()
	registry.Register(builtin.NewBash(cfg.DataDir))
	registry.Register(builtin.NewReadURL(nil))
	if cfg.Tools.BraveAPIKey != "" {
		registry.Register(builtin.NewWebSearch(cfg.Tools.BraveAPIKey))
	}
	memSave, memDelete, memList := builtin.NewMemoryTools(memoryPath)
	registry.Register(memSave)
	registry.Register(memDelete)
	registry.Register(memList)

	// Approval policy
	policy := tool.NewPolicy(tool.Mode(cfg.Tools.ApprovalDefault))
	for name, mode := range cfg.Tools.Approval {
		policy.Set(name, tool.Mode(mode))
	}

	// Agent and dispatcher
	ag := agent.New(provider, engine, sessions, events, artifacts, registry, policy, cfg.MaxToolRounds)
	dispatcher := dispatch.New(sessions, int64(cfg.MaxConcurrent))
	dispatcher.SetProcessor(ag.ProcessRun)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	slog.Info("agentd started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"max_tool_rounds", cfg.MaxToolRounds,
		"llm_model", cfg.LLM.Model,
		"llm_family", provider.Family(),
		"pid_file", pidPath,
	)

	// Delivery bus
	deliveryBus := bus.New()

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, dispatcher, events, sessions, cfg.Telegram.AllowedUsers)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		adapter.SubscribeBus(deliveryBus)
		go adapter.Start(ctx)
		slog.Info("telegram adapter started")
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Helper: synchronously process a prompt through the dispatcher and
	// return the final response.
	processTask := func(sessionKey, promptText string) (string, error) {
		done := make(chan string, 1)
		event := &types.InboundEvent{
			Source:     "task",
			SessionKey: types.SessionKey(sessionKey),
			UserID:     "system",
			Text:       promptText,
		}
		if err := dispatcher.HandleInbound(ctx, event, dispatch.WithOnComplete(func(response string) {
			done <- response
		})); err != nil {
			return "", err
		}
		return <-done, nil
	}

	// Scheduler
	sched := scheduler.New(taskStore, func(task *state.Task) {
		response, err := processTask(task.SessionKey, task.Prompt)
		if err != nil {
			slog.Error("scheduled task failed", "name", task.Name, "error", err)
			return
		}
		if response == "" {
			return // bot decided not to respond
		}
		err = deliveryBus.Publish(types.OutboundEvent{
			SessionKey: types.SessionKey(task.SessionKey),
			Text:       response,
		})
		if err != nil {
			slog.Error("task delivery failed", "name", task.Name, "error", err)
		}
	})
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()
	slog.Info("scheduler started")

	// Webhook and API HTTP server
	if cfg.Server.Addr != "" {
		webhookSrv := webhook.NewServer(taskStore, processTask, sessions, events, artifacts)
		httpServer := &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: webhookSrv,
		}
		go func() {
			slog.Info("http server started", "addr", cfg.Server.Addr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("http server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
