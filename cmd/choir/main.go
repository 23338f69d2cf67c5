// Package main provides the choir CLI entry point: run, serve, timeline,
// and doctor subcommands wiring the Conductor, Event Store, Memory Store,
// and RunWriter in-process (spec §2 Ambient Stack, "choir run/serve/
// timeline/doctor").
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/choir-run/choir/internal/config"
	"github.com/choir-run/choir/internal/conductor"
	"github.com/choir-run/choir/internal/errs"
	"github.com/choir-run/choir/internal/eventstore"
	"github.com/choir-run/choir/internal/llm"
	"github.com/choir-run/choir/internal/memorystore"
	"github.com/choir-run/choir/internal/memorystore/sqlitevec"
	"github.com/choir-run/choir/internal/obs"
	"github.com/choir-run/choir/internal/researcher"
	"github.com/choir-run/choir/internal/runwriter"
	"github.com/choir-run/choir/internal/terminal"
	"github.com/choir-run/choir/pkg/models"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "choir",
		Short:        "choir - orchestrated multi-agent task runner",
		Version:      fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "choir.toml", "Path to choir.toml")

	root.AddCommand(
		buildRunCmd(&configPath),
		buildServeCmd(&configPath),
		buildTimelineCmd(&configPath),
		buildDoctorCmd(&configPath),
	)
	return root
}

// app bundles every long-lived component one CLI invocation needs. Workers
// with unconfigured credentials are left nil; the Conductor treats a nil
// worker as "unavailable" for plan derivation (internal/conductor/plan.go).
type app struct {
	cfg       *config.Config
	logger    *obs.Logger
	store     eventstore.Store
	tracer    *obs.Tracer
	metrics   *obs.Metrics
	conductor *conductor.Conductor
	writers   *runwriter.Registry
	memory    *memorystore.Manager
	retention *conductor.RetentionSweep
}

func bootstrap(ctx context.Context, configPath string) (*app, error) {
	_ = config.LoadDotEnv(".env")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{})))
	logger := obs.NewLogger(obs.LogConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	store, err := openEventStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}

	tracer := obs.NewTracer(store)
	metrics := obs.NewMetrics(prometheus.DefaultRegisterer)

	registry, err := buildLLMRegistry(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build llm registry: %w", err)
	}

	var researcherWorker *researcher.Worker
	if providers := buildResearchProviders(cfg); len(providers) > 0 {
		researcherWorker = researcher.NewWorker(providers...)
	}

	sandboxRoot := cfg.Terminal.SandboxRoot
	if sandboxRoot == "" {
		sandboxRoot = "."
	}
	var terminalWorker *terminal.Worker
	if registry != nil {
		terminalWorker = terminal.NewWorker(sandboxRoot, registry, store, "")
		if err := terminalWorker.Start(); err != nil && !errors.Is(err, errs.ErrAlreadyRunning) {
			return nil, fmt.Errorf("start terminal worker: %w", err)
		}
	}

	cond := conductor.New(adaptResearcher(researcherWorker), adaptTerminal(terminalWorker), store, cfg.Conductor.ReportsRoot)

	retention, err := conductor.NewRetentionSweep(cond, cfg.Conductor.RetentionTTL, cfg.Conductor.RetentionSchedule)
	if err != nil {
		return nil, fmt.Errorf("build retention sweep: %w", err)
	}

	writers := runwriter.NewRegistry(func(runID string) string {
		return filepath.Join(cfg.Conductor.ReportsRoot, "runs", runID, "draft.md")
	}, store)

	mem, err := buildMemoryManager(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build memory manager: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		tracer:    tracer,
		metrics:   metrics,
		conductor: cond,
		writers:   writers,
		memory:    mem,
		retention: retention,
	}, nil
}

func openEventStore(ctx context.Context, cfg *config.Config) (eventstore.Store, error) {
	if strings.TrimSpace(cfg.Database.URL) == "" {
		return eventstore.NewMemStore(), nil
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.Database.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}
	return eventstore.NewPostgresStore(pool), nil
}

func buildLLMRegistry(ctx context.Context, cfg *config.Config) (*llm.Registry, error) {
	if strings.TrimSpace(cfg.LLM.AnthropicAPIKey) == "" {
		return nil, nil
	}
	anthropicP, err := llm.NewAnthropicProvider(llm.AnthropicConfig{APIKey: cfg.LLM.AnthropicAPIKey})
	if err != nil {
		return nil, err
	}

	var openaiP *llm.OpenAIProvider
	if strings.TrimSpace(cfg.LLM.OpenAIAPIKey) != "" {
		openaiP, err = llm.NewOpenAIProvider(llm.OpenAIConfig{APIKey: cfg.LLM.OpenAIAPIKey})
		if err != nil {
			return nil, err
		}
	}

	var bedrockP *llm.BedrockProvider
	if strings.TrimSpace(cfg.LLM.BedrockRegion) != "" {
		bedrockP, err = llm.NewBedrockProvider(ctx, llm.BedrockConfig{
			Region:          cfg.LLM.BedrockRegion,
			AccessKeyID:     cfg.LLM.BedrockAccessKeyID,
			SecretAccessKey: cfg.LLM.BedrockSecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
	}

	return llm.NewRegistry(anthropicP, openaiP, bedrockP, llm.RegistryConfig{
		FastModel:   cfg.LLM.FastModel,
		CheapModel:  cfg.LLM.CheapModel,
		StrongModel: cfg.LLM.StrongModel,
		OpusModel:   cfg.LLM.OpusModel,
	})
}

func buildResearchProviders(cfg *config.Config) []researcher.Provider {
	client := researcher.NewClient(cfg.Research.RatePerSecond, cfg.Research.Burst)
	var providers []researcher.Provider

	if strings.TrimSpace(cfg.Research.TavilyAPIKey) != "" {
		if p, err := researcher.NewTavilyProvider(cfg.Research.TavilyAPIKey, client); err == nil {
			providers = append(providers, p)
		} else {
			slog.Warn("tavily provider unavailable", "error", err)
		}
	}
	if strings.TrimSpace(cfg.Research.BraveAPIKey) != "" {
		if p, err := researcher.NewBraveProvider(cfg.Research.BraveAPIKey, client); err == nil {
			providers = append(providers, p)
		} else {
			slog.Warn("brave provider unavailable", "error", err)
		}
	}
	if strings.TrimSpace(cfg.Research.ExaAPIKey) != "" {
		providers = append(providers, researcher.NewExaProvider(cfg.Research.ExaAPIKey))
	}
	return providers
}

func buildMemoryManager(ctx context.Context, cfg *config.Config) (*memorystore.Manager, error) {
	path := cfg.Memory.SQLitePath
	if path == "" {
		path = "choir-memory.db"
	}
	backend, err := sqlitevec.Open(path, sqlitevec.DriverModernc)
	if err != nil {
		return nil, err
	}
	return memorystore.NewManagerWithFallback(ctx, backend, nil), nil
}

// adaptResearcher converts to conductor.ResearcherWorker; returns nil
// cleanly when worker is nil so the Conductor sees "unavailable" instead of
// a non-nil interface wrapping a nil pointer.
func adaptResearcher(worker *researcher.Worker) conductor.ResearcherWorker {
	if worker == nil {
		return nil
	}
	return worker
}

func adaptTerminal(worker *terminal.Worker) conductor.TerminalWorker {
	if worker == nil {
		return nil
	}
	return worker
}

func buildRunCmd(configPath *string) *cobra.Command {
	var (
		objective  string
		desktopID  string
		outputMode string
		corrID     string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a single Conductor task and print its result",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}

			if corrID == "" {
				corrID = uuid.NewString()
			}
			task, err := a.conductor.ExecuteTask(ctx, conductor.ExecuteTaskRequest{
				TaskID:        corrID,
				Objective:     objective,
				DesktopID:     desktopID,
				CorrelationID: corrID,
				OutputMode:    models.OutputMode(outputMode),
			})
			out := cmd.OutOrStdout()
			if task != nil {
				payload, _ := json.MarshalIndent(task, "", "  ")
				fmt.Fprintln(out, string(payload))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&objective, "objective", "", "Task objective (required)")
	cmd.Flags().StringVar(&desktopID, "desktop", "default", "Desktop ID")
	cmd.Flags().StringVar(&outputMode, "output-mode", string(models.OutputAuto), "auto|toast|writer")
	cmd.Flags().StringVar(&corrID, "task-id", "", "Task ID / correlation ID (random if empty)")
	_ = cmd.MarkFlagRequired("objective")
	return cmd
}

func buildServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Bootstrap choir's in-process components and block",
		Long:  "serve wires the Conductor, Event Store, and Memory Store and blocks until interrupted. HTTP handlers are out of scope (SPEC_FULL.md §6); wire internal/api's types behind a mux to expose this over the network.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			a.retention.Start()
			defer a.retention.Stop()

			slog.Info("choir serving", "reports_root", a.cfg.Conductor.ReportsRoot)
			<-ctx.Done()
			return nil
		},
	}
}

func buildTimelineCmd(configPath *string) *cobra.Command {
	var (
		category           string
		requiredMilestones string
		sinceSeq           int64
		limit              int
	)
	cmd := &cobra.Command{
		Use:   "timeline <run-id>",
		Short: "Print a run's categorized Event Store timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			runID := args[0]

			events, err := a.store.GetRecent(ctx, sinceSeq, limit, "", "", "")
			if err != nil {
				return err
			}
			filtered := events[:0]
			for _, ev := range events {
				if ev.CorrelationID == runID {
					filtered = append(filtered, ev)
				}
			}

			var milestones []string
			if strings.TrimSpace(requiredMilestones) != "" {
				milestones = strings.Split(requiredMilestones, ",")
			}

			tl, err := obs.CheckMilestones(runID, filtered, obs.Category(category), milestones)
			var missing *errs.MissingMilestonesError
			if err != nil {
				if errors.As(err, &missing) {
					payload, _ := json.MarshalIndent(map[string]any{
						"missing_milestones": missing.Missing,
						"timeline":           tl,
					}, "", "  ")
					fmt.Fprintln(cmd.OutOrStdout(), string(payload))
					return nil
				}
				return err
			}

			payload, _ := json.MarshalIndent(tl, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Filter to one timeline category")
	cmd.Flags().StringVar(&requiredMilestones, "required-milestones", "", "Comma-separated event types that must appear")
	cmd.Flags().Int64Var(&sinceSeq, "since-seq", 0, "Only events with seq greater than this")
	cmd.Flags().IntVar(&limit, "limit", 1000, "Maximum events to scan")
	return cmd
}

func buildDoctorCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report which workers and backends are configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "choir doctor")
			fmt.Fprintf(out, "  anthropic:  %s\n", presence(cfg.LLM.AnthropicAPIKey))
			fmt.Fprintf(out, "  openai:     %s\n", presence(cfg.LLM.OpenAIAPIKey))
			fmt.Fprintf(out, "  bedrock:    %s\n", presence(cfg.LLM.BedrockRegion))
			fmt.Fprintf(out, "  tavily:     %s\n", presence(cfg.Research.TavilyAPIKey))
			fmt.Fprintf(out, "  brave:      %s\n", presence(cfg.Research.BraveAPIKey))
			fmt.Fprintf(out, "  exa:        %s\n", presence(cfg.Research.ExaAPIKey))
			fmt.Fprintf(out, "  database:   %s\n", presence(cfg.Database.URL))
			fmt.Fprintf(out, "  reports:    %s\n", cfg.Conductor.ReportsRoot)
			fmt.Fprintf(out, "  sandbox:    %s\n", cfg.Terminal.SandboxRoot)

			_, err = bootstrap(ctx, *configPath)
			if err != nil {
				fmt.Fprintf(out, "  bootstrap:  FAILED (%v)\n", err)
				return nil
			}
			fmt.Fprintln(out, "  bootstrap:  ok")
			return nil
		},
	}
}

func presence(v string) string {
	if strings.TrimSpace(v) == "" {
		return "not configured"
	}
	return "configured"
}
