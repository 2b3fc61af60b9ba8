// Command agentd is the server entry point: it opens the graph snapshot
// engine, connects the operational metadata and code library stores,
// builds the sandboxed probe executor and model client, and serves the
// HTTP surface until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"
	"goa.design/clue/log"

	"github.com/fctr-id/okta-ai-agent/internal/agent"
	codelibrarymongo "github.com/fctr-id/okta-ai-agent/internal/codelibrary/mongo"
	"github.com/fctr-id/okta-ai-agent/internal/config"
	"github.com/fctr-id/okta-ai-agent/internal/graphquery"
	"github.com/fctr-id/okta-ai-agent/internal/graphsnapshot"
	"github.com/fctr-id/okta-ai-agent/internal/httpapi"
	"github.com/fctr-id/okta-ai-agent/internal/okta"
	"github.com/fctr-id/okta-ai-agent/internal/opsmeta"
	opsmetamongo "github.com/fctr-id/okta-ai-agent/internal/opsmeta/mongo"
	"github.com/fctr-id/okta-ai-agent/internal/sandbox"
	"github.com/fctr-id/okta-ai-agent/internal/telemetry"
	"github.com/fctr-id/okta-ai-agent/runtime/agent/model"

	"github.com/fctr-id/okta-ai-agent/features/model/middleware"
	openaimodel "github.com/fctr-id/okta-ai-agent/features/model/openai"
)

// modelTPMBudget is the process-local tokens-per-minute ceiling the
// adaptive rate limiter starts at and backs off from; it is intentionally
// generous since the provider's own 429s are the real signal.
const modelTPMBudget = 200000

func main() {
	configPathF := flag.String("config", "", "path to the YAML configuration file")
	debugF := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *debugF {
		ctx = log.Context(ctx, log.WithDebug())
	}

	logger := telemetry.NewClueLogger()
	tracer := telemetry.NewClueTracer()
	metrics := telemetry.NewClueMetrics()

	cfg, err := config.Load(*configPathF)
	if err != nil {
		fatal(ctx, logger, err)
	}

	snapshotEngine, err := graphsnapshot.Open(cfg.Snapshot.BaseDir)
	if err != nil {
		fatal(ctx, logger, fmt.Errorf("open graph snapshot: %w", err))
	}
	defer snapshotEngine.Close()

	mongoClient, err := mongodriver.Connect(mongooptions.Client().ApplyURI(cfg.Credentials.MongoURI))
	if err != nil {
		fatal(ctx, logger, fmt.Errorf("connect mongo: %w", err))
	}
	defer func() { _ = mongoClient.Disconnect(ctx) }()

	opsStore, err := opsmetamongo.New(opsmetamongo.Options{
		Client:   mongoClient,
		Database: "okta_ai_agent",
	})
	if err != nil {
		fatal(ctx, logger, fmt.Errorf("build opsmeta store: %w", err))
	}

	libraryStore, err := codelibrarymongo.New(codelibrarymongo.Options{
		Client:   mongoClient,
		Database: "okta_ai_agent",
	})
	if err != nil {
		fatal(ctx, logger, fmt.Errorf("build code library store: %w", err))
	}

	modelClient, err := buildModelClient(cfg)
	if err != nil {
		fatal(ctx, logger, fmt.Errorf("build model client: %w", err))
	}

	sandboxExecutor := sandbox.New(sandbox.Config{
		UpstreamBaseURL: cfg.Credentials.UpstreamBaseURL,
		UpstreamToken:   cfg.Credentials.UpstreamToken,
		Timeout:         cfg.SandboxTimeout(),
		GlobalSlots:     cfg.Sandbox.GlobalSlots,
		ModuleDir:       cfg.Sandbox.ModuleDir,
		Policy: sandbox.Policy{
			AllowedHosts: cfg.Sandbox.AllowedHosts,
			ScratchDir:   cfg.Sandbox.ScratchDir,
		},
	})

	deps := agent.Deps{
		Snapshot:     snapshotEngine,
		Catalog:      okta.NewStaticCatalog(),
		Sandbox:      sandboxExecutor,
		EventCatalog: okta.NewStaticEventCatalog(),
		TenantPolicy: graphquery.TenantPolicy{
			MultiTenant:     cfg.Tenant.MultiTenant,
			RequiredBinding: cfg.Tenant.RequiredBinding,
		},
	}

	runOpts := agent.RunOptions{
		Deps:           deps,
		Model:          modelClient,
		System:         systemPrompt,
		Tools:          toolDefinitions(),
		UsageLimit:     cfg.Agent.UsageLimit,
		BatchThreshold: cfg.Agent.BatchThreshold,
		Tracer:         tracer,
		Metrics:        metrics,
	}

	sessions := httpapi.NewRegistry()
	syncCtrl := httpapi.NewSyncController(opsStore, snapshotEngine, noopSyncWriter{}, cfg.Tenant.ID)

	server := httpapi.New(httpapi.Config{
		Port:            cfg.Server.Port,
		ReadTimeout:     time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		ShutdownTimeout: time.Duration(cfg.Server.ShutdownWaitSec) * time.Second,
	}, sessions, opsStore, snapshotEngine, syncCtrl, runOpts, libraryStore)

	errc := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info(ctx, "listening", "addr", addr)
		errc <- server.ListenAndServe(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		logger.Error(ctx, "server exited", "error", err.Error())
	case s := <-sig:
		logger.Info(ctx, "received signal", "signal", s.String())
	}
}

// fatal logs err through logger and exits nonzero. telemetry.Logger has no
// Fatal level of its own, so main is the one place that turns an Error log
// into a process exit.
func fatal(ctx context.Context, logger telemetry.Logger, err error) {
	logger.Error(ctx, "fatal", "error", err.Error())
	os.Exit(1)
}

// buildModelClient selects the configured LLM provider. The subprocess
// executor never sees this key; only the upstream REST credentials cross
// that boundary.
//
// openai is the only provider wired in: it is the one LLM adapter in this
// tree genuinely built for this system's model.Client contract rather
// than carried over unmodified from elsewhere. Anything else in
// ModelProvider is a configuration error rather than a silent fallback.
func buildModelClient(cfg config.Config) (model.Client, error) {
	if cfg.Credentials.ModelProvider != "" && cfg.Credentials.ModelProvider != "openai" {
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Credentials.ModelProvider)
	}
	client, err := openaimodel.NewFromAPIKey(cfg.Credentials.ModelAPIKey, "gpt-4o")
	if err != nil {
		return nil, err
	}
	limiter := middleware.NewAdaptiveRateLimiter(modelTPMBudget, modelTPMBudget)
	return limiter.Middleware()(client), nil
}

// noopSyncWriter satisfies httpapi.SyncWriter until the graph sync
// pipeline (teams/apps/people ingestion against the upstream API) is
// wired; /sync/start creates a sync row that never progresses past its
// initial checkpoint.
type noopSyncWriter struct{}

func (noopSyncWriter) Run(ctx context.Context, tenantID, syncID string) error {
	<-ctx.Done()
	return ctx.Err()
}
