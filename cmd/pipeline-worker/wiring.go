package main

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/eligibility/pkg/alerting"
	"github.com/codeready-toolchain/eligibility/pkg/blobstore"
	"github.com/codeready-toolchain/eligibility/pkg/cleanup"
	"github.com/codeready-toolchain/eligibility/pkg/config"
	"github.com/codeready-toolchain/eligibility/pkg/httpapi"
	"github.com/codeready-toolchain/eligibility/pkg/llm"
	"github.com/codeready-toolchain/eligibility/pkg/observability"
	"github.com/codeready-toolchain/eligibility/pkg/outbox"
	"github.com/codeready-toolchain/eligibility/pkg/pipeline"
	"github.com/codeready-toolchain/eligibility/pkg/pipeline/nodes"
	"github.com/codeready-toolchain/eligibility/pkg/storage/postgres"
	"github.com/codeready-toolchain/eligibility/pkg/terminology"
)

// defaultCacheTTL and defaultCacheCapacity back a terminology provider's
// result cache when neither the provider nor Defaults.ProviderCache sets one
// (spec.md §4.6 "Caching": TTL 5 minutes).
const (
	defaultCacheTTL      = 5 * time.Minute
	defaultCacheCapacity = 1000
)

// app bundles every long-lived collaborator cmd/pipeline-worker's
// subcommands need. serve uses all of it; retry and migrate only touch the
// db/config slice, but building through the same constructor keeps the
// wiring in one place.
type app struct {
	cfg     *config.Config
	db      *postgres.Client
	metrics *observability.Metrics

	protocols *postgres.ProtocolRepo
	criteria  *postgres.CriteriaRepo
	tree      *postgres.TreeRepo
	reviews   *postgres.ReviewRepo
	outboxDB  *postgres.OutboxRepo
	checkpt   *postgres.CheckpointRepo
	trigger   *postgres.TriggerService
	retry     *postgres.RetryService

	alertSvc *alerting.Service
	runtime  *pipeline.Runtime
	router   *terminology.Router
	watcher  *config.RouteTableWatcher
	breakers []breakerObserver
}

// buildApp loads configuration, opens the database (running migrations),
// and constructs every repository and pipeline collaborator. Callers are
// responsible for calling close() when done.
func buildApp(ctx context.Context, configDir string) (*app, error) {
	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	dbCfg, err := postgres.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load database configuration: %w", err)
	}
	db, err := postgres.NewClient(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	a := &app{
		cfg: cfg,
		db:  db,

		protocols: postgres.NewProtocolRepo(db.Pool),
		criteria:  postgres.NewCriteriaRepo(db.Pool),
		tree:      postgres.NewTreeRepo(db.Pool),
		reviews:   postgres.NewReviewRepo(db.Pool),
		outboxDB:  postgres.NewOutboxRepo(db.Pool),
		checkpt:   postgres.NewCheckpointRepo(db.Pool),

		metrics: observability.NewMetrics(),
	}
	a.trigger = postgres.NewTriggerService(a.outboxDB)
	a.retry = postgres.NewRetryService(a.protocols, a.outboxDB)
	a.alertSvc = alerting.NewService(a.alertingConfig())

	return a, nil
}

func (a *app) close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	a.db.Close()
}

func (a *app) alertingConfig() alerting.Config {
	cfg := alerting.Config{DashboardURL: a.cfg.Alerting.DashboardURL}
	if !a.cfg.Alerting.Enabled {
		return cfg
	}
	if token, err := resolveEnv(a.cfg.Alerting.TokenEnv); err == nil {
		cfg.Token = token
	}
	cfg.Channel = a.cfg.Alerting.Channel
	return cfg
}

// buildLLMClient resolves name's provider config and its API key env var
// (when set) and builds the HTTP StructuredLLM adapter every node shares.
func (a *app) buildLLMClient(name string) (llm.StructuredLLM, error) {
	providerCfg, err := a.cfg.GetLLMProvider(name)
	if err != nil {
		return nil, err
	}
	apiKey, _ := resolveEnv(providerCfg.APIKeyEnv)
	timeout := providerCfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := llm.NewHTTPClient(providerCfg.BaseURL, apiKey, providerCfg.Model, timeout)
	a.breakers = append(a.breakers, client)
	return client, nil
}

// buildTerminologyRouter constructs one terminology.HTTPProvider per
// registered provider and a Router over the configured (or default) route
// table.
func (a *app) buildTerminologyRouter() (*terminology.Router, error) {
	registry := a.cfg.TerminologyProviderRegistry
	providers := make(map[string]terminology.Provider, registry.Len())

	for name, providerCfg := range registry.GetAll() {
		timeout := providerCfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ttl, capacity := a.resolveCache(providerCfg.Cache)
		p := terminology.NewHTTPProvider(name, providerCfg.BaseURL, timeout, ttl, capacity)
		providers[name] = p
		a.breakers = append(a.breakers, p)
	}

	// config.Initialize always fills RouteTable with its own (lowercase-keyed)
	// defaults when unset, but an empty map falls back to
	// terminology.DefaultRouteTable directly rather than reinventing those
	// values under string keys just to convert them back.
	if len(a.cfg.RouteTable) == 0 {
		return terminology.NewRouter(terminology.DefaultRouteTable(), providers), nil
	}
	return terminology.NewRouter(toTerminologyRouteTable(a.cfg.RouteTable), providers), nil
}

func (a *app) resolveCache(provider config.CacheConfig) (time.Duration, int) {
	ttlSeconds, capacity := provider.TTLSeconds, provider.Capacity
	if ttlSeconds == 0 {
		ttlSeconds = a.cfg.Defaults.ProviderCache.TTLSeconds
	}
	if capacity == 0 {
		capacity = a.cfg.Defaults.ProviderCache.Capacity
	}
	ttl := defaultCacheTTL
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	if capacity == 0 {
		capacity = defaultCacheCapacity
	}
	return ttl, capacity
}

// buildBlobStoreRouter constructs the gs:// and local:// adapters named in
// spec.md §6.2.
func (a *app) buildBlobStoreRouter() (*blobstore.Router, error) {
	bs := a.cfg.BlobStore
	token, _ := resolveEnv(bs.GCSTokenEnv)
	timeout := bs.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	gcs := blobstore.NewGCSAdapter(token, timeout)

	localDir := bs.LocalBaseDir
	if localDir == "" {
		localDir = "."
	}
	local, err := blobstore.NewLocalAdapter(localDir)
	if err != nil {
		return nil, fmt.Errorf("build local blob adapter: %w", err)
	}
	return blobstore.NewRouter(gcs, local), nil
}

// buildPipeline wires the seven pipeline.Node bodies and the Runtime that
// sequences them (spec.md §4.2).
func (a *app) buildPipeline() (*pipeline.Runtime, *terminology.Router, error) {
	blobRouter, err := a.buildBlobStoreRouter()
	if err != nil {
		return nil, nil, err
	}

	extractionLLM, err := a.buildLLMClient(a.cfg.Defaults.LLMProvider)
	if err != nil {
		return nil, nil, fmt.Errorf("build extraction LLM client: %w", err)
	}

	termRouter, err := a.buildTerminologyRouter()
	if err != nil {
		return nil, nil, err
	}

	llmProviderCfg, err := a.cfg.GetLLMProvider(a.cfg.Defaults.LLMProvider)
	if err != nil {
		return nil, nil, err
	}

	ingestNode := nodes.NewIngest(blobRouter, a.protocols)
	extractNode := nodes.NewExtract(extractionLLM, nodes.ExtractConfig{
		Model:        llmProviderCfg.Model,
		HardLimitB64: 0,
	})
	parseNode := nodes.NewParse(a.criteria, nodes.ParseConfig{
		ExtractionModel: llmProviderCfg.Model,
		MaxCriteria:     a.cfg.Pipeline.MaxCriteria,
	})
	groundCfg := nodes.DefaultGroundConfig()
	groundCfg.Concurrency = a.cfg.Pipeline.GroundConcurrency
	groundCfg.MaxEntities = a.cfg.Pipeline.MaxEntities
	groundCfg.DecisionModel = llmProviderCfg.Model
	groundNode := nodes.NewGround(termRouter, extractionLLM, groundCfg)
	persistNode := nodes.NewPersist(a.criteria, a.protocols)
	structureCfg := nodes.DefaultStructureConfig()
	structureCfg.Concurrency = a.cfg.Pipeline.StructureConcurrency
	structureCfg.Model = llmProviderCfg.Model
	structureNode := nodes.NewStructure(a.criteria, a.tree, extractionLLM, structureCfg)
	ordinalCfg := nodes.DefaultOrdinalResolveConfig()
	ordinalCfg.Model = llmProviderCfg.Model
	ordinalNode := nodes.NewOrdinalResolve(a.tree, a.reviews, extractionLLM, ordinalCfg)

	runtime := pipeline.NewRuntime(a.checkpt, ingestNode, extractNode, parseNode, groundNode, persistNode, structureNode, ordinalNode)
	return runtime, termRouter, nil
}

// buildOutboxDispatcher wires the protocol_uploaded handler that drives
// pipeline runs off the durable outbox (spec.md §6.1).
func (a *app) buildOutboxDispatcher(runtime *pipeline.Runtime) *outbox.Dispatcher {
	registry := outbox.NewRegistry()
	registry.Register(domainEventProtocolUploaded, a.handleProtocolUploaded(runtime))

	cfg := outbox.DispatcherConfig{
		WorkerCount:        a.cfg.Outbox.WorkerCount,
		PollInterval:       a.cfg.Outbox.PollInterval,
		PollIntervalJitter: a.cfg.Outbox.PollIntervalJitter,
		MaxRetries:         a.cfg.Outbox.MaxRetries,
		InitialBackoff:     a.cfg.Outbox.InitialBackoff,
		MaxBackoff:         a.cfg.Outbox.MaxBackoff,
	}
	return outbox.NewDispatcher(a.outboxDB, registry, cfg).WithAlerter(newOutboxAlerter(a.alertSvc))
}

func (a *app) buildCleanupService() *cleanup.Service {
	return cleanup.NewService(cleanup.Config{
		DeadLetterTTL: a.cfg.Retention.DeadLetterTTL,
		SweepInterval: a.cfg.Retention.SweepInterval,
	}, a.outboxDB)
}

func (a *app) buildHTTPServer() *httpapi.Server {
	return httpapi.NewServer(
		a.protocols, a.criteria, a.reviews, a.trigger, a.outboxDB, a.metrics,
		httpapi.Config{DeadLetterTTL: a.cfg.Retention.DeadLetterTTL},
	)
}

// resolveEnv looks up an environment variable by name, treating an empty
// name as "not configured" rather than an error.
func resolveEnv(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	return mustGetenv(name)
}
