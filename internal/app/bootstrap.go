// Package app wires the aggregator's configuration into the Registry,
// Session Manager, tool/vector stores, embedding and classification
// capabilities, Tool Aggregator, Request Router, and Facade, then
// exposes that Facade over MCP and runs the background health loop.
//
// Bootstrap is deliberately linear: load config, build every
// capability it names (falling back to in-memory/null-object
// implementations where a backend is unconfigured), wire the four
// subsystems into the Facade, auto-register configured servers, and
// start serving.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenophobed/isA-MCP-sub015/internal/classify"
	"github.com/xenophobed/isA-MCP-sub015/internal/config"
	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
	"github.com/xenophobed/isA-MCP-sub015/internal/embed"
	"github.com/xenophobed/isA-MCP-sub015/internal/events"
	"github.com/xenophobed/isA-MCP-sub015/internal/facade"
	"github.com/xenophobed/isA-MCP-sub015/internal/frontend"
	"github.com/xenophobed/isA-MCP-sub015/internal/registry"
	"github.com/xenophobed/isA-MCP-sub015/internal/router"
	"github.com/xenophobed/isA-MCP-sub015/internal/session"
	storetool "github.com/xenophobed/isA-MCP-sub015/internal/store/tool"
	storevector "github.com/xenophobed/isA-MCP-sub015/internal/store/vector"
	"github.com/xenophobed/isA-MCP-sub015/internal/toolaggregator"
	"github.com/xenophobed/isA-MCP-sub015/pkg/logging"
)

// DefaultListenAddress is where the frontend's streamable-HTTP
// transport listens when no override is given.
const DefaultListenAddress = ":8090"

// Application owns every long-lived component built during bootstrap
// and the single Facade that fronts them.
type Application struct {
	cfg      config.AggregatorConfig
	pool     *pgxpool.Pool
	facade   *facade.Facade
	frontend *frontend.Server
	listen   string
}

// NewApplication loads configuration from cfg.ConfigPath (falling
// back to defaults when the file is absent), builds every capability
// the config names, and wires the four subsystems into a Facade.
func NewApplication(cfg *Config) (*Application, error) {
	logLevel := logging.LevelInfo
	if cfg.Debug {
		logLevel = logging.LevelDebug
	}
	var out io.Writer = os.Stdout
	logging.Init(logLevel, out)

	aggCfg, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load aggregator config: %w", err)
	}

	ctx := context.Background()

	var pool *pgxpool.Pool
	var reg registry.Registry
	var tools storetool.Store
	var vectors storevector.Store
	sink := events.NewLogging()

	if aggCfg.Postgres.DSN != "" {
		pool, err = newPostgresPool(ctx, aggCfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}

		if err := registry.Migrate(ctx, pool); err != nil {
			return nil, fmt.Errorf("migrate registry schema: %w", err)
		}
		if err := storetool.Migrate(ctx, pool); err != nil {
			return nil, fmt.Errorf("migrate tool schema: %w", err)
		}
		dimensions := aggCfg.Postgres.VectorDimension
		if dimensions <= 0 {
			dimensions = 1536
		}
		if err := storevector.Migrate(ctx, pool, dimensions); err != nil {
			return nil, fmt.Errorf("migrate vector schema: %w", err)
		}

		reg = registry.NewPostgres(pool, sink)
		tools = storetool.NewPostgres(pool)
		vectors = storevector.NewPgvector(pool)
		logging.Info("Bootstrap", "using postgres-backed registry and stores")
	} else {
		reg = registry.NewMemory(sink)
		tools = storetool.NewMemory()
		vectors = storevector.NewMemory()
		logging.Info("Bootstrap", "no postgres DSN configured, using in-memory registry and stores")
	}

	embedder, err := buildEmbedder(aggCfg.Embedding, aggCfg.Postgres.VectorDimension)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}

	classifier, err := buildClassifier(aggCfg.Classify)
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}

	sessions := session.NewManager(aggCfg.Retry)
	aggregator := toolaggregator.New(reg, sessions, tools, vectors, embedder, classifier)
	rtr := router.New(reg, tools, sessions, aggCfg.Retry.CallTimeout)
	fac := facade.New(reg, sessions, aggregator, rtr, aggCfg.Health.FailureThreshold, aggCfg.Health.Interval)

	if err := autoRegisterServers(ctx, fac, aggCfg.Servers); err != nil {
		return nil, fmt.Errorf("auto-register configured servers: %w", err)
	}

	return &Application{
		cfg:      aggCfg,
		pool:     pool,
		facade:   fac,
		frontend: frontend.New(fac),
		listen:   DefaultListenAddress,
	}, nil
}

func newPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return storevector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

func buildEmbedder(cfg config.EmbeddingConfig, dimensions int) (embed.Embedder, error) {
	if cfg.APIKey == "" {
		logging.Info("Bootstrap", "no embedding API key configured, tool search will use zero vectors")
		return embed.NewZero(dimensions), nil
	}
	return embed.NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model)
}

func buildClassifier(cfg config.ClassifierConfig) (classify.SkillClassifier, error) {
	if cfg.APIKey == "" {
		logging.Info("Bootstrap", "no classifier API key configured, tools will remain unclassified")
		return classify.NewNoop(), nil
	}
	return classify.NewAnyLLM(cfg.APIKey, cfg.Model, cfg.BatchSize)
}

// autoRegisterServers registers every configured server and connects
// those marked AutoConnect; a single server's registration or connect
// failure is logged and does not abort the rest.
func autoRegisterServers(ctx context.Context, fac *facade.Facade, servers []config.ServerConfig) error {
	for _, sc := range servers {
		transport, err := domain.ParseTransportKind(sc.Transport)
		if err != nil {
			logging.Warn("Bootstrap", "skip server %s: %v", sc.Name, err)
			continue
		}

		connCfg := map[string]any{}
		if sc.Command != "" {
			connCfg["command"] = sc.Command
		}
		if len(sc.Args) > 0 {
			connCfg["args"] = sc.Args
		}
		if len(sc.Env) > 0 {
			connCfg["env"] = sc.Env
		}
		if sc.URL != "" {
			connCfg["url"] = sc.URL
		}
		if len(sc.Headers) > 0 {
			connCfg["headers"] = sc.Headers
		}

		rec, err := fac.RegisterServer(ctx, domain.RegisterConfig{
			Name:               sc.Name,
			Description:        sc.Description,
			Transport:          transport,
			ConnectionConfig:   connCfg,
			HealthCheckAddress: sc.HealthCheckAddress,
			Tenant:             domain.TenantScope{OrgID: sc.OrgID, IsGlobal: sc.IsGlobal || sc.OrgID == ""},
		})
		if err != nil {
			logging.Warn("Bootstrap", "register configured server %s: %v", sc.Name, err)
			continue
		}

		if sc.AutoConnect {
			if err := fac.ConnectServer(ctx, rec.ID); err != nil {
				logging.Warn("Bootstrap", "auto-connect server %s: %v", sc.Name, err)
			}
		}
	}
	return nil
}

// Run starts the background health monitor and serves the frontend's
// MCP surface until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	cancelHealth := a.facade.StartHealthMonitor(ctx)
	defer func() {
		cancelHealth()
		a.facade.Wait()
	}()

	logging.Info("Bootstrap", "aggregator listening on %s", a.listen)
	err := a.frontend.ListenAndServe(ctx, a.listen)

	if a.pool != nil {
		a.pool.Close()
	}
	return err
}
