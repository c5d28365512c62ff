package main

import (
	"context"
	"database/sql"
	"detour-route-service/internal/adapters/cache"
	"detour-route-service/internal/adapters/embedding"
	"detour-route-service/internal/adapters/llm"
	"detour-route-service/internal/adapters/mapillary"
	"detour-route-service/internal/adapters/mock"
	"detour-route-service/internal/adapters/ors"
	"detour-route-service/internal/adapters/overpass"
	"detour-route-service/internal/adapters/tsp"
	"detour-route-service/internal/api"
	"detour-route-service/internal/api/handlers"
	"detour-route-service/internal/config"
	"detour-route-service/internal/platform/db"
	"detour-route-service/internal/platform/logger"
	"detour-route-service/internal/ports"
	"detour-route-service/internal/services"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// providers groups the concrete adapters behind the core ports.
type providers struct {
	extractor  ports.Extractor
	geocoder   ports.Geocoder
	directions ports.Directions
	isochrones ports.IsochroneProvider
	optimizer  ports.TripOptimizer
	searcher   ports.WaypointSearcher
	imagery    ports.Imagery
	embedding  ports.Embedding
	components map[string]string
}

// main is the application composition root.
// It wires concrete adapters behind ports and starts the HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.NewNamed(cfg.AppEnv, "detour")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handlers.Check{}

	kv, closeCache, err := openCache(ctx, cfg, log, checks)
	if err != nil {
		return err
	}
	defer closeCache()

	p, err := buildProviders(cfg, log)
	if err != nil {
		return err
	}

	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer conn.Close()
		checks["geocode_store"] = func(ctx context.Context) error { return conn.PingContext(ctx) }
		p.geocoder = durableGeocoder(p.geocoder, conn, log)
		p.components["geocode_store"] = "postgres"
	}

	orch, err := buildOrchestrator(cfg, p, kv, log)
	if err != nil {
		return err
	}

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.RouterDeps{
		Planner: orch,
		Health: &handlers.HealthHandler{
			Components: p.components,
			Checks:     checks,
			Stats:      orch.Stats,
		},
		RequestTimeout: 2 * time.Minute,
		Log:            log,
	})

	// Timeouts are tuned for cold-cache planning (many provider round trips).
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      150 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("providers", cfg.Providers.Mode),
			zap.String("strategy", orch.Strategy().Name),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openCache connects to Redis when REDIS_URL is set and falls back to a
// no-op cache otherwise.
func openCache(ctx context.Context, cfg *config.Config, log *zap.Logger, checks map[string]handlers.Check) (ports.Cache, func(), error) {
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL not set, caching disabled")
		return cache.NopCache{}, func() {}, nil
	}

	rdb, err := cache.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	checks["cache"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	return cache.NewRedisCache(rdb, log), func() { closeRedis(rdb, log) }, nil
}

func closeRedis(rdb *redis.Client, log *zap.Logger) {
	if err := rdb.Close(); err != nil {
		log.Warn("close redis", zap.Error(err))
	}
}

func durableGeocoder(next ports.Geocoder, conn *sql.DB, log *zap.Logger) ports.Geocoder {
	return cache.NewPersistentGeocoder(next, cache.NewSQLGeocodeCache(conn, log), log)
}

func buildProviders(cfg *config.Config, log *zap.Logger) (*providers, error) {
	pc := cfg.Providers

	if pc.Mode == "mock" {
		return &providers{
			extractor: mock.Extractor{Params: ports.ExtractedParameters{
				OriginText:             "Berkeley Marina",
				DestinationText:        "UC Berkeley",
				TimeFlexibilityMinutes: 20,
				TagQueries:             cfg.Planning.DefaultTagQueries,
			}},
			geocoder:   mock.NewGeocoder(mock.DemoPlaces),
			directions: &mock.Directions{Alternates: 1},
			isochrones: &mock.Isochrones{},
			optimizer:  optimizer(pc.TripOptimizer, nil, cfg.Routing.ReorderLimit),
			searcher:   &mock.Searcher{Waypoints: mock.DemoWaypoints},
			imagery:    mock.Imagery{},
			embedding:  mock.Embedding{},
			components: map[string]string{
				"routing":   "mock",
				"waypoints": "mock",
				"imagery":   "mock",
				"extractor": "mock",
				"optimizer": pc.TripOptimizer,
			},
		}, nil
	}

	orsClient, err := ors.NewClient(ors.Config{APIKey: pc.ORSAPIKey, BaseURL: pc.ORSBaseURL, Timeout: pc.Timeout}, log)
	if err != nil {
		return nil, err
	}

	p := &providers{
		extractor: llm.NewExtractor(
			llm.NewOllama(llm.Config{BaseURL: pc.OllamaBaseURL, Model: pc.OllamaModel, Timeout: pc.Timeout}, log),
			5, log,
		),
		geocoder:   orsClient,
		directions: orsClient,
		isochrones: orsClient,
		optimizer:  optimizer(pc.TripOptimizer, orsClient, cfg.Routing.ReorderLimit),
		searcher:   overpass.NewSearcher(overpass.Config{URL: pc.OverpassURL}, log),
		components: map[string]string{
			"routing":   "ors",
			"waypoints": "overpass",
			"extractor": "ollama",
			"optimizer": pc.TripOptimizer,
			"imagery":   "disabled",
		},
	}

	// The visual signal needs both imagery and embeddings.
	if pc.MapillaryToken != "" && pc.EmbeddingURL != "" {
		img, err := mapillary.NewClient(mapillary.Config{Token: pc.MapillaryToken, Timeout: pc.Timeout}, log)
		if err != nil {
			return nil, err
		}
		emb, err := embedding.NewClient(embedding.Config{URL: pc.EmbeddingURL, Timeout: pc.Timeout}, log)
		if err != nil {
			return nil, err
		}
		p.imagery, p.embedding = img, emb
		p.components["imagery"] = "mapillary"
	} else {
		log.Warn("MAPILLARY_TOKEN or EMBEDDING_URL missing, visual scoring disabled")
	}
	return p, nil
}

// optimizer picks the in-process exact solver or the remote one. Without a
// remote client the local solver is used.
func optimizer(kind string, remote ports.TripOptimizer, maxStops int) ports.TripOptimizer {
	if kind == "local" || remote == nil {
		return tsp.NewOptimizer(maxStops)
	}
	return remote
}

func buildOrchestrator(cfg *config.Config, p *providers, kv ports.Cache, log *zap.Logger) (*services.Orchestrator, error) {
	zones := services.NewSearchZoneBuilder(p.directions, p.isochrones, kv, services.SearchZoneConfig{
		IsochroneMaxMinutes: cfg.Zone.IsochroneMaxMinutes,
		Workers:             cfg.Zone.IsochroneWorkers,
	}, log)

	builder := services.NewRouteBuilder(p.directions, p.optimizer, services.RouteBuilderConfig{
		ReorderLimit: cfg.Routing.ReorderLimit,
	}, log)

	scorer := services.NewRouteScorer(p.imagery, p.embedding, services.ScorerConfig{
		Weights: services.Weights{
			Visual:     cfg.Scoring.WeightVisual,
			Efficiency: cfg.Scoring.WeightEfficiency,
			Preference: cfg.Scoring.WeightPreference,
		},
		MaxImages:      cfg.Scoring.MaxImages,
		BBoxDegrees:    cfg.Scoring.BBoxDegrees,
		BonusRate:      cfg.Scoring.WaypointBonusRate,
		EvaluationMode: cfg.Scoring.EvaluationMode,
	}, log)

	candidates := services.NewCandidateGenerator(services.CandidateConfig{
		TopK:          cfg.Candidates.TopK,
		MaxSingles:    cfg.Candidates.MaxSingles,
		MaxPairs:      cfg.Candidates.MaxPairs,
		MaxTriples:    cfg.Candidates.MaxTriples,
		MaxWaypoints:  cfg.Candidates.MaxWaypoints,
		MaxCandidates: cfg.Candidates.MaxCandidates,
	})

	strategy := services.StrategyByName(cfg.Routing.Strategy, cfg.Routing.BuildWorkers, cfg.Routing.ScoreWorkers)

	return services.NewOrchestrator(services.Dependencies{
		Extractor:  p.extractor,
		Geocoder:   p.geocoder,
		Searcher:   p.searcher,
		Zones:      zones,
		Builder:    builder,
		Scorer:     scorer,
		Candidates: candidates,
		Cache:      kv,
	}, services.OrchestratorConfig{
		MaxResults:           cfg.Planning.MaxResults,
		TopK:                 cfg.Candidates.TopK,
		NearThresholdMeters:  cfg.Planning.NearThresholdMeters,
		DefaultTagQueries:    cfg.Planning.DefaultTagQueries,
		DefaultExtraMinutes:  cfg.Planning.DefaultExtraMinutes,
		DefaultTransportMode: cfg.Planning.DefaultTransportMode,
		ForceTransportMode:   cfg.Planning.ForceTransportMode,
		DirectAlternatives:   cfg.Routing.DirectAlternatives,
		TaskTimeout:          cfg.Routing.TaskTimeout,
	}, strategy, log)
}
