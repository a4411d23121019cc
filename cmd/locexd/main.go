package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"locex/internal/api"
	"locex/pkg/cache"
	"locex/pkg/citoid"
	"locex/pkg/commons"
	"locex/pkg/config"
	"locex/pkg/db"
	"locex/pkg/imagecount"
	"locex/pkg/locations"
	"locex/pkg/logging"
	"locex/pkg/request"
	"locex/pkg/store"
	"locex/pkg/tracker"
	"locex/pkg/version"
	"locex/pkg/wikidata"
)

const configPath = "configs/locex.yaml"

var initConfig = flag.Bool("init-config", false, "Generate default config file and exit")

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.Save(configPath, config.DefaultConfig()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", configPath)
		return
	}

	if err := run(context.Background(), configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Secrets live in the environment, optionally seeded from a .env file.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("locexd started", "version", version.Version)

	dbConn, st, err := initDB(cfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	cacheTTL := time.Duration(cfg.Request.CacheTTL)
	if cacheTTL > 0 {
		if err := dbConn.PruneCache(cacheTTL); err != nil {
			slog.Warn("Failed to prune response cache", "error", err)
		}
	}
	respCache := cache.NewTiered(cache.NewMemory(cacheTTL), store.NewResponseCache(dbConn, cacheTTL))

	tr := tracker.New()
	reqClient := request.New(respCache, tr, cfg.Request)

	policy := wikidata.LanguagePolicy{Supported: cfg.Languages.Supported, Default: cfg.Languages.Default}
	graph := wikidata.NewClient(reqClient, cfg.SPARQL.Endpoint)
	queries := wikidata.QueryBuilder{CollectionQID: cfg.Wikidata.CollectionQID, DefaultLimit: cfg.SPARQL.DefaultLimit}
	reader := wikidata.NewReader(reqClient, cfg.Wikidata.APIEndpoint, policy)
	commonsClient := commons.NewClient(reqClient, cfg.Commons.APIEndpoint)
	citoidClient := citoid.NewClient(reqClient, cfg.Commons.CitoidURL)

	pool := imagecount.NewPool(cfg.ImageCounts.Workers)
	defer pool.Stop()
	counts := imagecount.New(st, pool, time.Duration(cfg.ImageCounts.TTL),
		imagecount.NewPetscanFetcher(reqClient, cfg.Commons.PetscanURL),
		imagecount.NewViewItFetcher(reqClient, cfg.Commons.ViewItURL),
		logging.Component("imagecount"))

	locSvc := locations.New(graph, queries, st, counts, policy, cfg.Commons.ThumbWidth, logging.Component("locations"))

	session, writer, uploader := initWriteStack(ctx, cfg)

	return runServer(ctx, cfg, api.Handlers{
		Locations: api.NewLocationsHandler(locSvc),
		Drafts:    api.NewDraftsHandler(st),
		Wikidata:  api.NewWikidataHandler(reader, writer, cfg.Wikidata.CollectionQID, ""),
		Commons:   api.NewCommonsHandler(commonsClient, uploader, cfg.Commons.UploadMaxBytes),
		Citoid:    api.NewCitoidHandler(citoidClient),
		Auth:      api.NewAuthHandler(session),
		Stats:     api.NewStatsHandler(tr),
	})
}

func initDB(cfg *config.Config) (*db.DB, *store.SQLiteStore, error) {
	dbConn, err := db.Init(cfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

// initWriteStack builds the authenticated write clients. Missing credentials
// are not an error: the server runs read-only and the write endpoints answer
// 503 until the OAuth pairs are configured.
func initWriteStack(ctx context.Context, cfg *config.Config) (*wikidata.Session, *wikidata.Writer, *wikidata.CommonsUploader) {
	creds := wikidata.Credentials{
		ConsumerKey:    cfg.Wikidata.ConsumerKey,
		ConsumerSecret: cfg.Wikidata.ConsumerSecret,
		AccessToken:    os.Getenv("MEDIAWIKI_ACCESS_TOKEN"),
		AccessSecret:   os.Getenv("MEDIAWIKI_ACCESS_SECRET"),
	}
	userAgent := "locexd/" + version.Version + " (+https://localhost)"
	timeout := time.Duration(cfg.Request.Timeout)

	session, err := wikidata.NewSession(cfg.Wikidata.APIEndpoint, creds, userAgent, timeout)
	if err != nil {
		slog.Info("Wikidata writes disabled", "reason", err)
		return nil, nil, nil
	}

	writer, err := wikidata.NewWriter(ctx, session, wikidata.LanguagePolicy{
		Supported: cfg.Languages.Supported,
		Default:   cfg.Languages.Default,
	})
	if err != nil {
		slog.Warn("Failed to initialize Wikidata writer, writes disabled", "error", err)
		return session, nil, nil
	}

	commonsSession, err := wikidata.NewSession(cfg.Commons.APIEndpoint, creds, userAgent, timeout)
	if err != nil {
		slog.Warn("Failed to open Commons session, uploads disabled", "error", err)
		return session, writer, nil
	}
	uploader, err := wikidata.NewCommonsUploader(ctx, commonsSession)
	if err != nil {
		slog.Warn("Failed to initialize Commons uploader, uploads disabled", "error", err)
		return session, writer, nil
	}

	return session, writer, uploader
}

func runServer(ctx context.Context, cfg *config.Config, handlers api.Handlers) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Addr, handlers, shutdownFunc)
	srv.Handler = loggingMiddleware(srv.Handler)

	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
