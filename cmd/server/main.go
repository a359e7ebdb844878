package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"flowsmith/backend/internal/api"
	"flowsmith/backend/internal/auth"
	"flowsmith/backend/internal/config"
	"flowsmith/backend/internal/generation"
	"flowsmith/backend/internal/langflow"
	"flowsmith/backend/internal/logging"
	"flowsmith/backend/internal/mcp"
	"flowsmith/backend/internal/repository"
	"flowsmith/backend/internal/services"
	"flowsmith/backend/internal/tls"
	"flowsmith/backend/pkg/catalog"
)

func main() {
	ctx := context.Background()

	// Parse command line flags
	configFile := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Configuration loading failed: %v", err)
	}

	// Initialize logging
	logger, err := logging.NewLogger(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("Logger initialization failed: %v", err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		"environment", cfg.Environment,
		"okta_domain", cfg.Auth.OktaDomain,
		"okta_client_id", cfg.Auth.ClientID,
		"builder_url", cfg.Builder.BaseURL,
		"generator_model", cfg.Generator.Model,
		"db_driver", cfg.DB.Driver,
	)
	if cfg.Auth.SwaggerClientID != "" && cfg.Auth.SwaggerClientID == cfg.Auth.ClientID {
		logger.Warn("Swagger client id matches the backend client id; PKCE login from the docs page will fail if the backend client requires a secret")
	}

	logger.Info("Starting Flowsmith")

	// Initialize persistence
	store, closeStore, err := initStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize store", "error", err)
		log.Fatalf("Store initialization failed: %v", err)
	}
	defer closeStore()

	// Initialize service layer
	cat := catalog.Default()
	backend := generation.NewOpenAIBackend(generation.OpenAIConfig{
		BaseURL:     cfg.Generator.BaseURL,
		APIKey:      cfg.Generator.APIKey,
		Model:       cfg.Generator.Model,
		MaxTokens:   cfg.Generator.MaxTokens,
		Temperature: cfg.Generator.Temperature,
		Timeout:     cfg.Generator.Timeout,
	})
	adapter := generation.NewAdapter(backend, cat, logger.With("component", "generation"))
	builder := langflow.NewClient(cfg.Builder.BaseURL, cfg.Builder.APIKey, cfg.Builder.Timeout, nil)

	workflowService := services.NewWorkflowService(store, adapter, builder, logger)
	provisioner := services.NewWorkspaceProvisioner(store, builder, logger)

	logger.Info("Service layer initialized")

	// Create Echo server
	e := api.NewEcho()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("flowsmith"))

	// Initialize authentication
	authz, err := auth.New(ctx, cfg, store, logger)
	if err != nil {
		logger.Error("failed to initialize auth", "error", err)
		log.Fatalf("auth initialization failed: %v", err)
	}
	if authz.Bypassed() {
		logger.Warn("Authentication bypassed; every request acts as " + auth.DevIdentity)
	}

	// Register auth handlers
	e.GET("/login", echo.WrapHandler(http.HandlerFunc(authz.LoginHandler)))
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(authz.CallbackHandler)))
	e.GET("/logout", echo.WrapHandler(http.HandlerFunc(authz.LogoutHandler)))

	// Mount REST API handlers
	apiServer := api.NewServer(workflowService, provisioner, cfg.Builder.BaseURL, cat, logger)
	e.GET("/health", apiServer.HandleHealth)

	apiGroup := e.Group("/api/v1")
	apiGroup.Use(echo.WrapMiddleware(authz.RequireAuth))
	api.RegisterHandlers(apiGroup, apiServer)

	logger.Info("REST API handlers mounted")

	// Mount MCP protocol handlers
	mcpServer := mcp.NewServer(workflowService, cat)
	mcpHandler := authz.RequireAuth(mcp.NewSSEHandler(mcpServer.GetMCPServer(), "/mcp"))
	e.Any("/mcp/*", echo.WrapHandler(mcpHandler))

	logger.Info("MCP protocol handlers mounted")

	// expose OpenAPI spec (with runtime substitution) and Swagger UI
	e.GET("/openapi.yaml", echo.WrapHandler(api.SpecHandler(cfg.Auth.OktaDomain)))
	e.GET("/docs", echo.WrapHandler(api.SwaggerHandler(cfg.Auth.SwaggerClientID)))
	e.GET("/docs/oauth2-redirect.html", echo.WrapHandler(http.HandlerFunc(api.OAuthRedirectHandler)))

	// Create HTTP server
	addr := cfg.Server.Addr
	server := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		// Generation may run for the full generator timeout. The MCP stream handler
		// lifts this deadline for its own connections.
		WriteTimeout: cfg.Generator.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	useTLS, err := prepareTLS(cfg, logger)
	if err != nil {
		logger.Error("TLS setup failed", "error", err)
		log.Fatalf("TLS setup failed: %v", err)
	}

	// Graceful shutdown handling
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", addr, "tls", useTLS)
		if useTLS {
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	// Wait for shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}

		logger.Info("Server stopped gracefully")
	}
}

// initStore opens the configured store and returns a function releasing it.
func initStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (repository.Store, func(), error) {
	if cfg.DB.Driver == "memory" {
		logger.Warn("Using in-memory store; data is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil
	}

	pool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	store := repository.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("Database connected")
	return store, pool.Close, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection")

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// prepareTLS reports whether to serve HTTPS, generating a self-signed
// certificate when hostnames are configured and no files exist yet.
func prepareTLS(cfg *config.Config, logger *logging.Logger) (bool, error) {
	if !cfg.TLS.Enable {
		return false, nil
	}
	if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
		return false, errors.New("tls enabled but cert_file or key_file is not set")
	}
	if len(cfg.TLS.Hostnames) == 0 {
		return true, nil
	}
	created, err := tls.EnsureCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
	if err != nil {
		return false, fmt.Errorf("failed to generate self-signed cert: %w", err)
	}
	if created {
		logger.Info("Generated self-signed certificate", "cert", cfg.TLS.CertFile, "hostnames", cfg.TLS.Hostnames)
	}
	return true, nil
}
