package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskspace/internal/app"
	"taskspace/internal/config"
	"taskspace/internal/domain"
	"taskspace/internal/handler"
	"taskspace/internal/logging"
	"taskspace/internal/middleware"
	"taskspace/internal/repository"
	"taskspace/internal/service"
	"taskspace/internal/session"
	"taskspace/internal/websocket"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Server.Env)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	client, err := kivik.New("couch", cfg.Database.URL())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to CouchDB")
	}

	created, err := repository.EnsureDatabase(ctx, client, cfg.Database.Name)
	if err != nil {
		logger.Fatal().Err(err).Str("db", cfg.Database.Name).Msg("failed to prepare database")
	}
	if created {
		logger.Info().Str("db", cfg.Database.Name).Msg("created database")
	}

	if err := repository.EnsureIndexes(ctx, client.DB(cfg.Database.Name)); err != nil {
		logger.Fatal().Err(err).Msg("failed to create indexes")
	}

	workspaceRepo := repository.NewWorkspaceRepository(client, cfg.Database.Name)
	todoRepo := repository.NewTodoRepository(client, cfg.Database.Name)

	sess := session.New(cfg.JWT.Secret, cfg.JWT.Expiration, logger)
	directory := service.NewWorkspaceDirectory(workspaceRepo, todoRepo, sess, service.DirectoryConfig{
		ListLimit:     cfg.Store.WorkspaceListLimit,
		CascadeDelete: cfg.Store.CascadeDeleteTodos,
	}, logger)
	todos := service.NewTodoCollection(todoRepo, sess, directory, cfg.Store.TodoListLimit, logger)

	wsManager := websocket.NewManager(
		cfg.WebSocket.MaxConnections,
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
		logger,
	)
	go wsManager.Run()
	defer wsManager.Stop()

	unpublish := publishState(wsManager, sess, directory, todos)
	defer unpublish()

	application := app.New(ctx, sess, directory, todos, logger)
	defer application.Close()

	var issuer handler.TokenIssuer
	if cfg.Server.Env == "development" {
		issuer = sess
	}
	sessionHandler := handler.NewSessionHandler(sess, issuer)
	workspaceHandler := handler.NewWorkspaceHandler(directory)
	todoHandler := handler.NewTodoHandler(todos)
	wsHandler := handler.NewWebSocketHandler(wsManager, sess, logger)
	healthHandler := handler.NewHealthHandler(handler.PingFunc(func(ctx context.Context) (bool, error) {
		return client.Ping(ctx)
	}))

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/session/login", sessionHandler.Login).Methods("POST", "OPTIONS")
	api.HandleFunc("/session/logout", sessionHandler.Logout).Methods("POST", "OPTIONS")
	api.HandleFunc("/session", sessionHandler.Me).Methods("GET", "OPTIONS")
	if issuer != nil {
		api.HandleFunc("/session/token", sessionHandler.Issue).Methods("POST", "OPTIONS")
	}

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.RequireSession(sess, sess))

	protected.HandleFunc("/workspaces", workspaceHandler.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/workspaces", workspaceHandler.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/workspaces/refresh", workspaceHandler.Refresh).Methods("POST", "OPTIONS")
	protected.HandleFunc("/workspaces/{id}", workspaceHandler.Update).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/workspaces/{id}", workspaceHandler.Delete).Methods("DELETE", "OPTIONS")
	protected.HandleFunc("/workspaces/{id}/select", workspaceHandler.Select).Methods("POST", "OPTIONS")

	protected.HandleFunc("/todos", todoHandler.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/todos", todoHandler.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/todos/counts", todoHandler.Counts).Methods("GET", "OPTIONS")
	protected.HandleFunc("/todos/refresh", todoHandler.Refresh).Methods("POST", "OPTIONS")
	protected.HandleFunc("/todos/{id}", todoHandler.Update).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/todos/{id}", todoHandler.Delete).Methods("DELETE", "OPTIONS")
	protected.HandleFunc("/todos/{id}/toggle", todoHandler.Toggle).Methods("POST", "OPTIONS")

	r.HandleFunc("/ws", wsHandler.HandleConnection)
	r.HandleFunc("/health", healthHandler.Health).Methods("GET")

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Server.Env).Msg("starting taskspace")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped gracefully")
}

// publishState pushes a snapshot to websocket clients whenever the session,
// the directory or the collection changes.
func publishState(m *websocket.Manager, sess *session.Session, dir *service.WorkspaceDirectory, todos *service.TodoCollection) func() {
	unsubs := []func(){
		sess.Subscribe(func(prev, next *domain.User) {
			m.Publish(websocket.TypeSession, map[string]*domain.User{"user": next})
		}),
		dir.OnChange(func() {
			m.Publish(websocket.TypeWorkspaces, dir.Snapshot())
		}),
		todos.OnChange(func() {
			m.Publish(websocket.TypeTodos, todos.Snapshot())
		}),
	}

	return func() {
		for _, fn := range unsubs {
			fn()
		}
	}
}
