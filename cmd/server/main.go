package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/titanbuild/vistalink/internal/auth"
	"github.com/titanbuild/vistalink/internal/config"
	"github.com/titanbuild/vistalink/internal/db"
	"github.com/titanbuild/vistalink/internal/ingestion"
	"github.com/titanbuild/vistalink/internal/middleware"
	"github.com/titanbuild/vistalink/internal/reconcile"
	"github.com/titanbuild/vistalink/internal/repository"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	dbConfig, err := config.LoadDBConfig(".")
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}
	serverConfig, err := config.LoadServerConfig(".")
	if err != nil {
		log.Fatalf("Failed to load server config: %v", err)
	}

	// Run migrations before opening the pool
	if err := db.RunMigrations(dbConfig, serverConfig.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Create repositories
	vistaRepo := repository.NewVistaRecordRepository(conn.Pool)
	titanRepo := repository.NewTitanRecordRepository(conn.Pool)
	batchRepo := repository.NewImportBatchRepository(conn.Pool)

	// Create services
	reconcileService := reconcile.NewService(vistaRepo, titanRepo, conn, serverConfig.MinSimilarity)
	ingestionService := ingestion.NewService(vistaRepo, batchRepo)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   serverConfig.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	guard := auth.TokenMiddleware(serverConfig.AdminToken)
	wrap := func(h http.Handler) http.Handler {
		return corsHandler.Handler(middleware.LoggingMiddleware(guard(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("/vista-data/upload", wrap(ingestion.NewHTTPHandler(ingestionService)))
	mux.Handle("/vista-data/import-history", wrap(ingestion.NewHTTPHandler(ingestionService)))
	mux.Handle("/vista-data/", wrap(reconcile.NewHTTPHandler(reconcileService)))

	// Create HTTP server
	server := &http.Server{
		Addr:         serverConfig.ListenAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting reconciliation server on %s", serverConfig.ListenAddr)
		log.Printf("API available under http://localhost%s/vista-data/", serverConfig.ListenAddr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
