/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the booking engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present), parse command-line flags
  2. Initialize SQLite store
  3. Rebuild the interval index from active bookings
  4. Wire coordinator, reconciler, sweeper
  5. Start sweeper and HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -port            HTTP server port (default: 8080)
  -db              SQLite database path (default: booking.db)
                   Use ":memory:" for in-memory database
  -pending-ttl     How long an unpaid pending booking holds its dates
  -sweep-interval  How often the lifecycle sweeper runs
  -host-confirm    Require explicit host confirmation; payments alone
                   no longer confirm bookings

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweeper, close the database
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/booking.db"

  # Run with in-memory database and aggressive hold expiry
  ./server -db=":memory:" -pending-ttl=5m -sweep-interval=30s

ENVIRONMENT:
  Flags may also be set via a .env file (PORT, DB_PATH); flags win.

SEE ALSO:
  - api/server.go: Router configuration
  - booking/coordinator.go: Booking critical section
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lodgic/booking-engine/api"
	"github.com/lodgic/booking-engine/booking"
	"github.com/lodgic/booking-engine/store/sqlite"
)

func main() {
	// Optional .env, flags override
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "booking.db"), "SQLite database path")
	pendingTTL := flag.Duration("pending-ttl", 30*time.Minute, "How long unpaid pending bookings hold their dates")
	sweepInterval := flag.Duration("sweep-interval", time.Minute, "Lifecycle sweeper interval")
	hostConfirm := flag.Bool("host-confirm", false, "Require explicit host confirmation after payment")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	policy := booking.DefaultPolicy()
	policy.PendingTTL = *pendingTTL
	policy.SweepInterval = *sweepInterval
	policy.RequireHostConfirmation = *hostConfirm

	// Wire the engine
	ledger := booking.NewLedger(store)
	index := booking.NewIndex()
	coord := booking.NewCoordinator(ledger, index, store, policy)
	reconciler := booking.NewReconciler(ledger, policy)
	sweeper := booking.NewSweeper(coord, policy)

	// Rebuild interval holds from active bookings
	if err := coord.RestoreIndex(context.Background()); err != nil {
		log.Fatalf("Failed to restore interval index: %v", err)
	}

	sweeper.Start()
	defer sweeper.Stop()

	// HTTP surface
	handler := api.NewHandler(store, coord, reconciler, sweeper)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
