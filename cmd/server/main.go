/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the schedule guard server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Wire the rule engine, services, and API handler
  4. Optionally seed the ACH processing schedule
  5. Start server with graceful shutdown; background calendar refresher

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080)
  -db         SQLite database path (default: schedguard.db)
              Use ":memory:" for in-memory database
  -seed-ach   Seed the ACH processing schedule for the current year if
              no schedule of that name exists yet
  -debug      Verbose logging

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the calendar refresher
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/schedguard.db"

  # Run with in-memory database and seeded ACH calendar
  ./server -db=":memory:" -seed-ach

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/schedule-guard/api"
	"github.com/warp/schedule-guard/engine"
	"github.com/warp/schedule-guard/factory"
	"github.com/warp/schedule-guard/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "schedguard.db", "SQLite database path")
	seedACH := flag.Bool("seed-ach", false, "seed the ACH processing schedule for the current year")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
	if *debug {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	// Wire services
	rules := engine.NewRuleEngine()
	applicator := engine.NewDeviationApplicator(store)
	service := engine.NewScheduleService(store, rules, log)
	materializer := engine.NewMaterializationService(store, rules, applicator, log)

	if *seedACH {
		if err := seedACHSchedule(context.Background(), store, log); err != nil {
			log.Fatal().Err(err).Msg("failed to seed ACH schedule")
		}
	}

	handler := api.NewHandler(store, service, materializer)
	router := api.NewRouter(handler)

	refresher := api.NewCalendarRefresher(store, materializer, log)
	refresher.Start()
	defer refresher.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", *port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// seedACHSchedule persists the factory-built ACH calendar for the current
// year unless a schedule with that name already exists.
func seedACHSchedule(ctx context.Context, store *sqlite.Store, log zerolog.Logger) error {
	def, err := factory.NewScheduleFactory().BuildACHSchedule(time.Now().Year())
	if err != nil {
		return err
	}

	existing, err := store.FindScheduleByName(ctx, def.Schedule.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		log.Info().Str("name", def.Schedule.Name).Msg("ACH schedule already seeded")
		return nil
	}

	if err := store.SaveSchedule(ctx, def.Schedule); err != nil {
		return err
	}
	if err := store.SwapActiveVersion(ctx, def.Version, def.Rule); err != nil {
		return err
	}
	for _, dev := range def.Deviations {
		if err := store.SaveDeviation(ctx, dev); err != nil {
			return err
		}
	}

	log.Info().
		Str("name", def.Schedule.Name).
		Int("holiday_skips", len(def.Deviations)).
		Msg("ACH schedule seeded")
	return nil
}

var _ engine.Store = (*sqlite.Store)(nil)
