// The inventory service: a REST API over rooms, their barcoded inventory
// and missed-item lists, with JWT-authenticated accounts. State lives in a
// single SQLite file that is created and initialized on first run.
package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/Gulaghaa/SDP/internal/api"
	"github.com/Gulaghaa/SDP/internal/db"
	"github.com/Gulaghaa/SDP/internal/model"
	"github.com/Gulaghaa/SDP/internal/store"
)

func main() {
	// Missing .env is fine; flags and real env still apply.
	godotenv.Load()

	fs := flag.NewFlagSet("server", flag.ExitOnError)
	dbPath := fs.String("db", envOr("INVENTORY_DB", "inventory.sqlite3"), "path to SQLite database file")
	addr := fs.String("addr", envOr("INVENTORY_ADDR", ":8080"), "listen address")
	debug := fs.Bool("debug", os.Getenv("INVENTORY_DEBUG") != "", "enable debug logging")
	pretty := fs.Bool("pretty", false, "human-readable log output")
	fs.Parse(os.Args[1:])

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if *pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if err := run(*dbPath, *addr); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(dbPath, addr string) error {
	firstRun := false
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		firstRun = true
	}

	database, err := db.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}

	ctx := context.Background()
	if firstRun {
		password, err := createAdmin(ctx, database)
		if err != nil {
			return fmt.Errorf("creating admin account: %w", err)
		}
		// Printed once, to stdout rather than the log stream, so it can
		// be captured on provisioning.
		fmt.Printf("Admin account created.\n  Username: admin\n  Password: %s\n", password)
		fmt.Println("Save this password; it cannot be recovered, only changed after login.")
	}

	// The signing secret is persisted with the database, so tokens
	// survive restarts.
	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("loading JWT secret: %w", err)
	}

	handler := api.LoggingMiddleware(api.NewRouter(database, jwtSecret))
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("db", dbPath).Msg("server listening")
		errc <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

// createAdmin provisions the initial admin account with a random password.
func createAdmin(ctx context.Context, database *sql.DB) (string, error) {
	password, err := generatePassword(16)
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	if _, err := store.CreateUser(ctx, database, "admin", string(hash), model.RoleAdmin); err != nil {
		return "", err
	}
	return password, nil
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
