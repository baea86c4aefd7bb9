package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/farmiq/farmiq-backend/internal/core/domain"
)

const (
	defaultTimeout = 10 * time.Second
	defaultAppName = "farmiq-api"
)

// Config holds the connection settings for the installation database.
type Config struct {
	URI      string
	Database string
	AppName  string
	// Timeout bounds connecting, the startup ping and server selection.
	Timeout time.Duration
}

// Store owns the client and the database the installation workflow uses.
type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

// Connect opens the client and pings the primary before returning.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	appName := cfg.AppName
	if appName == "" {
		appName = defaultAppName
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName(appName).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &Store{client: client, db: client.Database(cfg.Database), timeout: timeout}, nil
}

// Database returns the installation database handle.
func (s *Store) Database() *mongo.Database { return s.db }

// Ping reports whether the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Bootstrap creates the indexes and seeds technicians into an empty
// collection. It is safe to run on every start.
func (s *Store) Bootstrap(ctx context.Context, installations *InstallationRepository, technicians *TechnicianRepository, seed []domain.Technician) error {
	if err := installations.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("mongo bootstrap: %w", err)
	}
	if err := technicians.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("mongo bootstrap: %w", err)
	}
	if err := technicians.Seed(ctx, seed); err != nil {
		return fmt.Errorf("mongo bootstrap: %w", err)
	}
	return nil
}

// Close disconnects, waiting at most the configured timeout.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
