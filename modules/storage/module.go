package storage

import (
	"context"
	"fmt"

	domain "github.com/TaelanSakay/PlayGround/domain/canvas"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Supported drivers.
const (
	DriverMemory    = "memory"
	DriverJetStream = "jetstream"
	DriverRedis     = "redis"
	DriverSQLite    = "sqlite"
	DriverPostgres  = "postgres"
)

// Backend is a room document store with a connection lifecycle.
type Backend interface {
	Driver() string
	Open(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error

	CreateRoom(ctx context.Context, room *domain.Room) error
	GetRoom(ctx context.Context, roomID string) (*domain.Room, uint64, error)
	SaveRoom(ctx context.Context, room *domain.Room, expectedVersion uint64) (uint64, error)
	ListRooms(ctx context.Context) ([]*domain.Room, error)
}

// Config selects and configures a backend.
type Config struct {
	Driver        string
	NATSURL       string
	Bucket        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DBPath        string
	DBDebug       bool
	DatabaseURL   string
}

// NewBackend builds the backend named by cfg.Driver.
func NewBackend(cfg Config) (Backend, error) {
	switch cfg.Driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverJetStream, "":
		return NewJetStreamStore(cfg.NATSURL, cfg.Bucket), nil
	case DriverRedis:
		return NewRedisStore(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}), nil
	case DriverSQLite:
		return NewSQLiteStore(cfg.DBPath, cfg.DBDebug), nil
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres driver requires DATABASE_URL")
		}
		return NewPostgresStore(cfg.DatabaseURL), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Module opens the configured backend on start and closes it on stop.
type Module struct {
	backend Backend
	logger  types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a storage module around backend.
func NewModule(backend Backend, logger types.Logger) *Module {
	return &Module{backend: backend, logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "storage"
}

// Store returns the backend for modules that persist rooms.
func (m *Module) Store() Backend {
	return m.backend
}

// Start opens the backend.
func (m *Module) Start(ctx context.Context) error {
	if err := m.backend.Open(ctx); err != nil {
		return fmt.Errorf("failed to open %s store: %w", m.backend.Driver(), err)
	}
	m.logger.Info("Document store opened", "driver", m.backend.Driver())
	return nil
}

// Stop closes the backend.
func (m *Module) Stop(_ context.Context) error {
	if err := m.backend.Close(); err != nil {
		return fmt.Errorf("failed to close %s store: %w", m.backend.Driver(), err)
	}
	m.logger.Info("Document store closed", "driver", m.backend.Driver())
	return nil
}

// Health pings the backend.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if err := m.backend.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("store ping failed: %v", err),
			Details: map[string]any{"driver": m.backend.Driver()},
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"driver": m.backend.Driver()},
	}
}
