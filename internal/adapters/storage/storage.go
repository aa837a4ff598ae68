// Package storage provides BlobStorage adapters: the key-value stores the
// quote collection is persisted in.
//
// Every adapter maps backend failures to domain.UnavailableError and doubles
// as a ports.HealthChecker so the readiness probe reflects storage health.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jsamuelsen/quotebook/internal/domain"
	"github.com/jsamuelsen/quotebook/internal/ports"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Backend is a BlobStorage that can report its health and be closed.
type Backend interface {
	ports.BlobStorage
	ports.HealthChecker
	io.Closer
}

// Config selects and configures a storage backend.
type Config struct {
	// Driver is one of the Driver* constants.
	Driver string

	// Path is the data directory (file) or database file (sqlite).
	Path string

	// DSN is the connection string for postgres.
	DSN string

	// Breaker guards durable backends. A zero MaxFailures disables it.
	Breaker BreakerConfig

	// Logger receives breaker state changes. Optional.
	Logger *slog.Logger
}

// Open creates the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	var (
		b   Backend
		err error
	)

	switch cfg.Driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverFile:
		b, err = NewFile(cfg.Path)
	case DriverSQLite:
		b, err = OpenSQLite(ctx, cfg.Path)
	case DriverPostgres:
		b, err = OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}

	if err != nil {
		return nil, err
	}

	if cfg.Breaker.MaxFailures > 0 {
		b = NewBreaker(b, cfg.Breaker, cfg.Logger)
	}

	return b, nil
}

// unavailable wraps a backend error as a domain error while keeping the
// cause visible in the message.
func unavailable(driver string, err error) error {
	return domain.WrapUnavailable(driver, err)
}
