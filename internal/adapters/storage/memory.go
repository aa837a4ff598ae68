package storage

import (
	"context"
	"sync"
)

// Memory is an in-process BlobStorage. Blobs live as long as the process.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string]string
}

// NewMemory creates an empty in-memory storage.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string]string)}
}

// Get returns the blob stored at key.
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, unavailable(DriverMemory, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.blobs[key]

	return v, ok, nil
}

// Set stores value at key.
func (m *Memory) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return unavailable(DriverMemory, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[key] = value

	return nil
}

// Name implements ports.HealthChecker.
func (m *Memory) Name() string { return DriverMemory }

// Check implements ports.HealthChecker. Memory storage is always healthy.
func (m *Memory) Check(context.Context) error { return nil }

// Close implements io.Closer.
func (m *Memory) Close() error { return nil }
