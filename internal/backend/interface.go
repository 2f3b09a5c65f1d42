package backend

import (
	"context"
	"time"

	"activitylog/internal/auth"
	"activitylog/internal/records"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// ReadyFunc reports whether the backend can serve requests.
type ReadyFunc func(ctx context.Context) error

// BackendResult contains the record store, the user store that goes with it
// and optional probe and cleanup functions.
type BackendResult struct {
	Store   records.Store
	Users   auth.UserStore
	Ready   ReadyFunc
	Cleanup CleanupFunc
}

// Close runs Cleanup when the backend has one.
func (r *BackendResult) Close() error {
	if r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory specific. SeedFile wins over SeedGenerate.
	SeedFile     string
	SeedGenerate int

	// Remote specific
	RemoteAPIURL  string
	RemoteTimeout time.Duration
	RemoteRetries int
	RemoteToken   string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
	RemoteBackend BackendType = "remote"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend, RemoteBackend:
		return true
	default:
		return false
	}
}
