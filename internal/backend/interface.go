package backend

import (
	"context"
	"time"

	"cashflow/internal/prefs"
	"cashflow/internal/remote"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the remote collaborators, the preference store and a
// cleanup function releasing whatever the factory opened.
type Result struct {
	Remote  remote.Backend
	Prefs   prefs.Store
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Remote RemoteType
	Prefs  PrefsType

	// api specific
	APIBaseURL string
	APITimeout time.Duration

	// memory specific
	FixturePath string

	// sqlite specific
	PrefsDBPath string
}

// RemoteType selects where financial records are read from.
type RemoteType string

const (
	APIRemote    RemoteType = "api"
	MemoryRemote RemoteType = "memory"
)

// String implements fmt.Stringer
func (rt RemoteType) String() string {
	return string(rt)
}

// IsValid returns true if the remote type is valid
func (rt RemoteType) IsValid() bool {
	switch rt {
	case APIRemote, MemoryRemote:
		return true
	default:
		return false
	}
}

// PrefsType selects where UI preferences persist.
type PrefsType string

const (
	SQLitePrefs PrefsType = "sqlite"
	MemoryPrefs PrefsType = "memory"
)

func (pt PrefsType) String() string {
	return string(pt)
}

func (pt PrefsType) IsValid() bool {
	switch pt {
	case SQLitePrefs, MemoryPrefs:
		return true
	default:
		return false
	}
}
