package data

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Settings are the discrete connection settings a provider can turn into a
// connection string. Providers ignore the fields they do not use.
type Settings struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
	SSLMode  string
	Path     string
}

// Provider binds the generic Database to one engine's client library.
type Provider interface {
	// Name is the registry key and the resource URI scheme (e.g. "mysql").
	Name() string

	// DriverName returns the database/sql driver name.
	DriverName() string

	Dialect() Dialect

	SupportStoredProcedures() bool

	// SettingsKey is the configuration section holding this provider's
	// Settings (e.g. "mysql" for MCP_MYSQL_HOST).
	SettingsKey() string

	// ConnectionString builds a connection string from discrete settings.
	ConnectionString(s Settings) (string, error)

	// DataSourceName normalizes a user connection string into the DSN
	// handed to the driver. With readOnly set, the DSN makes every session
	// the driver opens read-only.
	DataSourceName(connStr string, readOnly bool) (string, error)

	// DatabaseName extracts the database name from a connection string.
	DatabaseName(connStr string) string

	// ValidateQuery rejects anything that is not a single read-only query.
	ValidateQuery(query string) error

	PopulateTables(ctx context.Context, q sqlx.QueryerContext, database string) ([]*Table, error)
	PopulateStoredProcedures(ctx context.Context, q sqlx.QueryerContext, database string) ([]*StoredProcedure, error)
	ReadColumns(ctx context.Context, q sqlx.QueryerContext, database string, table *Table) ([]Column, error)
	ReadParameters(ctx context.Context, q sqlx.QueryerContext, database string, proc *StoredProcedure) ([]Parameter, error)
}

// currentDatabaser is implemented by providers that can ask the server for
// the database in use when the connection string does not name one.
type currentDatabaser interface {
	CurrentDatabaseQuery() string
}

// poolConfigurer is implemented by providers that need pool settings other
// than the defaults (e.g. single-writer engines).
type poolConfigurer interface {
	ConfigurePool(db *sqlx.DB)
}

var (
	providersMu sync.RWMutex
	providers   = make(map[string]Provider)
)

// Register makes a provider available by name. It panics if p is nil or a
// provider with the same name is already registered.
func Register(p Provider) {
	providersMu.Lock()
	defer providersMu.Unlock()
	if p == nil {
		panic("data: Register provider is nil")
	}
	if _, dup := providers[p.Name()]; dup {
		panic("data: Register called twice for provider " + p.Name())
	}
	providers[p.Name()] = p
}

// Lookup returns the provider registered under name.
func Lookup(name string) (Provider, error) {
	providersMu.RLock()
	defer providersMu.RUnlock()
	p, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownProvider, name, providerNames())
	}
	return p, nil
}

// Providers returns the sorted names of the registered providers.
func Providers() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	return providerNames()
}

func providerNames() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MissingSettings returns an error listing the names of required settings
// that are empty, or nil when all are present.
func MissingSettings(required map[string]string) error {
	var missing []string
	for name, value := range required {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("missing required settings: %v", missing)
}
