package recordstore

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildFromDSN maps a DSN scheme to a store implementation. An empty DSN
// means in-memory dedup for the lifetime of the process.
func BuildFromDSN(dsn string) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return NewMemoryStore(), nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	scheme := strings.ToLower(strings.TrimSpace(parsed.Scheme))
	switch scheme {
	case "", "memory", "mem", "inmem":
		return NewMemoryStore(), nil
	case "postgres", "postgresql":
		return NewPostgresStore(dsn)
	default:
		return nil, fmt.Errorf("unsupported record store scheme: %s", scheme)
	}
}
