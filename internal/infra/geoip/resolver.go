// Package geoip maps client addresses to ISO country codes using a MaxMind
// GeoIP2 country database.
package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/patrickmn/go-cache"

	"studio/internal/infra"
)

var ErrUnavailable = errors.New("geoip: resolver unavailable")

// countryReader is the part of *geoip2.Reader the resolver uses.
type countryReader interface {
	Country(ip net.IP) (*geoip2.Country, error)
	Close() error
}

// Options configures a Resolver.
type Options struct {
	// CacheTTL keeps answers per address. Zero means ten minutes.
	CacheTTL time.Duration
	Logger   *infra.Logger
}

// Resolver answers country lookups for the locale middleware. Private and
// loopback addresses resolve to "" without touching the database.
type Resolver struct {
	db     countryReader
	seen   *cache.Cache
	logger *infra.Logger
}

// NewResolver opens the database at path. An empty path disables lookups and
// returns a nil Resolver.
func NewResolver(path string, opts Options) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return newResolver(reader, opts), nil
}

func newResolver(db countryReader, opts Options) *Resolver {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Resolver{db: db, seen: cache.New(ttl, 2*ttl), logger: logger}
}

// CountryCode returns the upper-case ISO code for ip, or "" when the
// database has no country for it.
func (r *Resolver) CountryCode(ip string) (string, error) {
	if r == nil || r.db == nil {
		return "", ErrUnavailable
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "", fmt.Errorf("geoip: invalid ip %q", ip)
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return "", nil
	}
	key := parsed.String()
	if v, ok := r.seen.Get(key); ok {
		return v.(string), nil
	}
	record, err := r.db.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup %s: %w", key, err)
	}
	code := ""
	if record != nil {
		code = strings.ToUpper(record.Country.IsoCode)
	}
	r.seen.SetDefault(key, code)
	r.logger.Debug().Str("ip", key).Str("country", code).Msg("geoip: resolved")
	return code, nil
}

func (r *Resolver) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
