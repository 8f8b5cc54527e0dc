package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultTTL        = 12 * time.Hour
	DefaultMaxEntries = 10000
)

// DefaultEndpoints are tried in order; "{ip}" is replaced by the address
// being looked up.
var DefaultEndpoints = []string{
	"https://ipapi.co/{ip}/json/",
	"https://ipwho.is/{ip}",
	"https://ipinfo.io/{ip}/json",
}

var (
	ErrUnresolved = errors.New("location unresolved")
	ErrInvalidIP  = errors.New("invalid ip address")
)

type Location struct {
	City        string    `json:"city"`
	Country     string    `json:"country"`
	CityCountry string    `json:"cityCountry"`
	Segment     string    `json:"segment"`
	ResolvedAt  time.Time `json:"resolvedAt"`
}

// Resolver maps client IPs to "City, Country" with a per-IP cache.
type Resolver struct {
	Endpoints []string
	HTTP      *http.Client
	TTL       time.Duration
	Log       zerolog.Logger
	Now       func() time.Time
	// MaxEntries bounds the cache; defaults to DefaultMaxEntries.
	MaxEntries int

	mu    sync.Mutex
	cache map[string]Location
}

// Lookup resolves ip, which must be a literal IPv4 or IPv6 address.
func (r *Resolver) Lookup(ctx context.Context, ip string) (Location, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return Location{}, ErrInvalidIP
	}
	ip = addr.Unmap().String()

	now := r.now()
	r.mu.Lock()
	if loc, ok := r.cache[ip]; ok && now.Sub(loc.ResolvedAt) < r.ttl() {
		r.mu.Unlock()
		return loc, nil
	}
	r.mu.Unlock()

	endpoints := r.Endpoints
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints
	}
	for _, ep := range endpoints {
		loc, err := r.fetch(ctx, strings.ReplaceAll(ep, "{ip}", ip))
		if err != nil {
			r.Log.Debug().Err(err).Str("endpoint", ep).Msg("geo endpoint failed")
			continue
		}
		loc.ResolvedAt = now
		r.store(ip, loc, now)
		return loc, nil
	}
	return Location{}, ErrUnresolved
}

// store caches loc, first dropping expired entries and then, if still full,
// the oldest one.
func (r *Resolver) store(ip string, loc Location, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache == nil {
		r.cache = map[string]Location{}
	}
	if _, ok := r.cache[ip]; !ok && len(r.cache) >= r.maxEntries() {
		ttl := r.ttl()
		oldestIP, oldest := "", now
		for k, v := range r.cache {
			if now.Sub(v.ResolvedAt) >= ttl {
				delete(r.cache, k)
				continue
			}
			if v.ResolvedAt.Before(oldest) || oldestIP == "" {
				oldestIP, oldest = k, v.ResolvedAt
			}
		}
		if len(r.cache) >= r.maxEntries() {
			delete(r.cache, oldestIP)
		}
	}
	r.cache[ip] = loc
}

func (r *Resolver) cacheLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

type lookupResponse struct {
	City        string `json:"city"`
	Town        string `json:"town"`
	Region      string `json:"region"`
	CountryName string `json:"country_name"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
}

func (r *Resolver) fetch(ctx context.Context, url string) (Location, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Location{}, err
	}
	client := r.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Location{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("decode: %w", err)
	}
	city := firstNonEmpty(body.City, body.Town, body.Region)
	country := firstNonEmpty(body.CountryName, body.Country, body.CountryCode)
	cc := JoinCityCountry(city, country)
	if cc == "" {
		return Location{}, ErrUnresolved
	}
	return Location{City: city, Country: country, CityCountry: cc, Segment: Segment(cc)}, nil
}

func (r *Resolver) ttl() time.Duration {
	if r.TTL > 0 {
		return r.TTL
	}
	return DefaultTTL
}

func (r *Resolver) maxEntries() int {
	if r.MaxEntries > 0 {
		return r.MaxEntries
	}
	return DefaultMaxEntries
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func JoinCityCountry(city, country string) string {
	city, country = strings.TrimSpace(city), strings.TrimSpace(country)
	if city != "" && country != "" {
		return city + ", " + country
	}
	return city + country
}

// SplitCityCountry splits "City, Country"; missing parts come back empty.
func SplitCityCountry(v string) (city, country string) {
	city, country, _ = strings.Cut(v, ",")
	return strings.TrimSpace(city), strings.TrimSpace(country)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
