package geo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSegment(t *testing.T) {
	cases := map[string]string{
		"Austin, United States":  "us",
		"Berlin, Germany":        "eu",
		"Prague, Czech Republic": "eu",
		"Istanbul, Türkiye":      "other",
		"":                       "other",
		"us":                     "us",
	}
	for in, want := range cases {
		if got := Segment(in); got != want {
			t.Fatalf("Segment(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitAndJoin(t *testing.T) {
	city, country := SplitCityCountry(" Paris ,  France ")
	if city != "Paris" || country != "France" {
		t.Fatalf("unexpected split %q %q", city, country)
	}
	if JoinCityCountry("", "France") != "France" || JoinCityCountry("Paris", "France") != "Paris, France" {
		t.Fatalf("unexpected join")
	}
}

func TestResolverFallsBackAndCaches(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/down/", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})
	mux.HandleFunc("/up/", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"ip":"1.2.3.4","city":"Berlin","country_name":"Germany"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	now := time.Unix(0, 0)
	r := &Resolver{
		Endpoints: []string{srv.URL + "/down/{ip}", srv.URL + "/up/{ip}"},
		Log:       zerolog.Nop(),
		Now:       func() time.Time { return now },
	}
	loc, err := r.Lookup(context.Background(), "1.2.3.4")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if loc.CityCountry != "Berlin, Germany" || loc.Segment != "eu" {
		t.Fatalf("unexpected location %+v", loc)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected fallback, calls=%d", calls.Load())
	}

	if _, err := r.Lookup(context.Background(), "1.2.3.4"); err != nil {
		t.Fatalf("cached lookup: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected cache hit, calls=%d", calls.Load())
	}

	now = now.Add(DefaultTTL + time.Second)
	if _, err := r.Lookup(context.Background(), "1.2.3.4"); err != nil {
		t.Fatalf("expired lookup: %v", err)
	}
	if calls.Load() != 4 {
		t.Fatalf("expected refresh after ttl, calls=%d", calls.Load())
	}
}

func TestResolverUnresolved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	r := &Resolver{Endpoints: []string{srv.URL}, Log: zerolog.Nop()}
	if _, err := r.Lookup(context.Background(), "5.6.7.8"); !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected unresolved, got %v", err)
	}
}

func TestResolverRejectsNonIP(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"city":"Berlin","country_name":"Germany"}`))
	}))
	defer srv.Close()

	r := &Resolver{Endpoints: []string{srv.URL + "/{ip}/json"}, Log: zerolog.Nop()}
	for _, ip := range []string{"", "xa/../../admin?i=0", "localhost", "1.2.3.4/24"} {
		if _, err := r.Lookup(context.Background(), ip); !errors.Is(err, ErrInvalidIP) {
			t.Fatalf("Lookup(%q): expected ErrInvalidIP, got %v", ip, err)
		}
	}
	if calls.Load() != 0 || r.cacheLen() != 0 {
		t.Fatalf("invalid input reached upstream: calls=%d cache=%d", calls.Load(), r.cacheLen())
	}
}

func TestResolverCacheIsBounded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"city":"Berlin","country_name":"Germany"}`))
	}))
	defer srv.Close()

	now := time.Unix(0, 0)
	r := &Resolver{
		Endpoints:  []string{srv.URL + "/{ip}"},
		Log:        zerolog.Nop(),
		Now:        func() time.Time { return now },
		MaxEntries: 4,
	}
	for i := range 10 {
		now = now.Add(time.Second)
		if _, err := r.Lookup(context.Background(), fmt.Sprintf("10.0.0.%d", i)); err != nil {
			t.Fatalf("lookup: %v", err)
		}
	}
	if got := r.cacheLen(); got != 4 {
		t.Fatalf("expected cache capped at 4, got %d", got)
	}

	now = now.Add(DefaultTTL + time.Second)
	if _, err := r.Lookup(context.Background(), "10.0.1.1"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got := r.cacheLen(); got != 1 {
		t.Fatalf("expected expired entries pruned, got %d", got)
	}
}
