package storefront

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/adgen/adgen/internal/config"
	"github.com/adgen/adgen/internal/geo"
	"github.com/adgen/adgen/internal/state"
)

const (
	bqTimeLayout  = "2006-01-02 15:04:05"
	isoTimeLayout = "2006-01-02T15:04:05"
)

// Server is the e-commerce backend: analytics ingestion, accounts, the
// product catalog and personalised ad lookup.
type Server struct {
	Store *state.Store
	Geo   *geo.Resolver
	Live  *config.Live
	Log   zerolog.Logger
	Now   func() time.Time

	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/orders", s.handleOrders)
	mux.HandleFunc("/api/users", s.handleUsers)
	mux.HandleFunc("/api/users/location", s.handleUserLocation)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/admin/seed-products", s.handleSeedProducts)
	mux.HandleFunc("/api/ad-image", s.handleAdImage)
	mux.HandleFunc("/api/categories", s.handleCategories)
	mux.HandleFunc("/api/categories/", s.handleCategory)
	mux.HandleFunc("/api/products", s.handleProducts)
	mux.HandleFunc("/api/products/", s.handleProduct)
	mux.HandleFunc("/api/geo", s.handleGeo)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": s.now().UTC()})
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) bcryptCost() int {
	if s.BcryptCost != 0 {
		return s.BcryptCost
	}
	return bcrypt.DefaultCost
}

func (s *Server) seedSecret() string {
	if s.Live == nil {
		return config.DefaultSeedSecret
	}
	if v := s.Live.Get().SeedSecret; v != "" {
		return v
	}
	return config.DefaultSeedSecret
}

// decodeBody decodes a JSON object keeping numbers as json.Number.
func decodeBody(body io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// str renders a loosely typed JSON value; empty, zero, false and missing
// values yield def.
func str(v any, def string) string {
	switch t := v.(type) {
	case nil:
		return def
	case string:
		if t == "" {
			return def
		}
		return t
	case bool:
		if !t {
			return def
		}
		return "true"
	case json.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return def
		}
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// clientIP picks the first forwarding header value that parses as an IP
// address, then the connection's remote address. It returns "" when none
// qualify.
func clientIP(r *http.Request) string {
	candidates := make([]string, 0, 3)
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		candidates = append(candidates, first)
	}
	candidates = append(candidates, r.Header.Get("X-Real-Ip"))
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		candidates = append(candidates, host)
	} else {
		candidates = append(candidates, r.RemoteAddr)
	}
	for _, c := range candidates {
		if ip := net.ParseIP(strings.TrimSpace(c)); ip != nil {
			return ip.String()
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeFail(w http.ResponseWriter, status int, code string) {
	body := map[string]any{"ok": false}
	if code != "" {
		body["error"] = code
	}
	writeJSON(w, status, body)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
}
