package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/adgen/adgen/internal/config"
	"github.com/adgen/adgen/internal/geo"
	"github.com/adgen/adgen/internal/state"
	"github.com/adgen/adgen/internal/testutil"
)

func newTestServer(t *testing.T) (*Server, *http.Client) {
	t.Helper()
	now := time.Date(2025, 11, 2, 1, 4, 13, 0, time.UTC)
	s := &Server{
		Store:      testutil.NewStore(t),
		Live:       config.NewLive(config.Dynamic{SeedSecret: "letmein"}),
		Log:        zerolog.Nop(),
		Now:        func() time.Time { return now },
		BcryptCost: bcrypt.MinCost,
	}
	return s, testutil.NewInProcessClient(s.Handler())
}

func post(t *testing.T, client *http.Client, path string, payload any) (int, map[string]any) {
	t.Helper()
	var body []byte
	switch p := payload.(type) {
	case string:
		body = []byte(p)
	default:
		var err error
		body, err = json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
	}
	return do(t, client, http.MethodPost, path, body)
}

func do(t *testing.T, client *http.Client, method, path string, body []byte) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, "http://in-process"+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return resp.StatusCode, out
}

func TestEventsIngestion(t *testing.T) {
	s, client := newTestServer(t)

	code, got := post(t, client, "/api/events", map[string]any{
		"events": []map[string]any{
			{"event": "product_click", "ts": "2025-11-02T10:00:00", "sessionId": "sess-1", "userId": "u1", "pathname": "/product/p1", "payload": map[string]any{"product_id": "p1"}, "eventLocation": "Berlin, Germany"},
			{"event": "page_view", "sessionId": "sess-1"},
		},
	})
	if code != http.StatusOK || got["ok"] != true {
		t.Fatalf("unexpected response %d %v", code, got)
	}

	rows, err := s.Store.ListEvents(context.Background(), "sess-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	byName := map[string]state.EventRow{}
	for _, r := range rows {
		byName[r.EventName] = r
	}
	click := byName["product_click"]
	if click.EventTime != "2025-11-02 10:00:00" || click.UserID != "u1" || click.Payload != `{"product_id":"p1"}` || click.EventLocation != "Berlin, Germany" {
		t.Fatalf("unexpected click row: %+v", click)
	}
	view := byName["page_view"]
	if view.UserID != "anonymous" || view.Payload != "{}" || view.PathName != "" || view.EventTime != "2025-11-02 01:04:13" {
		t.Fatalf("unexpected defaulted row: %+v", view)
	}

	code, got = post(t, client, "/api/events", "{broken")
	if code != http.StatusBadRequest || got["ok"] != false {
		t.Fatalf("expected 400 for bad json, got %d %v", code, got)
	}
}

func TestEventsIngestionConcurrentBatchesAllStored(t *testing.T) {
	s, client := newTestServer(t)

	const workers, posts, perBatch = 8, 10, 20
	batch := make([]map[string]any, perBatch)
	for i := range batch {
		batch[i] = map[string]any{"event": "page_view", "sessionId": "sess-load"}
	}
	body, err := json.Marshal(map[string]any{"events": batch})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var wg sync.WaitGroup
	var acked atomic.Int64
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range posts {
				req, _ := http.NewRequest(http.MethodPost, "http://in-process/api/events", bytes.NewReader(body))
				resp, err := client.Do(req)
				if err != nil {
					t.Errorf("do: %v", err)
					return
				}
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					acked.Add(perBatch)
				}
			}
		}()
	}
	wg.Wait()

	counts, err := s.Store.CountAnalytics(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if want := acked.Load(); want != workers*posts*perBatch || int64(counts.Events) != want {
		t.Fatalf("acknowledged %d events, stored %d", want, counts.Events)
	}
}

func TestOrdersConvertCentsAndDates(t *testing.T) {
	s, client := newTestServer(t)

	code, got := post(t, client, "/api/orders", map[string]any{
		"user_id":          "u1",
		"session_id":       "sess-1",
		"products_payload": `{"p1":{"quantity":2,"gift":false}}`,
		"paid_amount":      12345,
		"order_date":       "2025-11-02T01:04:13.332Z",
	})
	if code != http.StatusOK || got["ok"] != true {
		t.Fatalf("unexpected response %d %v", code, got)
	}
	orderID, _ := got["order_id"].(string)
	if !strings.HasPrefix(orderID, "ord_") {
		t.Fatalf("unexpected order id %q", orderID)
	}
	row, ok, err := s.Store.GetOrder(context.Background(), orderID)
	if err != nil || !ok {
		t.Fatalf("get order: ok=%v err=%v", ok, err)
	}
	if row.PaidAmount != 123.45 || row.OrderDate != "2025-11-02 01:04:13" || row.ProductsPayload != `{"p1":{"gift":false,"quantity":2}}` {
		t.Fatalf("unexpected order row: %+v", row)
	}

	code, _ = post(t, client, "/api/orders", map[string]any{"order_id": orderID})
	if code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on duplicate order id, got %d", code)
	}
}

func TestUsersSignupAndLogin(t *testing.T) {
	_, client := newTestServer(t)

	code, got := post(t, client, "/api/users", map[string]any{"id": "u1", "email": "a@example.com"})
	if code != http.StatusBadRequest || got["error"] != "email_password_required" {
		t.Fatalf("expected missing password error, got %d %v", code, got)
	}

	code, got = post(t, client, "/api/users", map[string]any{"id": "u1", "email": "a@example.com", "name": "Ada", "password": "pw1", "user_location": "Berlin, Germany"})
	if code != http.StatusOK || got["ok"] != true {
		t.Fatalf("signup failed: %d %v", code, got)
	}

	code, got = post(t, client, "/api/users", map[string]any{"user_id": "u2", "email": "a@example.com", "password": "pw2"})
	if code != http.StatusConflict || got["error"] != "email_exists" {
		t.Fatalf("expected email_exists, got %d %v", code, got)
	}

	code, got = post(t, client, "/api/auth/login", map[string]any{"email": "a@example.com", "password": "wrong"})
	if code != http.StatusUnauthorized || got["error"] != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %d %v", code, got)
	}
	code, got = post(t, client, "/api/auth/login", map[string]any{"email": "nobody@example.com", "password": "x"})
	if code != http.StatusUnauthorized || got["error"] != "user_not_found" {
		t.Fatalf("expected user_not_found, got %d %v", code, got)
	}
	code, got = post(t, client, "/api/auth/login", map[string]any{"email": "a@example.com", "password": "pw1"})
	if code != http.StatusOK {
		t.Fatalf("login failed: %d %v", code, got)
	}
	user, _ := got["user"].(map[string]any)
	if user["id"] != "u1" || user["name"] != "Ada" || user["email"] != "a@example.com" {
		t.Fatalf("unexpected user payload: %v", got)
	}
}

func TestLoginPasswordNotSet(t *testing.T) {
	s, client := newTestServer(t)
	if err := s.Store.SetDoc(context.Background(), usersCollection, "u9", map[string]any{"email": "legacy@example.com"}, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	code, got := post(t, client, "/api/auth/login", map[string]any{"email": "legacy@example.com", "password": "x"})
	if code != http.StatusUnauthorized || got["error"] != "password_not_set" {
		t.Fatalf("expected password_not_set, got %d %v", code, got)
	}
}

func TestUserLocationMerge(t *testing.T) {
	s, client := newTestServer(t)
	ctx := context.Background()
	if err := s.Store.SetDoc(ctx, usersCollection, "u1", map[string]any{"email": "a@example.com"}, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	code, _ := post(t, client, "/api/users/location", map[string]any{"id": "u1"})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	code, _ = post(t, client, "/api/users/location", map[string]any{"id": "u1", "user_location": "Tokyo, Japan"})
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	doc, _, err := s.Store.GetDoc(ctx, usersCollection, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.String("user_location") != "Tokyo, Japan" || doc.String("email") != "a@example.com" {
		t.Fatalf("unexpected merged user: %v", doc.Data)
	}
}

func TestSeedProductsRequiresSecret(t *testing.T) {
	s, client := newTestServer(t)
	code, _ := post(t, client, "/api/admin/seed-products?secret=nope", map[string]any{})
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
	code, got := post(t, client, "/api/admin/seed-products?secret=letmein", map[string]any{})
	if code != http.StatusOK || got["count"] != float64(100) {
		t.Fatalf("unexpected seed response %d %v", code, got)
	}
	n, err := s.Store.CountDocs(context.Background(), "products_numbers")
	if err != nil || n != 100 {
		t.Fatalf("expected 100 counters, got %d err=%v", n, err)
	}
}

func TestAdImageLookup(t *testing.T) {
	s, client := newTestServer(t)
	ctx := context.Background()

	code, got := post(t, client, "/api/ad-image", map[string]any{})
	if code != http.StatusBadRequest || got["error"] != "user_id_required" {
		t.Fatalf("expected user_id_required, got %d %v", code, got)
	}

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	must(s.Store.SetDoc(ctx, usersCollection, "u1", map[string]any{"user_location": "New York, United States"}, false))

	code, got = post(t, client, "/api/ad-image", map[string]any{"user_id": "u1"})
	if code != http.StatusNotFound || got["error"] != "missing_segmentation_or_city" || got["city"] != "New York" {
		t.Fatalf("expected missing segmentation, got %d %v", code, got)
	}

	must(s.Store.SetDoc(ctx, "user_segmentations", "seg-row-1", map[string]any{"user_id": "u1", "segmentation_result": "Tech Enthusiast"}, false))
	code, got = post(t, client, "/api/ad-image", map[string]any{"user_id": "u1"})
	if code != http.StatusNotFound || got["docId"] != "Tech_Enthusiast_New_York_United_States" {
		t.Fatalf("expected image_not_found with normalised doc id, got %d %v", code, got)
	}

	must(s.Store.SetDoc(ctx, "segmentations", "other-id", map[string]any{
		"segmentation_name": "Tech Enthusiast", "city": "New York", "country": "United States", "imageUrl": "https://cdn/ny.png",
	}, false))
	code, got = post(t, client, "/api/ad-image", map[string]any{"user_id": "u1"})
	if code != http.StatusOK || got["imageUrl"] != "https://cdn/ny.png" {
		t.Fatalf("expected field query fallback hit, got %d %v", code, got)
	}

	must(s.Store.SetDoc(ctx, "segmentations", "Tech_Enthusiast_New_York_United_States", map[string]any{"imageUrl": "https://cdn/direct.png"}, false))
	code, got = post(t, client, "/api/ad-image", map[string]any{"id": "u1"})
	if code != http.StatusOK || got["imageUrl"] != "https://cdn/direct.png" {
		t.Fatalf("expected direct doc hit, got %d %v", code, got)
	}
}

func TestSegmentationDocID(t *testing.T) {
	if got := SegmentationDocID(" Budget/Shopper ", "São Paulo", "Brazil, South America"); got != "Budget_Shopper_São_Paulo_Brazil_South_America" {
		t.Fatalf("unexpected doc id %q", got)
	}
}

func TestCatalogReads(t *testing.T) {
	_, client := newTestServer(t)

	code, got := do(t, client, http.MethodGet, "/api/categories", nil)
	if code != http.StatusOK || len(got["categories"].([]any)) != 10 {
		t.Fatalf("unexpected categories response %d %v", code, got)
	}
	code, got = do(t, client, http.MethodGet, "/api/categories/pets", nil)
	if code != http.StatusOK || len(got["products"].([]any)) != 10 {
		t.Fatalf("unexpected category response %d", code)
	}
	code, _ = do(t, client, http.MethodGet, "/api/categories/nope", nil)
	if code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown category, got %d", code)
	}
	code, got = do(t, client, http.MethodGet, "/api/products?category=books", nil)
	if code != http.StatusOK || len(got["products"].([]any)) != 10 {
		t.Fatalf("unexpected filtered products %d", code)
	}
	products := got["products"].([]any)
	id := products[0].(map[string]any)["id"].(string)
	code, got = do(t, client, http.MethodGet, "/api/products/"+id, nil)
	if code != http.StatusOK || got["product"].(map[string]any)["id"] != id {
		t.Fatalf("unexpected product response %d %v", code, got)
	}
}

func TestGeoUsesForwardedIP(t *testing.T) {
	var gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"city":"Berlin","country_name":"Germany"}`))
	}))
	defer upstream.Close()

	s, client := newTestServer(t)
	s.Geo = &geo.Resolver{Endpoints: []string{upstream.URL + "/lookup/{ip}"}, Log: zerolog.Nop()}

	req, _ := http.NewRequest(http.MethodGet, "http://in-process/api/geo", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	var got struct {
		OK       bool         `json:"ok"`
		Location geo.Location `json:"location"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.OK || got.Location.CityCountry != "Berlin, Germany" || got.Location.Segment != "eu" {
		t.Fatalf("unexpected geo response: %+v", got)
	}
	if gotPath != "/lookup/203.0.113.7" {
		t.Fatalf("unexpected upstream path %q", gotPath)
	}
}

func TestGeoIgnoresSpoofedNonIPHeaders(t *testing.T) {
	var calls atomic.Int32
	var gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"city":"Berlin","country_name":"Germany"}`))
	}))
	defer upstream.Close()

	s, client := newTestServer(t)
	s.Geo = &geo.Resolver{Endpoints: []string{upstream.URL + "/lookup/{ip}"}, Log: zerolog.Nop()}

	for i := range 20 {
		req, _ := http.NewRequest(http.MethodGet, "http://in-process/api/geo", nil)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("xa/../../admin?i=%d", i))
		code, got := func() (int, map[string]any) {
			resp, err := client.Do(req)
			if err != nil {
				t.Fatalf("do: %v", err)
			}
			defer resp.Body.Close()
			var out map[string]any
			_ = json.NewDecoder(resp.Body).Decode(&out)
			return resp.StatusCode, out
		}()
		if code != http.StatusBadRequest || got["error"] != "invalid_ip" {
			t.Fatalf("expected 400 invalid_ip, got %d %v", code, got)
		}
	}
	if calls.Load() != 0 {
		t.Fatalf("spoofed values reached upstream %d times", calls.Load())
	}

	req, _ := http.NewRequest(http.MethodGet, "http://in-process/api/geo", nil)
	req.Header.Set("X-Forwarded-For", "not-an-ip")
	req.Header.Set("X-Real-Ip", "198.51.100.9")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || gotPath != "/lookup/198.51.100.9" {
		t.Fatalf("expected fallback to X-Real-Ip, got %d path %q", resp.StatusCode, gotPath)
	}
}
