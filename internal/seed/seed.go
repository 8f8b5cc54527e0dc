package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/adgen/adgen/internal/catalog"
	"github.com/adgen/adgen/internal/idgen"
	"github.com/adgen/adgen/internal/state"
)

const (
	DefaultTotalUsers  = 1026
	DefaultOrderChance = 0.20
	DefaultAnonCount   = 3000
	DefaultUSShare     = 0.50
	DefaultEUShare     = 0.40
	DefaultOtherShare  = 0.10

	// DemoPassword is the plaintext shared by every seeded account.
	DemoPassword = "adgen-demo-pass"

	minSessionsPerUser = 1
	maxSessionsPerUser = 10
	eventBatchSize     = 2000
	userBatchSize      = 500
	timeLayout         = "2006-01-02 15:04:05"
)

// Params controls one seeding run. Zero values fall back to the defaults.
type Params struct {
	TotalUsers  int     `json:"totalUsers,omitempty"`
	OrderChance float64 `json:"orderChance,omitempty"`
	AnonCount   int     `json:"anonCount,omitempty"`
	USShare     float64 `json:"usShare,omitempty"`
	EUShare     float64 `json:"euShare,omitempty"`
	OtherShare  float64 `json:"otherShare,omitempty"`
	// Seed makes the run reproducible; zero picks a time based seed.
	Seed uint64 `json:"seed,omitempty"`
}

// Normalize fills defaults and rescales the location shares to sum to one.
func (p Params) Normalize() Params {
	if p.TotalUsers <= 0 {
		p.TotalUsers = DefaultTotalUsers
	}
	if p.OrderChance <= 0 || p.OrderChance > 1 {
		p.OrderChance = DefaultOrderChance
	}
	if p.AnonCount < 0 {
		p.AnonCount = 0
	} else if p.AnonCount == 0 {
		p.AnonCount = DefaultAnonCount
	}
	if p.USShare < 0 {
		p.USShare = 0
	}
	if p.EUShare < 0 {
		p.EUShare = 0
	}
	if p.OtherShare < 0 {
		p.OtherShare = 0
	}
	sum := p.USShare + p.EUShare + p.OtherShare
	if sum == 0 {
		p.USShare, p.EUShare, p.OtherShare = DefaultUSShare, DefaultEUShare, DefaultOtherShare
		sum = 1
	}
	p.USShare /= sum
	p.EUShare /= sum
	p.OtherShare /= sum
	return p
}

type Report struct {
	Users          int    `json:"users"`
	Sessions       int    `json:"sessions"`
	AnonSessions   int    `json:"anonSessions"`
	Events         int    `json:"events"`
	Orders         int    `json:"orders"`
	Products       int    `json:"products"`
	LocationCounts [3]int `json:"locationCounts"`
	Output         string `json:"output"`
}

type Seeder struct {
	Store *state.Store
	Log   zerolog.Logger
	Now   func() time.Time
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

type user struct {
	id         string
	email      string
	name       string
	location   string
	createdAt  time.Time
	categories []string
}

type run struct {
	rng    *rand.Rand
	now    time.Time
	params Params
	seq    int
	out    strings.Builder
	report Report
}

func (r *run) logf(format string, args ...any) {
	fmt.Fprintf(&r.out, format+"\n", args...)
}

func (r *run) intn(lo, hi int) int {
	return lo + r.rng.IntN(hi-lo+1)
}

func (r *run) chance(p float64) bool {
	return r.rng.Float64() < p
}

func (r *run) between(from, to time.Time) time.Time {
	span := to.Sub(from)
	if span <= 0 {
		return from
	}
	return from.Add(time.Duration(r.rng.Int64N(int64(span))))
}

func (r *run) eventID(t time.Time) string {
	r.seq++
	return fmt.Sprintf("%d%07d", t.UnixMilli(), r.seq)
}

// Run generates users, sessions, events and orders and writes them to the store.
func (s *Seeder) Run(ctx context.Context, p Params) (Report, error) {
	if s.Store == nil {
		return Report{}, fmt.Errorf("seed: store is required")
	}
	p = p.Normalize()
	nowFn := s.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn()
	seed := p.Seed
	if seed == 0 {
		seed = uint64(now.UnixNano())
	}
	r := &run{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), now: now, params: p}

	products, err := SeedProducts(ctx, s.Store)
	if err != nil {
		return Report{}, err
	}
	r.report.Products = products
	r.logf("catalog: %d products", products)

	cost := s.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
	if err != nil {
		return Report{}, fmt.Errorf("hash demo password: %w", err)
	}

	users := make([]user, p.TotalUsers)
	for i := range users {
		users[i] = r.newUser(i)
	}
	r.report.Users = len(users)
	r.logf("users: %d (us=%d eu=%d other=%d)", len(users),
		r.report.LocationCounts[0], r.report.LocationCounts[1], r.report.LocationCounts[2])

	for start := 0; start < len(users); start += userBatchSize {
		end := min(start+userBatchSize, len(users))
		writes := make([]state.DocWrite, 0, end-start)
		for _, u := range users[start:end] {
			writes = append(writes, state.DocWrite{
				Collection: "users",
				ID:         u.id,
				Merge:      true,
				Data: map[string]any{
					"user_id":        u.id,
					"email":          u.email,
					"name":           u.name,
					"hashedPassword": string(hash),
					"user_location":  u.location,
					"createdAt":      u.createdAt.UTC().Format(timeLayout),
				},
			})
		}
		if err := s.Store.SetDocs(ctx, writes); err != nil {
			return Report{}, fmt.Errorf("write users: %w", err)
		}
	}

	var events []state.EventRow
	var orders []state.OrderRow
	for _, u := range users {
		sessions := r.intn(minSessionsPerUser, maxSessionsPerUser)
		for i := 0; i < sessions; i++ {
			sessionID := idgen.New()
			if i == 0 {
				events = append(events, r.signupFlow(u, sessionID)...)
				r.report.Sessions++
				continue
			}
			from := u.createdAt.Add(time.Hour)
			if from.After(now) {
				continue
			}
			evs, order := r.shoppingFlow(u.id, sessionID, u.location, r.between(from, now), r.chance(p.OrderChance), u.categories)
			events = append(events, evs...)
			if order != nil {
				orders = append(orders, *order)
			}
			r.report.Sessions++
		}
	}
	r.logf("signed-in sessions: %d, orders: %d", r.report.Sessions, len(orders))

	anonLocations := allLocations()
	for i := 0; i < p.AnonCount; i++ {
		loc := anonLocations[r.rng.IntN(len(anonLocations))]
		start := r.between(now.Add(-30*24*time.Hour), now)
		evs, _ := r.shoppingFlow("", idgen.New(), loc, start, false, nil)
		events = append(events, evs...)
	}
	r.report.AnonSessions = p.AnonCount
	r.logf("anonymous sessions: %d", p.AnonCount)

	for _, o := range orders {
		if err := s.Store.InsertOrder(ctx, o); err != nil {
			return Report{}, err
		}
	}
	for start := 0; start < len(events); start += eventBatchSize {
		end := min(start+eventBatchSize, len(events))
		if err := s.Store.InsertEvents(ctx, events[start:end]); err != nil {
			return Report{}, err
		}
	}
	r.report.Events = len(events)
	r.report.Orders = len(orders)
	r.logf("wrote %d events and %d orders", len(events), len(orders))
	s.Log.Info().Int("users", r.report.Users).Int("events", r.report.Events).Int("orders", r.report.Orders).Msg("seed complete")

	r.report.Output = r.out.String()
	return r.report, nil
}

func (r *run) newUser(i int) user {
	var loc string
	switch x := r.rng.Float64(); {
	case x < r.params.USShare:
		loc = usCities[r.rng.IntN(len(usCities))] + ", United States"
		r.report.LocationCounts[0]++
	case x < r.params.USShare+r.params.EUShare:
		c := euCities[r.rng.IntN(len(euCities))]
		loc = c.city + ", " + c.country
		r.report.LocationCounts[1]++
	default:
		c := otherCities[r.rng.IntN(len(otherCities))]
		loc = c.city + ", " + c.country
		r.report.LocationCounts[2]++
	}
	first := firstNames[r.rng.IntN(len(firstNames))]
	last := lastNames[r.rng.IntN(len(lastNames))]
	cats := catalog.Categories()
	primary := cats[r.rng.IntN(len(cats))].Slug
	userCats := []string{primary}
	if r.chance(0.30) {
		for {
			second := cats[r.rng.IntN(len(cats))].Slug
			if second != primary {
				userCats = append(userCats, second)
				break
			}
		}
	}
	return user{
		id:         "user_" + idgen.New(),
		email:      strings.ToLower(fmt.Sprintf("%s.%s%d@example.com", first, last, i)),
		name:       first + " " + last,
		location:   loc,
		createdAt:  r.between(r.now.Add(-90*24*time.Hour), r.now),
		categories: userCats,
	}
}

type flow struct {
	r         *run
	sessionID string
	userID    string
	location  string
	at        time.Time
	events    []state.EventRow
}

func (f *flow) add(name string, payload map[string]any, delay int, userID string) {
	f.at = f.at.Add(time.Duration(delay) * time.Second)
	if payload == nil {
		payload = map[string]any{}
	}
	raw, _ := json.Marshal(payload)
	f.events = append(f.events, state.EventRow{
		EventID:       f.r.eventID(f.at),
		SessionID:     f.sessionID,
		UserID:        userID,
		EventName:     name,
		EventTime:     f.at.UTC().Format(timeLayout),
		PathName:      pathFor(name, payload),
		Payload:       string(raw),
		EventLocation: f.location,
	})
}

func pathFor(name string, payload map[string]any) string {
	switch {
	case strings.Contains(name, "signup") || strings.Contains(name, "login"):
		return "/signup"
	case strings.Contains(name, "product") && payload["product_id"] != nil:
		return fmt.Sprintf("/product/%v", payload["product_id"])
	case strings.Contains(name, "category"):
		if c, ok := payload["category"]; ok {
			return fmt.Sprintf("/category/%v", c)
		}
		return "/category/general"
	case strings.Contains(name, "cart"):
		return "/cart"
	}
	return "/"
}

// signupFlow browses anonymously and switches to the user id at signup.
func (r *run) signupFlow(u user, sessionID string) []state.EventRow {
	f := &flow{r: r, sessionID: sessionID, location: u.location, at: u.createdAt}
	const anon = "anonymous"
	f.add("page_view", map[string]any{"pathname": "/"}, 0, anon)
	if r.chance(0.70) {
		all := catalog.Categories()
		cat := all[r.rng.IntN(len(all))].Slug
		f.add("category_click", map[string]any{"category": cat, "slug": cat}, r.intn(3, 10), anon)
		f.add("page_view", map[string]any{"pathname": "/category/" + cat}, r.intn(2, 5), anon)
	}
	f.add("auth_signup_click", nil, r.intn(5, 15), anon)
	f.add("page_view", map[string]any{"pathname": "/signup"}, r.intn(1, 2), anon)
	f.add("auth_signup_success", map[string]any{"email": u.email, "name": u.name}, r.intn(20, 60), u.id)
	if r.chance(0.60) {
		f.add("page_view", map[string]any{"pathname": "/"}, r.intn(2, 5), u.id)
	}
	return f.events
}

type cartLine struct {
	Quantity int  `json:"quantity"`
	Gift     bool `json:"gift"`
}

// shoppingFlow browses categories and products and may end in an order.
// An empty userID produces an anonymous session that never orders.
func (r *run) shoppingFlow(userID, sessionID, location string, start time.Time, shouldOrder bool, cats []string) ([]state.EventRow, *state.OrderRow) {
	who := userID
	if who == "" {
		who = "anonymous"
	}
	f := &flow{r: r, sessionID: sessionID, location: location, at: start}
	f.add("page_view", map[string]any{"pathname": "/"}, 0, who)

	if len(cats) == 0 {
		all := catalog.Categories()
		for _, i := range r.rng.Perm(len(all))[:r.intn(1, 3)] {
			cats = append(cats, all[i].Slug)
		}
	}

	cart := map[string]*cartLine{}
	var cartOrder []string
	for _, slug := range cats {
		f.add("category_click", map[string]any{"category": slug, "slug": slug}, r.intn(2, 15), who)
		f.add("page_view", map[string]any{"pathname": "/category/" + slug}, r.intn(1, 3), who)

		var pool []catalog.Product
		for _, p := range catalog.Products() {
			if p.CategoryID == "cat-"+slug || r.chance(0.3) {
				pool = append(pool, p)
			}
		}
		n := min(r.intn(1, 5), len(pool))
		for _, i := range r.rng.Perm(len(pool))[:n] {
			p := pool[i]
			f.add("product_click", map[string]any{"product_id": p.ID}, r.intn(2, 15), who)
			f.add("page_view", map[string]any{"pathname": "/product/" + p.ID}, r.intn(2, 5), who)
			if r.chance(0.20) {
				f.add("product_share", map[string]any{"product_id": p.ID}, r.intn(1, 3), who)
			}
			if r.chance(0.60) {
				qty := r.intn(1, 3)
				f.add("cart_add", map[string]any{"product_id": p.ID, "quantity": qty}, r.intn(1, 4), who)
				line, ok := cart[p.ID]
				if !ok {
					line = &cartLine{Gift: r.chance(0.15)}
					cart[p.ID] = line
					cartOrder = append(cartOrder, p.ID)
				}
				line.Quantity += qty
			}
		}
	}

	if len(cart) == 0 || !r.chance(0.80) {
		return f.events, nil
	}
	f.add("cart_open_click", nil, r.intn(5, 15), who)
	f.add("page_view", map[string]any{"pathname": "/cart"}, r.intn(1, 2), who)
	if !shouldOrder || userID == "" {
		return f.events, nil
	}

	buy := cartOrder
	if !r.chance(0.70) {
		idx := r.rng.Perm(len(cartOrder))[:r.intn(1, len(cartOrder))]
		buy = make([]string, 0, len(idx))
		for _, i := range idx {
			buy = append(buy, cartOrder[i])
		}
	}
	final := map[string]*cartLine{}
	totalCents := 0
	for _, id := range buy {
		if p, ok := catalog.ProductByID(id); ok {
			final[id] = cart[id]
			totalCents += p.PriceCents * cart[id].Quantity
		}
	}
	if len(final) == 0 {
		return f.events, nil
	}
	if r.chance(0.30) {
		gift := buy[r.rng.IntN(len(buy))]
		f.add("cart_gift_toggle", map[string]any{"product_id": gift, "gift": true}, r.intn(2, 5), who)
		final[gift].Gift = true
	}
	f.add("checkout_click", map[string]any{"totalCents": totalCents}, r.intn(3, 8), who)
	f.add("checkout_success", map[string]any{"amountCents": totalCents, "products": final}, r.intn(15, 45), who)
	f.add("cart_clear", nil, 1, who)

	raw, _ := json.Marshal(final)
	return f.events, &state.OrderRow{
		OrderID:         idgen.OrderID(f.at),
		UserID:          userID,
		SessionID:       sessionID,
		ProductsPayload: string(raw),
		PaidAmount:      float64(totalCents) / 100,
		OrderDate:       f.at.UTC().Format(timeLayout),
		SessionLocation: location,
	}
}
