package catalog

import (
	"strings"
	"testing"
)

func TestCatalogShape(t *testing.T) {
	if len(Categories()) != 10 {
		t.Fatalf("expected 10 categories")
	}
	all := Products()
	if len(all) != 100 {
		t.Fatalf("expected 100 products, got %d", len(all))
	}
	seen := map[string]bool{}
	for _, p := range all {
		if seen[p.ID] {
			t.Fatalf("duplicate product id %s", p.ID)
		}
		seen[p.ID] = true
		if p.PriceCents <= 0 || !strings.HasPrefix(p.ID, "p_") {
			t.Fatalf("bad product %+v", p)
		}
	}
}

func TestLookups(t *testing.T) {
	p, ok := ProductByID("p_electronics_14_laptop_i5_16gb")
	if !ok || p.PriceCents != 129900 {
		t.Fatalf("unexpected laptop lookup: %+v ok=%v", p, ok)
	}
	if !strings.Contains(p.Description, "Seasonality: Year-round.") || !strings.Contains(p.Description, "Electronics category") {
		t.Fatalf("unexpected description: %q", p.Description)
	}
	cat, ok := CategoryBySlug("pets")
	if !ok || cat.Name != "Pet" {
		t.Fatalf("unexpected category %+v", cat)
	}
	if got := len(ProductsByCategory(cat.ID)); got != 10 {
		t.Fatalf("expected 10 pet products, got %d", got)
	}
	if _, ok := CategoryBySlug("nope"); ok {
		t.Fatalf("expected missing slug")
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Novel – Night and Fog":      "novel_night_and_fog",
		"55\" 4K TV":                 "55_4k_tv",
		"Dining Chair Set (2)":       "dining_chair_set_2",
		"  leading and trailing!!  ": "leading_and_trailing",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
