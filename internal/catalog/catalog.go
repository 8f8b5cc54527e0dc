package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

type Category struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type Product struct {
	ID          string `json:"id"`
	CategoryID  string `json:"categoryId"`
	Title       string `json:"title"`
	PriceCents  int    `json:"priceCents"`
	Image       string `json:"image,omitempty"`
	Description string `json:"description,omitempty"`
}

var categories = []Category{
	{ID: "cat-electronics", Slug: "electronics", Name: "Electronics"},
	{ID: "cat-fashion", Slug: "fashion", Name: "Fashion"},
	{ID: "cat-home", Slug: "home", Name: "Home & Living"},
	{ID: "cat-sports", Slug: "sports", Name: "Sports"},
	{ID: "cat-beauty", Slug: "beauty", Name: "Beauty"},
	{ID: "cat-toys", Slug: "toys", Name: "Toys"},
	{ID: "cat-books", Slug: "books", Name: "Books"},
	{ID: "cat-grocery", Slug: "grocery", Name: "Grocery"},
	{ID: "cat-pets", Slug: "pets", Name: "Pet"},
	{ID: "cat-automotive", Slug: "automotive", Name: "Automotive"},
}

type line struct {
	title   string
	dollars int
}

var lines = map[string][]line{
	"cat-fashion": {
		{"Organic Cotton T-Shirt", 19}, {"Slim-Fit Jeans", 69}, {"Midi Skirt", 49}, {"Oversized Hoodie", 59}, {"Tailored Blazer", 149},
		{"Everyday Sneakers", 99}, {"Chino Shorts", 39}, {"Oxford Shirt", 49}, {"Cable Knit Sweater", 79}, {"Leather Boots", 179},
	},
	"cat-electronics": {
		{"Smartphone 128GB", 899}, {"14\" Laptop i5 16GB", 1299}, {"Bluetooth Headphones", 149}, {"Smartwatch", 249}, {"11\" Tablet 256GB", 599},
		{"Game Console", 499}, {"55\" 4K TV", 399}, {"DSLR Camera", 899}, {"Portable SSD 1TB", 129}, {"4K Drone", 799},
	},
	"cat-home": {
		{"Solid Wood Dining Table", 699}, {"Velvet Sofa", 1299}, {"Orthopedic Pillow", 39}, {"Cotton Duvet Set", 99}, {"Area Rug 160x230", 179},
		{"Floor Lamp", 79}, {"Bookshelf", 149}, {"Dining Chair Set (2)", 129}, {"Robot Vacuum", 399}, {"Air Fryer 4.5L", 149},
	},
	"cat-sports": {
		{"Running Shoes", 129}, {"Yoga Mat", 29}, {"Dumbbell Set 10kg", 59}, {"Basketball", 29}, {"Resistance Bands Set", 25},
		{"Bike Helmet", 49}, {"Gym Duffel Bag", 39}, {"Tennis Racket", 119}, {"Soccer Cleats", 129}, {"Fitness Tracker", 69},
	},
	"cat-beauty": {
		{"Hydrating Face Cream", 24}, {"Foaming Cleanser", 14}, {"Sunscreen SPF 50", 19}, {"Eau de Parfum 50ml", 69}, {"Hair Serum", 22},
		{"Matte Lipstick", 18}, {"Hand Cream", 8}, {"Eye Cream", 29}, {"Shower Gel", 7}, {"Shampoo 500ml", 12},
	},
	"cat-toys": {
		{"Building Bricks Set", 39}, {"Plush Bear", 19}, {"Wooden Puzzle", 14}, {"RC Car", 49}, {"Painting Kit", 15},
		{"Science Lab Kit", 29}, {"Modeling Clay Pack", 9}, {"Chess Set", 24}, {"Kids Scooter", 59}, {"Family Board Game", 29},
	},
	"cat-books": {
		{"Novel – Night and Fog", 14}, {"Self-Help – Habits", 12}, {"Science – A Brief History of Time", 18}, {"Business – Zero to One", 16},
		{"Psychology – Thinking, Fast and Slow", 20}, {"Classic – Crime and Punishment", 13}, {"Fantasy – Children of Fire", 17},
		{"History – Empires", 18}, {"Poetry – Blue Notebook", 9}, {"Kids – Story Box", 8},
	},
	"cat-grocery": {
		{"Ground Coffee 500g", 8}, {"Organic Olive Oil 1L", 12}, {"Almonds 250g", 7}, {"Pasta 500g (6-pack)", 6}, {"Rice 2.5kg", 7},
		{"Canned Tuna (3)", 5}, {"Rolled Oats 1kg", 4}, {"Peanut Butter 700g", 6}, {"Milk 1L (6-pack)", 5}, {"Mineral Water (24)", 4},
	},
	"cat-pets": {
		{"Cat Food 2kg", 22}, {"Dog Food 3kg", 28}, {"Cat Litter 10L", 10}, {"Scratching Post", 20}, {"Leash", 9},
		{"Stainless Water Bowl", 8}, {"Toy Ball", 4}, {"Bird Seed 1kg", 7}, {"Dog House", 89}, {"Cat Carrier", 29},
	},
	"cat-automotive": {
		{"Winter Tires 16\" (Set of 4)", 520}, {"Motor Oil 5W-30 4L", 35}, {"Alloy Wheels 17\" (Set of 4)", 680}, {"Car Battery 60Ah", 140},
		{"Dash Cam", 95}, {"Trunk Organizer", 22}, {"Snow Chains", 49}, {"Car Air Freshener", 8}, {"Phone Mount", 15}, {"Tire Pressure Gauge", 12},
	},
}

var seasonByCategory = map[string]string{
	"cat-fashion":     "Spring–Fall (March–October)",
	"cat-electronics": "Year-round",
	"cat-home":        "Year-round",
	"cat-sports":      "Spring–Summer (April–September)",
	"cat-beauty":      "Year-round",
	"cat-toys":        "Gifting season peaks (November–December) & birthdays",
	"cat-books":       "Year-round (peaks in September & December)",
	"cat-grocery":     "Year-round",
	"cat-pets":        "Year-round",
	"cat-automotive":  "Winter prep (October–January) & road-trip season (May–August)",
}

var products = buildProducts()

func buildProducts() []Product {
	var out []Product
	for _, cat := range categories {
		for _, l := range lines[cat.ID] {
			id := "p_" + cat.Slug + "_" + Slugify(l.title)
			out = append(out, Product{
				ID:          id,
				CategoryID:  cat.ID,
				Title:       l.title,
				PriceCents:  l.dollars * 100,
				Description: marketingDescription(cat, l.title),
				Image:       fmt.Sprintf("https://picsum.photos/seed/%s/800/600", id),
			})
		}
	}
	return out
}

func marketingDescription(cat Category, title string) string {
	season := seasonByCategory[cat.ID]
	if season == "" {
		season = "Year-round"
	}
	return title + " — premium quality for everyday life.\n" +
		"Seasonality: " + season + ".\n" +
		"Primary audiences: inclusive age range 16–65+, across diverse backgrounds; ideal for students, professionals, and families.\n" +
		"Top regions: United States, Canada, United Kingdom; growing interest in EU and APAC.\n" +
		"Usage: designed for comfort and performance; pairs well with complementary items in the " + cat.Name + " category.\n" +
		"Campaign notes: highlight benefits, lifestyle imagery, and UGC; focus on moments (weekend, commute, gifting, holidays)."
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and collapses every run of other characters into a
// single underscore.
func Slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "_"), "_")
}

func Categories() []Category {
	return append([]Category(nil), categories...)
}

func Products() []Product {
	return append([]Product(nil), products...)
}

func CategoryBySlug(slug string) (Category, bool) {
	for _, c := range categories {
		if c.Slug == slug {
			return c, true
		}
	}
	return Category{}, false
}

func CategoryByID(id string) (Category, bool) {
	for _, c := range categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

func ProductsByCategory(categoryID string) []Product {
	var out []Product
	for _, p := range products {
		if p.CategoryID == categoryID {
			out = append(out, p)
		}
	}
	return out
}

func ProductByID(id string) (Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}
