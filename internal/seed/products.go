package seed

import (
	"context"
	"fmt"

	"github.com/adgen/adgen/internal/catalog"
	"github.com/adgen/adgen/internal/state"
)

const fallbackImage = "https://picsum.photos/seed/img/400/300"

// ProductWrites returns the merge writes that materialise the static catalog
// into the products and products_numbers collections.
func ProductWrites() []state.DocWrite {
	products := catalog.Products()
	writes := make([]state.DocWrite, 0, len(products)*2)
	for _, p := range products {
		categoryName := ""
		if c, ok := catalog.CategoryByID(p.CategoryID); ok {
			categoryName = c.Name
		}
		image := p.Image
		if image == "" {
			image = fallbackImage
		}
		writes = append(writes, state.DocWrite{
			Collection: "products",
			ID:         p.ID,
			Merge:      true,
			Data: map[string]any{
				"product_id":          p.ID,
				"product_name":        p.Title,
				"product_price":       float64(p.PriceCents) / 100,
				"product_description": p.Description,
				"product_category":    categoryName,
				"product_image_urls":  []string{image},
				"product_payload":     map[string]any{},
			},
		}, state.DocWrite{
			Collection: "products_numbers",
			ID:         p.ID,
			Merge:      true,
			Data: map[string]any{
				"product_id":                                p.ID,
				"product_clicked_count":                     0,
				"product_shared_count":                      0,
				"product_cart_added_count":                  0,
				"product_cart_removed_count":                0,
				"product_bought_count":                      0,
				"product_average_clicked_quantity_per_user": 0,
				"product_average_bought_quantity_per_user":  0,
				"product_bought_countries_count":            map[string]any{"us": 0},
			},
		})
	}
	return writes
}

// SeedProducts writes the catalog and returns how many products were written.
func SeedProducts(ctx context.Context, store *state.Store) (int, error) {
	writes := ProductWrites()
	if err := store.SetDocs(ctx, writes); err != nil {
		return 0, fmt.Errorf("seed products: %w", err)
	}
	return len(writes) / 2, nil
}
