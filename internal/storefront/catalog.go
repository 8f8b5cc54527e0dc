package storefront

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/adgen/adgen/internal/catalog"
	"github.com/adgen/adgen/internal/geo"
	"github.com/adgen/adgen/internal/seed"
	"github.com/adgen/adgen/internal/state"
)

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "categories": catalog.Categories()})
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	slug := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/categories/"), "/")
	cat, ok := catalog.CategoryBySlug(slug)
	if !ok {
		writeFail(w, http.StatusNotFound, "category_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"category": cat,
		"products": catalog.ProductsByCategory(cat.ID),
	})
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	products := catalog.Products()
	if slug := r.URL.Query().Get("category"); slug != "" {
		cat, ok := catalog.CategoryBySlug(slug)
		if !ok {
			writeFail(w, http.StatusNotFound, "category_not_found")
			return
		}
		products = catalog.ProductsByCategory(cat.ID)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "products": products})
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/products/"), "/")
	p, ok := catalog.ProductByID(id)
	if !ok {
		writeFail(w, http.StatusNotFound, "product_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "product": p})
}

func (s *Server) handleSeedProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if r.URL.Query().Get("secret") != s.seedSecret() {
		writeFail(w, http.StatusUnauthorized, "")
		return
	}
	count, err := seed.SeedProducts(r.Context(), s.Store)
	if err != nil {
		s.Log.Error().Err(err).Msg("seed products")
		writeFail(w, http.StatusInternalServerError, "")
		return
	}
	s.Log.Info().Int("count", count).Msg("catalog seeded")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": count})
}

var (
	pathSeparators = regexp.MustCompile(`[\\/]`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

// normalizeSegment builds one part of a segmentations document id.
func normalizeSegment(s string) string {
	s = strings.TrimSpace(s)
	s = pathSeparators.ReplaceAllString(s, "_")
	s = strings.ReplaceAll(s, ",", "")
	return whitespaceRuns.ReplaceAllString(s, "_")
}

// SegmentationDocID is "<segmentation>_<city>_<country>" after normalisation.
func SegmentationDocID(segmentation, city, country string) string {
	return normalizeSegment(segmentation) + "_" + normalizeSegment(city) + "_" + normalizeSegment(country)
}

// handleAdImage resolves the creative for a user: their location and
// segmentation select a document in the segmentations collection.
func (s *Server) handleAdImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	body, err := decodeBody(r.Body)
	if err != nil {
		body = map[string]any{}
	}
	userID := strings.TrimSpace(str(body["user_id"], str(body["id"], "")))
	if userID == "" {
		writeFail(w, http.StatusBadRequest, "user_id_required")
		return
	}

	ctx := r.Context()
	log := s.Log.With().Str("user_id", userID).Logger()
	fail := func(err error) {
		log.Error().Err(err).Msg("ad-image")
		writeFail(w, http.StatusInternalServerError, "")
	}

	var city, country string
	user, ok, err := s.Store.GetDoc(ctx, usersCollection, userID)
	if err != nil {
		fail(err)
		return
	}
	if ok {
		city, country = geo.SplitCityCountry(user.String("user_location"))
	}

	segDoc, ok, err := s.Store.GetDoc(ctx, "user_segmentations", "user_"+userID)
	if err != nil {
		fail(err)
		return
	}
	if !ok {
		docs, err := s.Store.FindDocs(ctx, "user_segmentations", []state.Filter{{Field: "user_id", Value: userID}}, 1)
		if err != nil {
			fail(err)
			return
		}
		if len(docs) > 0 {
			segDoc, ok = docs[0], true
		}
	}
	segmentation := ""
	if ok {
		segmentation = segDoc.String("segmentation_result")
	}
	if segmentation == "" || city == "" {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"ok":           false,
			"error":        "missing_segmentation_or_city",
			"segmentation": segmentation,
			"city":         city,
			"country":      country,
		})
		return
	}

	docID := SegmentationDocID(segmentation, city, country)
	seg, ok, err := s.Store.GetDoc(ctx, "segmentations", docID)
	if err != nil {
		fail(err)
		return
	}
	if !ok {
		docs, err := s.Store.FindDocs(ctx, "segmentations", []state.Filter{
			{Field: "segmentation_name", Value: segmentation},
			{Field: "city", Value: city},
			{Field: "country", Value: country},
		}, 1)
		if err != nil {
			fail(err)
			return
		}
		if len(docs) > 0 {
			seg, ok = docs[0], true
		}
	}
	imageURL := ""
	if ok {
		imageURL = seg.String("imageUrl")
	}
	if imageURL == "" {
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "image_not_found_in_segmentations", "docId": docID})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "imageUrl": imageURL, "docId": docID})
}

func (s *Server) handleGeo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if s.Geo == nil {
		writeFail(w, http.StatusServiceUnavailable, "geo_disabled")
		return
	}
	ip := clientIP(r)
	if ip == "" {
		writeFail(w, http.StatusBadRequest, "invalid_ip")
		return
	}
	loc, err := s.Geo.Lookup(r.Context(), ip)
	if err != nil {
		s.Log.Debug().Err(err).Str("ip", ip).Msg("geo lookup")
		writeFail(w, http.StatusNotFound, "location_unresolved")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "location": loc})
}
