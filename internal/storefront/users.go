package storefront

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/adgen/adgen/internal/state"
)

const usersCollection = "users"

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	body, err := decodeBody(r.Body)
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "")
		return
	}
	userID := strings.TrimSpace(str(body["user_id"], str(body["id"], "")))
	email := str(body["email"], "")
	name := str(body["name"], "")
	password := str(body["password"], "")
	location := str(body["user_location"], "")
	if userID == "" {
		writeFail(w, http.StatusBadRequest, "user_id required")
		return
	}
	if email == "" || password == "" {
		writeFail(w, http.StatusBadRequest, "email_password_required")
		return
	}

	ctx := r.Context()
	log := s.Log.With().Str("user_id", userID).Logger()
	dup, err := s.Store.FindDocs(ctx, usersCollection, []state.Filter{{Field: "email", Value: email}}, 1)
	if err != nil {
		log.Error().Err(err).Msg("users upsert: email lookup")
		writeFail(w, http.StatusInternalServerError, "")
		return
	}
	if len(dup) > 0 {
		writeFail(w, http.StatusConflict, "email_exists")
		return
	}

	now := s.now().Format(isoTimeLayout)
	createdAt := now
	existing, ok, err := s.Store.GetDoc(ctx, usersCollection, userID)
	if err != nil {
		log.Error().Err(err).Msg("users upsert: read existing")
		writeFail(w, http.StatusInternalServerError, "")
		return
	}
	if ok && existing.String("createdAt") != "" {
		createdAt = existing.String("createdAt")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost())
	if err != nil {
		log.Error().Err(err).Msg("users upsert: hash password")
		writeFail(w, http.StatusInternalServerError, "")
		return
	}
	data := map[string]any{
		"user_id":        userID,
		"email":          email,
		"name":           name,
		"updatedAt":      now,
		"createdAt":      createdAt,
		"hashedPassword": string(hashed),
	}
	if location != "" {
		data["user_location"] = location
	}
	if err := s.Store.SetDoc(ctx, usersCollection, userID, data, true); err != nil {
		log.Error().Err(err).Msg("users upsert: write")
		writeFail(w, http.StatusInternalServerError, "")
		return
	}
	log.Info().Msg("user upserted")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleUserLocation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	body, err := decodeBody(r.Body)
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "")
		return
	}
	id := str(body["id"], "")
	location := body["user_location"]
	if id == "" || str(location, "") == "" {
		writeFail(w, http.StatusBadRequest, "id_and_location_required")
		return
	}
	if err := s.Store.SetDoc(r.Context(), usersCollection, id, map[string]any{"user_location": location}, true); err != nil {
		s.Log.Error().Err(err).Str("user_id", id).Msg("update user location")
		writeFail(w, http.StatusInternalServerError, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	body, err := decodeBody(r.Body)
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "")
		return
	}
	email := str(body["email"], "")
	password := str(body["password"], "")
	if email == "" || password == "" {
		writeFail(w, http.StatusBadRequest, "email_password_required")
		return
	}

	docs, err := s.Store.FindDocs(r.Context(), usersCollection, []state.Filter{{Field: "email", Value: email}}, 1)
	if err != nil {
		s.Log.Error().Err(err).Msg("auth login: lookup")
		writeFail(w, http.StatusInternalServerError, "")
		return
	}
	if len(docs) == 0 {
		writeFail(w, http.StatusUnauthorized, "user_not_found")
		return
	}
	doc := docs[0]
	hashed := doc.String("hashedPassword")
	if hashed == "" {
		writeFail(w, http.StatusUnauthorized, "password_not_set")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)); err != nil {
		writeFail(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"user": map[string]any{
			"id":    doc.ID,
			"name":  doc.String("name"),
			"email": doc.String("email"),
		},
	})
}
