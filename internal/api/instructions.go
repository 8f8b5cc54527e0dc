package api

import (
	"net/http"
	"strings"

	"github.com/adgen/adgen/internal/idgen"
	"github.com/adgen/adgen/internal/state"
)

const (
	instructionsCollection  = "instructions"
	segmentationsCollection = "segmentations"
)

var instructionDocs = []string{
	"masterAgentInstruction",
	"dataAnalyticAgentInstruction",
	"creativeAgentInstruction",
	"segmentationInstruction",
}

var instructionFields = []string{"instruction", "model", "modelName", "description"}

func (s *Server) handleInstructions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if s.Store == nil {
		s.Log.Error().Err(errStoreUnavailable).Msg("instructions index")
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "results": map[string]any{}, "_firestoreError": true})
		return
	}
	results := make(map[string]any, len(instructionDocs))
	for _, id := range instructionDocs {
		doc, ok, err := s.Store.GetDoc(r.Context(), instructionsCollection, id)
		switch {
		case err != nil:
			s.Log.Error().Err(err).Str("doc", id).Msg("read instruction")
			results[id] = map[string]any{"_firestoreError": true}
		case !ok:
			results[id] = map[string]any{}
		default:
			results[id] = doc.Data
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "results": results})
}

func (s *Server) handleInstructionDoc(w http.ResponseWriter, r *http.Request) {
	docID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/instructions/"), "/")
	if docID == "" || strings.Contains(docID, "/") {
		writeError(w, http.StatusNotFound, errNotFound("instruction"))
		return
	}
	if err := idgen.ValidateDocID(docID); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.getInstruction(w, r, docID)
	case http.MethodPut:
		s.putInstruction(w, r, docID)
	default:
		writeMethodNotAllowed(w)
	}
}

func (s *Server) getInstruction(w http.ResponseWriter, r *http.Request, docID string) {
	resp := map[string]any{"ok": true, "doc": docID}
	for _, f := range instructionFields {
		resp[f] = ""
	}

	err := errStoreUnavailable
	if s.Store != nil {
		var doc state.Doc
		var found bool
		doc, found, err = s.Store.GetDoc(r.Context(), instructionsCollection, docID)
		if err == nil && found {
			for _, f := range instructionFields {
				resp[f] = doc.String(f)
			}
		}
	}
	if err != nil {
		if !s.Production {
			s.Log.Warn().Err(err).Str("doc", docID).Msg("instruction read failed; returning empty payload")
			resp["_devMode"] = true
			writeJSON(w, http.StatusOK, resp)
			return
		}
		s.Log.Error().Err(err).Str("doc", docID).Msg("instruction read failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "server_error", "doc": docID})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) putInstruction(w http.ResponseWriter, r *http.Request, docID string) {
	var body map[string]any
	err := decodeJSON(r.Body, &body)
	if err == nil && s.Store == nil {
		err = errStoreUnavailable
	}
	if err == nil {
		update := map[string]any{}
		for _, f := range instructionFields {
			if v, ok := body[f].(string); ok {
				update[f] = v
			}
		}
		err = s.Store.SetDoc(r.Context(), instructionsCollection, docID, update, true)
	}
	if err != nil {
		if !s.Production {
			s.Log.Warn().Err(err).Str("doc", docID).Msg("instruction write failed; simulating success")
			writeJSON(w, http.StatusOK, map[string]any{
				"ok":       true,
				"_devMode": true,
				"_message": "Data not persisted in development mode",
			})
			return
		}
		s.Log.Error().Err(err).Str("doc", docID).Msg("instruction write failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "server_error"})
		return
	}
	s.Log.Info().Str("doc", docID).Msg("instruction updated")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSegmentations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	limit := min(max(parseInt(r.URL.Query().Get("limit"), 50), 1), 500)

	err := errStoreUnavailable
	items := []map[string]any{}
	if s.Store != nil {
		docs, lerr := s.Store.ListDocs(r.Context(), segmentationsCollection, limit)
		err = lerr
		for _, d := range docs {
			item := map[string]any{"id": d.ID}
			for k, v := range d.Data {
				item[k] = v
			}
			items = append(items, item)
		}
	}
	if err != nil {
		s.Log.Error().Err(err).Msg("list segmentations")
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "items": []any{}, "_firestoreError": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "items": items})
}

type notFoundError struct {
	msg string
}

func (e notFoundError) Error() string { return e.msg }

func errNotFound(target string) error {
	return notFoundError{msg: target + " not found"}
}
