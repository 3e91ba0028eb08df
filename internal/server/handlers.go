package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/albertopd/secureprompt/internal/access"
	"github.com/albertopd/secureprompt/internal/audit"
	spotel "github.com/albertopd/secureprompt/internal/otel"
	"github.com/albertopd/secureprompt/internal/requestctx"
	"github.com/albertopd/secureprompt/internal/scrub"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

// authorize runs the access check and writes the error response on denial.
// Returns the principal and true when the request may proceed.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, action, justification string) (requestctx.Principal, bool) {
	p, ok := requestctx.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no principal in request")
		return p, false
	}
	decision, err := s.accessEngine.Authorize(r.Context(), p, action, justification)
	if err != nil {
		log.Error().Err(err).Str("action", action).Msg("authorization check failed")
		writeError(w, http.StatusInternalServerError, "internal", "authorization check failed")
		return p, false
	}
	if !decision.Allowed {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":   "forbidden",
			"reasons": decision.Reasons,
		})
		return p, false
	}
	return p, true
}

type scrubRequest struct {
	Text     string `json:"text"`
	Tier     string `json:"risk_tier"`
	Language string `json:"language"`
}

type scrubResponse struct {
	ScrubID        string                   `json:"scrub_id"`
	AnonymizedText string                   `json:"anonymized_text"`
	Entities       []scrub.AnonymizedEntity `json:"entities"`
	Partial        bool                     `json:"partial,omitempty"`
}

func (s *Server) handleScrub(w http.ResponseWriter, r *http.Request) {
	var req scrubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return
	}
	if req.Language == "" {
		req.Language = "en"
	}

	p, ok := s.authorize(w, r, access.ActionScrub, "")
	if !ok {
		return
	}

	result, err := s.engine.Scrub(r.Context(), req.Text, req.Tier, req.Language)
	if err != nil && errors.Is(err, scrub.ErrConfiguration) {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	partial := err != nil && errors.Is(err, scrub.ErrDetection)
	if err != nil && !partial {
		log.Error().Err(err).Msg("scrub failed")
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	entityTypes := make([]string, 0, len(result.Entities))
	seen := map[string]bool{}
	for _, e := range result.Entities {
		if !seen[e.EntityType] {
			seen[e.EntityType] = true
			entityTypes = append(entityTypes, e.EntityType)
		}
	}

	rec := &audit.Record{
		CorpKey:        p.CorpKey,
		Role:           p.Role,
		Operation:      audit.OpScrub,
		Tier:           req.Tier,
		Language:       req.Language,
		AnonymizedText: result.AnonymizedText,
		Entities:       result.Entities,
		EntityTypes:    entityTypes,
		Partial:        partial,
	}
	if err := s.auditStore.Store(r.Context(), rec, req.Text); err != nil {
		log.Error().Err(err).Msg("storing scrub audit record failed")
		writeError(w, http.StatusInternalServerError, "internal", "failed to record operation")
		return
	}

	log.Info().
		Str("scrub_id", rec.ID).
		Str("corp_key", p.CorpKey).
		Str("tier", req.Tier).
		Int("entities", len(result.Entities)).
		Func(spotel.LogTraceFields(r.Context())).
		Msg("scrub recorded")

	writeJSON(w, http.StatusOK, scrubResponse{
		ScrubID:        rec.ID,
		AnonymizedText: result.AnonymizedText,
		Entities:       result.Entities,
		Partial:        partial,
	})
}

type descrubRequest struct {
	ScrubID       string   `json:"scrub_id"`
	Tokens        []string `json:"tokens,omitempty"`
	All           bool     `json:"all,omitempty"`
	Justification string   `json:"justification"`
}

func (s *Server) handleDescrub(w http.ResponseWriter, r *http.Request) {
	var req descrubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return
	}
	if req.ScrubID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "scrub_id is required")
		return
	}

	p, ok := s.authorize(w, r, access.ActionDescrub, req.Justification)
	if !ok {
		return
	}

	rec, err := s.auditStore.Get(r.Context(), req.ScrubID, p.CorpKey)
	if err != nil {
		if errors.Is(err, audit.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "scrub record not found")
			return
		}
		log.Error().Err(err).Msg("loading scrub record failed")
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if rec.Operation != audit.OpScrub {
		writeError(w, http.StatusBadRequest, "invalid_request", "record is not a scrub operation")
		return
	}

	dreq := scrub.DescrubRequest{
		AnonymizedText: rec.AnonymizedText,
		Entities:       rec.Entities,
		Tokens:         req.Tokens,
		All:            req.All,
	}
	if req.All {
		original, err := s.auditStore.Original(r.Context(), req.ScrubID, p.CorpKey)
		if err != nil {
			log.Error().Err(err).Msg("loading original text failed")
			writeError(w, http.StatusInternalServerError, "internal", "failed to load original text")
			return
		}
		dreq.OriginalText = original
	}

	text, err := s.engine.Descrub(r.Context(), dreq)
	switch {
	case err == nil:
	case errors.Is(err, scrub.ErrTokenNotFound):
		writeError(w, http.StatusNotFound, "token_not_found", err.Error())
		return
	case errors.Is(err, scrub.ErrReversalConflict):
		writeError(w, http.StatusConflict, "reversal_conflict", err.Error())
		return
	default:
		log.Error().Err(err).Msg("descrub failed")
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	auditRec := &audit.Record{
		CorpKey:       p.CorpKey,
		Role:          p.Role,
		Operation:     audit.OpDescrub,
		Tier:          rec.Tier,
		Language:      rec.Language,
		Justification: req.Justification,
		ScrubID:       req.ScrubID,
	}
	if err := s.auditStore.Store(r.Context(), auditRec, ""); err != nil {
		log.Error().Err(err).Msg("storing descrub audit record failed")
		writeError(w, http.StatusInternalServerError, "internal", "failed to record operation")
		return
	}

	log.Info().
		Str("scrub_id", req.ScrubID).
		Str("corp_key", p.CorpKey).
		Str("role", p.Role).
		Bool("all", req.All).
		Func(spotel.LogTraceFields(r.Context())).
		Msg("descrub recorded")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scrub_id": req.ScrubID,
		"text":     text,
	})
}

func (s *Server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	p, ok := s.authorize(w, r, access.ActionAuditRead, "")
	if !ok {
		return
	}

	q := r.URL.Query()
	var from, to time.Time
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "from must be RFC3339")
			return
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "to must be RFC3339")
			return
		}
		to = t
	}
	limit := 100
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.auditStore.List(r.Context(), p.CorpKey, q.Get("operation"), from, to, limit)
	if err != nil {
		log.Error().Err(err).Msg("listing audit records failed")
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if records == nil {
		records = []audit.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

func (s *Server) handleAuditGet(w http.ResponseWriter, r *http.Request) {
	p, ok := s.authorize(w, r, access.ActionAuditRead, "")
	if !ok {
		return
	}

	rec, err := s.auditStore.Get(r.Context(), chi.URLParam(r, "id"), p.CorpKey)
	if err != nil {
		if errors.Is(err, audit.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "audit record not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleAuditVerify(w http.ResponseWriter, r *http.Request) {
	p, ok := s.authorize(w, r, access.ActionAuditRead, "")
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	valid, err := s.auditStore.Verify(r.Context(), id, p.CorpKey)
	if err != nil {
		if errors.Is(err, audit.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "audit record not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":    id,
		"valid": valid,
	})
}

func (s *Server) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	p, ok := s.authorize(w, r, access.ActionAuditRead, "")
	if !ok {
		return
	}

	records, err := s.auditStore.List(r.Context(), p.CorpKey, "", time.Time{}, time.Time{}, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		err = audit.WriteJSON(w, records)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="audit.csv"`)
		err = audit.WriteCSV(w, records)
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err = audit.WriteHTML(w, records)
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "format must be json, csv, or html")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("format", format).Msg("audit export failed")
	}
}
