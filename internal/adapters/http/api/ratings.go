package api

import "net/http"

// RatingHandler serves full published records.
type RatingHandler struct {
	deps RatingDependencies
}

// NewRatingHandler creates a new rating handler.
func NewRatingHandler(deps RatingDependencies) *RatingHandler {
	return &RatingHandler{deps: deps}
}

// HandleGetRating handles GET /ratings/{entity_id} requests.
func (h *RatingHandler) HandleGetRating(w http.ResponseWriter, r *http.Request) {
	id, err := entityID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	rec, err := h.deps.Record(r.Context(), id)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// AuditHandler serves the latest audit report.
type AuditHandler struct {
	deps AuditDependencies
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(deps AuditDependencies) *AuditHandler {
	return &AuditHandler{deps: deps}
}

// HandleGetAudit handles GET /audit requests.
func (h *AuditHandler) HandleGetAudit(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.LatestAudit(r.Context())
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
