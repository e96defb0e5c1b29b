package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/martforge/martforge-api/internal/repository"
)

// OrganizationHandler exposes the tenant registry read-only.
type OrganizationHandler struct {
	orgs   repository.OrganizationRepository
	logger zerolog.Logger
}

func NewOrganizationHandler(orgs repository.OrganizationRepository, logger zerolog.Logger) *OrganizationHandler {
	return &OrganizationHandler{
		orgs:   orgs,
		logger: logger.With().Str("handler", "organization").Logger(),
	}
}

func (h *OrganizationHandler) List(w http.ResponseWriter, _ *http.Request) {
	orgs, err := h.orgs.List()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list organizations")
		http.Error(w, "failed to list organizations", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, orgs)
}

func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid organization id", http.StatusBadRequest)
		return
	}

	org, err := h.orgs.Get(orgID)
	if err != nil {
		http.Error(w, "organization not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, org)
}
