// Package queryapi is the read-only HTTP surface over the signature store:
// prefix search by text or hash, provenance listings, and a statistics
// bundle, mirroring etherface-rest's /v1 routes (§6).
package queryapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fourbyte/selectortrace/internal/httpserver"
	"github.com/fourbyte/selectortrace/internal/store"
)

const pageSize = httpserver.DefaultPageSize

// Handler mounts the /v1 query routes against a Store.
type Handler struct {
	Store  *store.Store
	Logger *slog.Logger
}

// Routes returns the mounted /v1 router.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/signatures/text/{kind}/{input}/{page}", h.signaturesByText)
	r.Get("/signatures/hash/{kind}/{input}/{page}", h.signaturesByHash)
	r.Get("/sources/github/{kind}/{signature_id}/{page}", h.sourcesGithub)
	r.Get("/sources/etherscan/{kind}/{signature_id}/{page}", h.sourcesEtherscan)
	r.Get("/statistics", h.statistics)
	return r
}

type textParams struct {
	Kind  string `validate:"required,oneof=all function event error"`
	Input string `validate:"required,min=3"`
}

func (h *Handler) signaturesByText(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}

	params := textParams{
		Kind:  chi.URLParam(r, "kind"),
		Input: strings.TrimSpace(chi.URLParam(r, "input")),
	}
	if errs := httpserver.Validate(params); len(errs) > 0 {
		httpserver.RespondValidationError(w, errs)
		return
	}

	kind, err := parseKind(params.Kind)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	sigs, total, err := h.Store.SignaturesByTextPrefix(r.Context(), params.Input, kind, page, pageSize)
	if err != nil {
		h.fail(w, "querying signatures by text", err)
		return
	}
	if total == 0 {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "no matching signatures")
		return
	}

	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(sigs, page, pageSize, total))
}

type hashParams struct {
	Kind  string `validate:"required,oneof=all function event error"`
	Input string `validate:"required"`
}

func (h *Handler) signaturesByHash(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}

	input := strings.TrimPrefix(strings.TrimSpace(chi.URLParam(r, "input")), "0x")
	params := hashParams{Kind: chi.URLParam(r, "kind"), Input: input}
	if errs := httpserver.Validate(params); len(errs) > 0 {
		httpserver.RespondValidationError(w, errs)
		return
	}
	if len(input) != 8 && len(input) != 64 {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "input must have 8 or 64 characters")
		return
	}

	kind, err := parseKind(params.Kind)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	sigs, total, err := h.Store.SignaturesByHashPrefix(r.Context(), input, kind, page, pageSize)
	if err != nil {
		h.fail(w, "querying signatures by hash", err)
		return
	}
	if total == 0 {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "no matching signatures")
		return
	}

	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(sigs, page, pageSize, total))
}

func (h *Handler) sourcesGithub(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}
	signatureID, ok := parseSignatureID(w, r)
	if !ok {
		return
	}
	kind, err := parseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	repos, total, err := h.Store.SourcesGithub(r.Context(), signatureID, kind, page, pageSize)
	if err != nil {
		h.fail(w, "querying github sources", err)
		return
	}
	if total == 0 {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "no matching sources")
		return
	}

	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(repos, page, pageSize, total))
}

func (h *Handler) sourcesEtherscan(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}
	signatureID, ok := parseSignatureID(w, r)
	if !ok {
		return
	}
	kind, err := parseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	contracts, total, err := h.Store.SourcesEtherscan(r.Context(), signatureID, kind, page, pageSize)
	if err != nil {
		h.fail(w, "querying etherscan sources", err)
		return
	}
	if total == 0 {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "no matching sources")
		return
	}

	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(contracts, page, pageSize, total))
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.GetStatistics(r.Context())
	if err != nil {
		h.fail(w, "querying statistics", err)
		return
	}
	httpserver.Respond(w, http.StatusOK, stats)
}

// parsePage extracts and validates the {page} path parameter, writing a 400
// response and returning ok=false on failure.
func parsePage(w http.ResponseWriter, r *http.Request) (page int, ok bool) {
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil || page < 1 {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "page must be an integer >= 1")
		return 0, false
	}
	return page, true
}

// parseSignatureID extracts the {signature_id} path parameter.
func parseSignatureID(w http.ResponseWriter, r *http.Request) (id int64, ok bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "signature_id"), 10, 64)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "signature_id must be an integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	h.Logger.Error(action, "error", err)
	httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "an internal error occurred")
}
