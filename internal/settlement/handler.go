package settlement

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fairsplit/fairsplit/internal/balance"
	"github.com/fairsplit/fairsplit/pkg/middleware"
	"github.com/fairsplit/fairsplit/pkg/response"
)

// Handler handles HTTP requests for settlement operations
type Handler struct {
	service *Service
}

// NewHandler creates a new settlement handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for settlement endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/history", h.History)
	r.Get("/{id}", h.GetByID)
	r.Put("/{id}/confirm", h.Confirm)
	r.Post("/{id}/pay", h.Pay)

	return r
}

// RegisterGroupRoutes mounts the group-scoped settlement endpoints on the
// groups router.
func (h *Handler) RegisterGroupRoutes(r chi.Router) {
	r.Get("/{id}/balances", h.GroupBalances)
	r.Post("/{id}/finalize", h.Finalize)
	r.Get("/{id}/settlements", h.ListByGroup)
	r.Get("/{id}/settlements/summary", h.Summary)
}

// GroupBalances handles GET /groups/{id}/balances
// @Summary      Get group balances
// @Description  Derive every member's net position from the unsettled ledger
// @Tags         settlements
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        window query string false "Window keyword" Enums(day, week, month, year, all)
// @Success      200 {object} response.APIResponse{data=GroupBalancesResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Security     BearerAuth
// @Router       /groups/{id}/balances [get]
func (h *Handler) GroupBalances(w http.ResponseWriter, r *http.Request) {
	groupID, userID, ok := h.groupAndUser(w, r)
	if !ok {
		return
	}

	balances, err := h.service.GetGroupBalances(r.Context(), groupID, userID, r.URL.Query().Get("window"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotGroupMember):
			response.Forbidden(w, err.Error())
		case errors.Is(err, balance.ErrUnknownWindow):
			response.BadRequest(w, err.Error())
		default:
			response.InternalError(w, "Failed to compute balances")
		}
		return
	}

	response.JSON(w, http.StatusOK, balances)
}

// Finalize handles POST /groups/{id}/finalize
// @Summary      Finalize group balances
// @Description  Plan minimal transfers for the current balances and persist them as Pending settlements. Safe to repeat.
// @Tags         settlements
// @Produce      json
// @Param        id path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=FinalizeResponse}
// @Failure      403 {object} response.APIResponse
// @Security     BearerAuth
// @Router       /groups/{id}/finalize [post]
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	groupID, userID, ok := h.groupAndUser(w, r)
	if !ok {
		return
	}

	result, err := h.service.Finalize(r.Context(), groupID, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotGroupMember):
			response.Forbidden(w, err.Error())
		default:
			response.InternalError(w, "Failed to finalize group")
		}
		return
	}

	response.JSON(w, http.StatusOK, result)
}

// ListByGroup handles GET /groups/{id}/settlements
// @Summary      List a group's settlements
// @Tags         settlements
// @Produce      json
// @Param        id path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=[]Settlement}
// @Failure      403 {object} response.APIResponse
// @Security     BearerAuth
// @Router       /groups/{id}/settlements [get]
func (h *Handler) ListByGroup(w http.ResponseWriter, r *http.Request) {
	groupID, userID, ok := h.groupAndUser(w, r)
	if !ok {
		return
	}

	settlements, err := h.service.ListByGroup(r.Context(), groupID, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotGroupMember):
			response.Forbidden(w, err.Error())
		default:
			response.InternalError(w, "Failed to list settlements")
		}
		return
	}

	response.JSON(w, http.StatusOK, settlements)
}

// Summary handles GET /groups/{id}/settlements/summary
// @Summary      Summarize a group's settlement state
// @Tags         settlements
// @Produce      json
// @Param        id path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=SummaryResponse}
// @Failure      403 {object} response.APIResponse
// @Security     BearerAuth
// @Router       /groups/{id}/settlements/summary [get]
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	groupID, userID, ok := h.groupAndUser(w, r)
	if !ok {
		return
	}

	summary, err := h.service.Summary(r.Context(), groupID, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotGroupMember):
			response.Forbidden(w, err.Error())
		default:
			response.InternalError(w, "Failed to summarize settlements")
		}
		return
	}

	response.JSON(w, http.StatusOK, summary)
}

// History handles GET /settlements/history
// @Summary      Get my settlement history
// @Tags         settlements
// @Produce      json
// @Success      200 {object} response.APIResponse{data=[]Settlement}
// @Security     BearerAuth
// @Router       /settlements/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	settlements, err := h.service.History(r.Context(), userID)
	if err != nil {
		response.InternalError(w, "Failed to get settlement history")
		return
	}

	response.JSON(w, http.StatusOK, settlements)
}

// GetByID handles GET /settlements/{id}
// @Summary      Get settlement by ID
// @Tags         settlements
// @Produce      json
// @Param        id path int true "Settlement ID"
// @Success      200 {object} response.APIResponse{data=Settlement}
// @Failure      404 {object} response.APIResponse
// @Security     BearerAuth
// @Router       /settlements/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, userID, ok := h.settlementAndUser(w, r)
	if !ok {
		return
	}

	settlement, err := h.service.GetByID(r.Context(), id, userID)
	if err != nil {
		h.writeError(w, err, "Failed to get settlement")
		return
	}

	response.JSON(w, http.StatusOK, settlement)
}

// Confirm handles PUT /settlements/{id}/confirm
// @Summary      Confirm a settlement
// @Description  Receiver verifies the payment arrived; the settlement becomes Confirmed. Repeating a confirm succeeds with the existing record.
// @Tags         settlements
// @Accept       json
// @Produce      json
// @Param        id path int true "Settlement ID"
// @Param        request body ConfirmRequest true "Confirmation request"
// @Success      200 {object} response.APIResponse{data=Settlement}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Security     BearerAuth
// @Router       /settlements/{id}/confirm [put]
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, userID, ok := h.settlementAndUser(w, r)
	if !ok {
		return
	}

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	settlement, err := h.service.Confirm(r.Context(), id, userID, &req)
	if err != nil {
		h.writeError(w, err, "Failed to confirm settlement")
		return
	}

	response.JSON(w, http.StatusOK, settlement)
}

// Pay handles POST /settlements/{id}/pay
// @Summary      Pay a settlement
// @Description  Payer reports the payment as sent; the settlement becomes Confirmed.
// @Tags         settlements
// @Accept       json
// @Produce      json
// @Param        id path int true "Settlement ID"
// @Param        request body PayRequest true "Payment request"
// @Success      200 {object} response.APIResponse{data=Settlement}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Security     BearerAuth
// @Router       /settlements/{id}/pay [post]
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	id, userID, ok := h.settlementAndUser(w, r)
	if !ok {
		return
	}

	var req PayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	settlement, err := h.service.Pay(r.Context(), id, userID, &req)
	if err != nil {
		h.writeError(w, err, "Failed to pay settlement")
		return
	}

	response.JSON(w, http.StatusOK, settlement)
}

func (h *Handler) groupAndUser(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	groupID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return 0, 0, false
	}
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return 0, 0, false
	}
	return groupID, userID, true
}

func (h *Handler) settlementAndUser(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid settlement ID")
		return 0, 0, false
	}
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return 0, 0, false
	}
	return id, userID, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrSettlementNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrNotGroupMember), errors.Is(err, ErrNotReceiver), errors.Is(err, ErrNotPayer):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrAmountMismatch):
		response.UnprocessableEntity(w, err.Error())
	default:
		response.InternalError(w, fallback)
	}
}
