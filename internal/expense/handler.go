package expense

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fairsplit/fairsplit/internal/balance"
	"github.com/fairsplit/fairsplit/internal/expense/split"
	"github.com/fairsplit/fairsplit/pkg/middleware"
	"github.com/fairsplit/fairsplit/pkg/response"
)

// Handler handles HTTP requests for expense operations
type Handler struct {
	service *Service
}

// NewHandler creates a new expense handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for expense endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/split", h.CreateSplit)
	r.Get("/{id}", h.GetByID)

	return r
}

// RegisterGroupRoutes mounts the group-scoped expense endpoints on the
// groups router.
func (h *Handler) RegisterGroupRoutes(r chi.Router) {
	r.Get("/{id}/expenses", h.ListByGroup)
}

// CreateSplit handles POST /expenses/split
// @Summary      Log a split expense
// @Description  Append an expense to the group ledger, split EQUAL by default
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Param        request body CreateSplitRequest true "Expense creation request"
// @Success      201 {object} response.APIResponse{data=ExpenseResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Security     BearerAuth
// @Router       /expenses/split [post]
func (h *Handler) CreateSplit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req CreateSplitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if req.Description == "" {
		response.BadRequest(w, "Description is required")
		return
	}

	expense, err := h.service.CreateSplit(r.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotGroupMember):
			response.Forbidden(w, err.Error())
		case errors.Is(err, ErrInvalidAmount),
			errors.Is(err, ErrParticipantNotMember),
			errors.Is(err, ErrParticipantsForbidden),
			errors.Is(err, split.ErrNoParticipants),
			errors.Is(err, split.ErrInvalidPercentages),
			errors.Is(err, split.ErrInvalidExactAmounts),
			errors.Is(err, split.ErrNegativeAmount),
			errors.Is(err, split.ErrMissingPercentage),
			errors.Is(err, split.ErrMissingExactAmount),
			errors.Is(err, split.ErrPercentageOutOfRange),
			errors.Is(err, split.ErrPayerNotParticipant):
			response.UnprocessableEntity(w, err.Error())
		default:
			response.InternalError(w, "Failed to create expense")
		}
		return
	}

	response.JSON(w, http.StatusCreated, expense.ToResponse())
}

// GetByID handles GET /expenses/{id}
// @Summary      Get expense by ID
// @Tags         expenses
// @Produce      json
// @Param        id path int true "Expense ID"
// @Success      200 {object} response.APIResponse{data=ExpenseResponse}
// @Failure      404 {object} response.APIResponse
// @Security     BearerAuth
// @Router       /expenses/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid expense ID")
		return
	}

	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	expense, err := h.service.GetByID(r.Context(), id, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrExpenseNotFound):
			response.NotFound(w, err.Error())
		case errors.Is(err, ErrNotGroupMember):
			response.Forbidden(w, err.Error())
		default:
			response.InternalError(w, "Failed to get expense")
		}
		return
	}

	response.JSON(w, http.StatusOK, expense.ToResponse())
}

// ListByGroup handles GET /groups/{id}/expenses
// @Summary      List a group's expenses
// @Tags         expenses
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        window query string false "Window keyword" Enums(day, week, month, year, all)
// @Success      200 {object} response.APIResponse{data=[]ExpenseResponse}
// @Failure      403 {object} response.APIResponse
// @Security     BearerAuth
// @Router       /groups/{id}/expenses [get]
func (h *Handler) ListByGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	expenses, err := h.service.ListByGroup(r.Context(), groupID, userID, r.URL.Query().Get("window"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotGroupMember):
			response.Forbidden(w, err.Error())
		case errors.Is(err, balance.ErrUnknownWindow):
			response.BadRequest(w, err.Error())
		default:
			response.InternalError(w, "Failed to list expenses")
		}
		return
	}

	responses := make([]*ExpenseResponse, len(expenses))
	for i, e := range expenses {
		responses[i] = e.ToResponse()
	}

	response.JSON(w, http.StatusOK, responses)
}
