package group

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fairsplit/fairsplit/pkg/middleware"
	"github.com/fairsplit/fairsplit/pkg/response"
)

// Handler handles HTTP requests for group operations
type Handler struct {
	service *Service
}

// NewHandler creates a new group handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for group endpoints. Other features register
// their group-scoped routes (balances, finalize, expenses) via extra.
func (h *Handler) Routes(extra ...func(chi.Router)) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Post("/join/{code}", h.Join)
	r.Get("/{id}", h.GetByID)
	r.Get("/{id}/invite-code", h.GetInviteCode)
	r.Post("/{id}/settlement-period", h.SetPeriod)
	r.Get("/{id}/settlement-period", h.GetPeriod)

	for _, register := range extra {
		register(r)
	}

	return r
}

// Create handles POST /groups
// @Summary      Create a group
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        request body CreateGroupRequest true "Group creation request"
// @Success      201 {object} response.APIResponse{data=GroupResponse}
// @Failure      400 {object} response.APIResponse
// @Security     BearerAuth
// @Router       /groups [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if req.Name == "" {
		response.BadRequest(w, "Group name is required")
		return
	}

	group, err := h.service.Create(r.Context(), userID, &req)
	if err != nil {
		response.InternalError(w, "Failed to create group")
		return
	}

	response.JSON(w, http.StatusCreated, group.ToResponse(nil))
}

// List handles GET /groups
// @Summary      List my groups
// @Tags         groups
// @Produce      json
// @Success      200 {object} response.APIResponse{data=[]GroupResponse}
// @Security     BearerAuth
// @Router       /groups [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	groups, err := h.service.ListForUser(r.Context(), userID)
	if err != nil {
		response.InternalError(w, "Failed to list groups")
		return
	}

	responses := make([]*GroupResponse, len(groups))
	for i, g := range groups {
		responses[i] = g.ToResponse(nil)
	}

	response.JSON(w, http.StatusOK, responses)
}

// GetByID handles GET /groups/{id}
// @Summary      Get group with members
// @Tags         groups
// @Produce      json
// @Param        id path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=GroupResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Security     BearerAuth
// @Router       /groups/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	groupID, userID, ok := h.groupAndUser(w, r)
	if !ok {
		return
	}

	group, members, err := h.service.GetWithMembers(r.Context(), groupID, userID)
	if err != nil {
		h.writeError(w, err, "Failed to get group")
		return
	}

	response.JSON(w, http.StatusOK, group.ToResponse(members))
}

// Join handles POST /groups/join/{code}
// @Summary      Join a group by invite code
// @Tags         groups
// @Produce      json
// @Param        code path string true "Invite code"
// @Success      200 {object} response.APIResponse{data=GroupResponse}
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Security     BearerAuth
// @Router       /groups/join/{code} [post]
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	code := chi.URLParam(r, "code")
	group, err := h.service.Join(r.Context(), userID, code)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInvite):
			response.NotFound(w, err.Error())
		case errors.Is(err, ErrAlreadyMember):
			response.Conflict(w, err.Error())
		default:
			response.InternalError(w, "Failed to join group")
		}
		return
	}

	response.JSON(w, http.StatusOK, group.ToResponse(nil))
}

// GetInviteCode handles GET /groups/{id}/invite-code
// @Summary      Get a group's invite code
// @Tags         groups
// @Produce      json
// @Param        id path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=InviteCodeResponse}
// @Failure      403 {object} response.APIResponse
// @Security     BearerAuth
// @Router       /groups/{id}/invite-code [get]
func (h *Handler) GetInviteCode(w http.ResponseWriter, r *http.Request) {
	groupID, userID, ok := h.groupAndUser(w, r)
	if !ok {
		return
	}

	code, err := h.service.InviteCode(r.Context(), groupID, userID)
	if err != nil {
		h.writeError(w, err, "Failed to get invite code")
		return
	}

	response.JSON(w, http.StatusOK, &InviteCodeResponse{GroupID: groupID, InviteCode: code})
}

// SetPeriod handles POST /groups/{id}/settlement-period
// @Summary      Configure the settlement period
// @Description  Set how often the group's splits are auto-finalized (admin only)
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        request body SetPeriodRequest true "Period, e.g. {\"period\":\"1d\"}"
// @Success      200 {object} response.APIResponse{data=PeriodResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Security     BearerAuth
// @Router       /groups/{id}/settlement-period [post]
func (h *Handler) SetPeriod(w http.ResponseWriter, r *http.Request) {
	groupID, userID, ok := h.groupAndUser(w, r)
	if !ok {
		return
	}

	var req SetPeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	sp, err := h.service.SetPeriod(r.Context(), groupID, userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidPeriod):
			response.BadRequest(w, err.Error())
		case errors.Is(err, ErrAdminRequired):
			response.Forbidden(w, err.Error())
		case errors.Is(err, ErrNotMember):
			response.Forbidden(w, err.Error())
		default:
			response.InternalError(w, "Failed to set settlement period")
		}
		return
	}

	response.JSON(w, http.StatusOK, sp.ToResponse())
}

// GetPeriod handles GET /groups/{id}/settlement-period
// @Summary      Get the settlement period
// @Tags         groups
// @Produce      json
// @Param        id path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=PeriodResponse}
// @Failure      404 {object} response.APIResponse
// @Security     BearerAuth
// @Router       /groups/{id}/settlement-period [get]
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	groupID, userID, ok := h.groupAndUser(w, r)
	if !ok {
		return
	}

	sp, err := h.service.GetPeriod(r.Context(), groupID, userID)
	if err != nil {
		h.writeError(w, err, "Failed to get settlement period")
		return
	}

	response.JSON(w, http.StatusOK, sp.ToResponse())
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

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrGroupNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrNotMember):
		response.Forbidden(w, err.Error())
	default:
		response.InternalError(w, fallback)
	}
}
