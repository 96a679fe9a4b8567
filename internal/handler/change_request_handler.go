package handler

import (
	"context"
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ChangeRequestHandler struct {
	crService service.ChangeRequestService
}

func NewChangeRequestHandler(crService service.ChangeRequestService) *ChangeRequestHandler {
	return &ChangeRequestHandler{crService: crService}
}

func (h *ChangeRequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	crs := router.Group("/api/change-requests")
	{
		crs.POST("", middleware.RequireRole(model.RoleClient, model.RoleSales, model.RoleAdmin), h.Create)
		crs.GET("", middleware.RequireRole(model.RoleClient, model.RoleSales, model.RoleAdmin), h.List)
		crs.GET("/:id", middleware.RequireRole(model.RoleClient, model.RoleSales, model.RoleAdmin), h.Get)
		crs.PUT("/:id", middleware.RequireRole(model.RoleClient, model.RoleSales, model.RoleAdmin), h.Update)
		crs.GET("/:id/history", middleware.RequireRole(model.RoleClient, model.RoleSales, model.RoleAdmin), h.GetHistory)
		crs.GET("/:id/billing-events", middleware.RequireRole(model.RoleSales, model.RoleAdmin), h.GetBillingEvents)

		crs.POST("/:id/submit", middleware.RequireRole(model.RoleClient, model.RoleSales, model.RoleAdmin), h.Submit)
		crs.POST("/:id/resubmit", middleware.RequireRole(model.RoleClient, model.RoleSales, model.RoleAdmin), h.Resubmit)
		crs.POST("/:id/start-processing", middleware.RequireRole(model.RoleSales, model.RoleAdmin), h.StartProcessing)
		crs.POST("/:id/assign-reviewer", middleware.RequireRole(model.RoleSales, model.RoleAdmin), h.AssignReviewer)
		crs.POST("/:id/approve", middleware.RequireRole(model.RoleSales, model.RoleAdmin), h.Approve)
		crs.POST("/:id/request-change", middleware.RequireRole(model.RoleSales, model.RoleAdmin), h.RequestChange)
		crs.POST("/:id/reject", middleware.RequireRole(model.RoleSales, model.RoleAdmin), h.Reject)
		crs.POST("/:id/activate", middleware.RequireRole(model.RoleSales, model.RoleAdmin), h.Activate)
		crs.POST("/:id/terminate", middleware.RequireRole(model.RoleClient, model.RoleSales, model.RoleAdmin), h.Terminate)
	}
}

// actorID extracts the authenticated user id set by the auth middleware.
func actorID(c *gin.Context) (uuid.UUID, bool) {
	raw, _ := c.Get("userID")
	s, _ := raw.(string)
	id, err := uuid.Parse(s)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "invalid user identity"))
		return uuid.Nil, false
	}
	return id, true
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid id"))
		return uuid.Nil, false
	}
	return id, true
}

// Create godoc
// @Summary      Create change request
// @Description  Creates a change request on an MSA or SOW contract, as a draft or submitted directly
// @Tags         change-requests
// @Accept       json
// @Produce      json
// @Param        request  body      service.CreateChangeRequestDTO  true  "Change request fields"
// @Success      201      {object}  response.Response{data=service.ChangeRequestResponse}
// @Security     BearerAuth
// @Router       /api/change-requests [post]
func (h *ChangeRequestHandler) Create(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req service.CreateChangeRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	result, err := h.crService.Create(c.Request.Context(), actor, req)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// List godoc
// @Summary      List change requests
// @Tags         change-requests
// @Produce      json
// @Param        status           query  string  false  "Filter by status"
// @Param        sow_contract_id  query  string  false  "Filter by SOW contract"
// @Param        page             query  int     false  "Page"
// @Param        limit            query  int     false  "Limit"
// @Success      200  {object}  response.Response{data=object}
// @Security     BearerAuth
// @Router       /api/change-requests [get]
func (h *ChangeRequestHandler) List(c *gin.Context) {
	params := pagination.Parse(c)
	filter := repository.ChangeRequestFilter{
		Status:       c.Query("status"),
		ContractKind: c.Query("contract_kind"),
		Page:         params.Page,
		Limit:        params.Limit,
	}
	if raw := c.Query("sow_contract_id"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			filter.SOWContractID = &id
		}
	}
	if raw := c.Query("contract_id"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			filter.ContractID = &id
		}
	}

	// Clients only ever see their own change requests.
	if role, _ := c.Get("userRole"); role == model.RoleClient {
		actor, ok := actorID(c)
		if !ok {
			return
		}
		filter.CreatedBy = &actor
	}

	crs, total, err := h.crService.List(c.Request.Context(), filter)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"change_requests": crs,
		"meta":            pagination.BuildMeta(params, total),
	}))
}

// Get godoc
// @Summary      Get change request detail
// @Tags         change-requests
// @Produce      json
// @Param        id   path      string  true  "Change request id"
// @Success      200  {object}  response.Response{data=service.ChangeRequestResponse}
// @Security     BearerAuth
// @Router       /api/change-requests/{id} [get]
func (h *ChangeRequestHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	result, err := h.crService.Get(c.Request.Context(), id)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// Update godoc
// @Summary      Edit change request content
// @Description  Allowed only while the change request is in Draft or Request for Change
// @Tags         change-requests
// @Accept       json
// @Produce      json
// @Param        id       path      string                          true  "Change request id"
// @Param        request  body      service.UpdateChangeRequestDTO  true  "Fields to update"
// @Success      200      {object}  response.Response{data=service.ChangeRequestResponse}
// @Security     BearerAuth
// @Router       /api/change-requests/{id} [put]
func (h *ChangeRequestHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req service.UpdateChangeRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	result, err := h.crService.Update(c.Request.Context(), id, actor, req)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// GetHistory godoc
// @Summary      Get change request history
// @Tags         change-requests
// @Produce      json
// @Param        id   path      string  true  "Change request id"
// @Success      200  {object}  response.Response{data=[]service.HistoryEntryResponse}
// @Security     BearerAuth
// @Router       /api/change-requests/{id}/history [get]
func (h *ChangeRequestHandler) GetHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	entries, err := h.crService.GetHistory(c.Request.Context(), id)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, entries))
}

// GetBillingEvents godoc
// @Summary      Get billing ledger entries of a change request
// @Tags         change-requests
// @Produce      json
// @Param        id   path      string  true  "Change request id"
// @Success      200  {object}  response.Response{data=[]service.BillingEventResponse}
// @Security     BearerAuth
// @Router       /api/change-requests/{id}/billing-events [get]
func (h *ChangeRequestHandler) GetBillingEvents(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	events, err := h.crService.GetBillingEvents(c.Request.Context(), id)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, events))
}

// Submit godoc
// @Summary      Submit a draft change request
// @Tags         change-requests
// @Produce      json
// @Param        id   path      string  true  "Change request id"
// @Success      200  {object}  response.Response
// @Security     BearerAuth
// @Router       /api/change-requests/{id}/submit [post]
func (h *ChangeRequestHandler) Submit(c *gin.Context) {
	h.simpleTransition(c, h.crService.Submit)
}

// Resubmit godoc
// @Summary      Resubmit after changes were requested
// @Tags         change-requests
// @Produce      json
// @Param        id   path      string  true  "Change request id"
// @Success      200  {object}  response.Response
// @Security     BearerAuth
// @Router       /api/change-requests/{id}/resubmit [post]
func (h *ChangeRequestHandler) Resubmit(c *gin.Context) {
	h.simpleTransition(c, h.crService.Resubmit)
}

// StartProcessing godoc
// @Summary      Move a pending change request into processing
// @Tags         change-requests
// @Produce      json
// @Param        id   path      string  true  "Change request id"
// @Success      200  {object}  response.Response
// @Security     BearerAuth
// @Router       /api/change-requests/{id}/start-processing [post]
func (h *ChangeRequestHandler) StartProcessing(c *gin.Context) {
	h.simpleTransition(c, h.crService.StartProcessing)
}

type assignReviewerRequest struct {
	ReviewerID string `json:"reviewer_id" binding:"required"`
}

// AssignReviewer godoc
// @Summary      Assign the internal reviewer
// @Tags         change-requests
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Change request id"
// @Param        request  body      assignReviewerRequest  true  "Reviewer"
// @Success      200      {object}  response.Response
// @Security     BearerAuth
// @Router       /api/change-requests/{id}/assign-reviewer [post]
func (h *ChangeRequestHandler) AssignReviewer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req assignReviewerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	reviewerID, err := uuid.Parse(req.ReviewerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid reviewer id"))
		return
	}

	if err := h.crService.AssignReviewer(c.Request.Context(), id, actor, reviewerID); err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, nil))
}

// Approve godoc
// @Summary      Approve a change request
// @Description  Atomically records billing deltas, assigns the appendix number and logs history
// @Tags         change-requests
// @Accept       json
// @Produce      json
// @Param        id       path      string                           true  "Change request id"
// @Param        request  body      service.ApproveChangeRequestDTO  true  "Billing deltas or staffing"
// @Success      200      {object}  response.Response{data=service.ApproveResult}
// @Security     BearerAuth
// @Router       /api/change-requests/{id}/approve [post]
func (h *ChangeRequestHandler) Approve(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req service.ApproveChangeRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	result, err := h.crService.Approve(c.Request.Context(), id, actor, req)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// RequestChange godoc
// @Summary      Send a change request back for changes
// @Tags         change-requests
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true   "Change request id"
// @Param        request  body      service.RequestChangeDTO  false  "Optional reviewer message"
// @Success      200      {object}  response.Response
// @Security     BearerAuth
// @Router       /api/change-requests/{id}/request-change [post]
func (h *ChangeRequestHandler) RequestChange(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req service.RequestChangeDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		// Allow empty body, message is optional
		req.Message = ""
	}

	if err := h.crService.RequestChange(c.Request.Context(), id, actor, req.Message); err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, nil))
}

// Reject godoc
// @Summary      Reject a change request
// @Tags         change-requests
// @Produce      json
// @Param        id   path      string  true  "Change request id"
// @Success      200  {object}  response.Response
// @Security     BearerAuth
// @Router       /api/change-requests/{id}/reject [post]
func (h *ChangeRequestHandler) Reject(c *gin.Context) {
	h.simpleTransition(c, h.crService.Reject)
}

// Activate godoc
// @Summary      Activate an approved change request
// @Tags         change-requests
// @Produce      json
// @Param        id   path      string  true  "Change request id"
// @Success      200  {object}  response.Response
// @Security     BearerAuth
// @Router       /api/change-requests/{id}/activate [post]
func (h *ChangeRequestHandler) Activate(c *gin.Context) {
	h.simpleTransition(c, h.crService.Activate)
}

// Terminate godoc
// @Summary      Terminate a change request
// @Tags         change-requests
// @Produce      json
// @Param        id   path      string  true  "Change request id"
// @Success      200  {object}  response.Response
// @Security     BearerAuth
// @Router       /api/change-requests/{id}/terminate [post]
func (h *ChangeRequestHandler) Terminate(c *gin.Context) {
	h.simpleTransition(c, h.crService.Terminate)
}

func (h *ChangeRequestHandler) simpleTransition(c *gin.Context, fn func(ctx context.Context, crID, actorID uuid.UUID) error) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	if err := fn(c.Request.Context(), id, actor); err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, nil))
}
