package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ContractHandler struct {
	contractService service.ContractService
}

func NewContractHandler(contractService service.ContractService) *ContractHandler {
	return &ContractHandler{contractService: contractService}
}

func (h *ContractHandler) RegisterRoutes(router *gin.RouterGroup) {
	sows := router.Group("/api/sow-contracts")
	{
		sows.GET("/:id/appendices", middleware.RequireRole(model.RoleClient, model.RoleSales, model.RoleAdmin), h.ListAppendices)
		sows.GET("/:id/billing", middleware.RequireRole(model.RoleSales, model.RoleAdmin), h.MonthlyBilling)
		sows.GET("/:id/engineers", middleware.RequireRole(model.RoleClient, model.RoleSales, model.RoleAdmin), h.ListEngineers)
	}

	appendices := router.Group("/api/appendices")
	{
		appendices.POST("/:id/sign", middleware.RequireRole(model.RoleSales, model.RoleAdmin), h.SignAppendix)
	}
}

// ListAppendices godoc
// @Summary      List appendices of a SOW contract
// @Tags         contracts
// @Produce      json
// @Param        id   path      string  true  "SOW contract id"
// @Success      200  {object}  response.Response{data=[]service.AppendixResponse}
// @Security     BearerAuth
// @Router       /api/sow-contracts/{id}/appendices [get]
func (h *ContractHandler) ListAppendices(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	appendices, err := h.contractService.ListAppendices(c.Request.Context(), id)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, appendices))
}

// MonthlyBilling godoc
// @Summary      Billing totals per month for a SOW contract
// @Description  Sums approved change-request deltas grouped by billing month
// @Tags         contracts
// @Produce      json
// @Param        id   path      string  true  "SOW contract id"
// @Success      200  {object}  response.Response{data=[]service.MonthlyBillingResponse}
// @Security     BearerAuth
// @Router       /api/sow-contracts/{id}/billing [get]
func (h *ContractHandler) MonthlyBilling(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	totals, err := h.contractService.MonthlyBilling(c.Request.Context(), id)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, totals))
}

// ListEngineers godoc
// @Summary      List engaged engineers of a SOW contract
// @Tags         contracts
// @Produce      json
// @Param        id   path      string  true  "SOW contract id"
// @Success      200  {object}  response.Response{data=[]service.EngagedEngineerResponse}
// @Security     BearerAuth
// @Router       /api/sow-contracts/{id}/engineers [get]
func (h *ContractHandler) ListEngineers(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	engineers, err := h.contractService.ListEngagedEngineers(c.Request.Context(), id)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, engineers))
}

// SignAppendix godoc
// @Summary      Record the signature timestamp on an appendix
// @Tags         contracts
// @Produce      json
// @Param        id   path      string  true  "Appendix id"
// @Success      200  {object}  response.Response{data=service.AppendixResponse}
// @Security     BearerAuth
// @Router       /api/appendices/{id}/sign [post]
func (h *ContractHandler) SignAppendix(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}

	appendix, err := h.contractService.SignAppendix(c.Request.Context(), id, actor)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, appendix))
}
