package generation

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/contentforge/billing-api/internal/handler"
	"github.com/contentforge/billing-api/internal/middleware"
	meteringService "github.com/contentforge/billing-api/internal/service/metering"
)

type Handler struct {
	service *meteringService.Service
}

func NewHandler(service *meteringService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/generate", h.Generate)
	r.GET("/history", h.History)
}

type generateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

func (h *Handler) Generate(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authorized"))
		return
	}

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	entry, err := h.service.AdmitAndRun(c.Request.Context(), accountID, req.Prompt)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"content": entry.Content, "id": entry.ID}))
}

func (h *Handler) History(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authorized"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := h.service.History(c.Request.Context(), accountID, limit)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(entries))
}
