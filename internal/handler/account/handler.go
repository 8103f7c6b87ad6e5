package account

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contentforge/billing-api/internal/handler"
	"github.com/contentforge/billing-api/internal/middleware"
	"github.com/contentforge/billing-api/internal/model"
	accountService "github.com/contentforge/billing-api/internal/service/account"
)

type Handler struct {
	service *accountService.Service
}

func NewHandler(service *accountService.Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes wires the unauthenticated account endpoints.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/accounts", h.CreateAccount)
}

// RegisterRoutes wires the authenticated account endpoints.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/me", h.GetAccount)
}

type createAccountRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h *Handler) CreateAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	acc, err := h.service.CreateAccount(c.Request.Context(), &model.CreateAccountRequest{Email: req.Email})
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(acc))
}

func (h *Handler) GetAccount(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authorized"))
		return
	}

	acc, err := h.service.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(acc))
}
