package billing

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contentforge/billing-api/internal/handler"
	"github.com/contentforge/billing-api/internal/middleware"
	"github.com/contentforge/billing-api/internal/model"
	billingService "github.com/contentforge/billing-api/internal/service/billing"
)

type Handler struct {
	service *billingService.Service
}

func NewHandler(service *billingService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	billing := r.Group("/billing")
	{
		billing.POST("/checkout", h.CreateCheckout)
		billing.GET("/verify/:reference", h.VerifyPayment)
		billing.POST("/free-plan", h.EnrollFreePlan)
		billing.GET("/payments", h.ListPayments)
	}
}

type checkoutRequest struct {
	AmountCents int64  `json:"amount_cents" binding:"required"`
	Plan        string `json:"plan" binding:"required,plan"`
}

func (h *Handler) CreateCheckout(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authorized"))
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	checkout, err := h.service.CreateCheckout(c.Request.Context(), accountID, req.AmountCents, model.Plan(req.Plan))
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(checkout))
}

func (h *Handler) VerifyPayment(c *gin.Context) {
	reference := c.Param("reference")
	if reference == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("payment reference is required"))
		return
	}

	result, err := h.service.VerifyPayment(c.Request.Context(), reference)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) EnrollFreePlan(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authorized"))
		return
	}

	result, err := h.service.EnrollFreePlan(c.Request.Context(), accountID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) ListPayments(c *gin.Context) {
	accountID, ok := middleware.AccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authorized"))
		return
	}

	payments, err := h.service.ListPayments(c.Request.Context(), accountID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(payments))
}
