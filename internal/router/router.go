package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/contentforge/billing-api/internal/handler"
	accountHandler "github.com/contentforge/billing-api/internal/handler/account"
	billingHandler "github.com/contentforge/billing-api/internal/handler/billing"
	generationHandler "github.com/contentforge/billing-api/internal/handler/generation"
	"github.com/contentforge/billing-api/internal/middleware"
	"github.com/contentforge/billing-api/internal/model"
	"github.com/contentforge/billing-api/internal/plan"
)

type Config struct {
	RateLimit rate.Limit
	RateBurst int
}

type Router struct {
	engine      *gin.Engine
	auth        *middleware.AuthMiddleware
	accountH    *accountHandler.Handler
	billingH    *billingHandler.Handler
	generationH *generationHandler.Handler
	h           *handler.Handler
	config      Config
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	accountH *accountHandler.Handler,
	billingH *billingHandler.Handler,
	generationH *generationHandler.Handler,
	h *handler.Handler,
	catalog *plan.Catalog,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	registerPlanValidation(catalog)

	return &Router{
		engine:      gin.New(),
		auth:        auth,
		accountH:    accountH,
		billingH:    billingH,
		generationH: generationH,
		h:           h,
		config:      config,
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) Setup() {
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.Logger())
	r.engine.Use(rateLimiter(r.config.RateLimit, r.config.RateBurst))

	r.engine.GET("/health/live", r.h.LivenessCheck)
	r.engine.GET("/health/ready", r.h.ReadinessCheck)
	r.engine.GET("/metrics", r.h.MetricsHandler)

	public := r.engine.Group("/api/v1")
	r.accountH.RegisterPublicRoutes(public)

	authed := r.engine.Group("/api/v1")
	authed.Use(r.auth.Authenticate())
	r.accountH.RegisterRoutes(authed)
	r.billingH.RegisterRoutes(authed)
	r.generationH.RegisterRoutes(authed)
}

// registerPlanValidation teaches gin's binding layer the `plan` tag:
// the value must name a catalog plan.
func registerPlanValidation(catalog *plan.Catalog) {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("plan", func(fl validator.FieldLevel) bool {
			return catalog.Known(model.Plan(fl.Field().String()))
		})
	}
}

func rateLimiter(limit rate.Limit, burst int) gin.HandlerFunc {
	limiter := rate.NewLimiter(limit, burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, handler.NewErrorResponse("too many requests"))
			c.Abort()
			return
		}
		c.Next()
	}
}
