package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/collegehub-api/internal/handler"
	"github.com/noah-isme/collegehub-api/internal/middleware"
	"github.com/noah-isme/collegehub-api/internal/models"
)

// Handlers bundles every HTTP handler mounted by Setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	Colleges      *handler.CollegeHandler
	Users         *handler.UserHandler
	Resources     *handler.ResourceHandler
	Payments      *handler.PaymentHandler
	AccessHistory *handler.AccessHistoryHandler
}

// Dependencies are the collaborators the route middleware needs.
type Dependencies struct {
	Tokens      middleware.TokenValidator
	Users       middleware.UserResolver
	Audit       middleware.AuditWriter
	PaymentRate *middleware.RateLimiter
	Logger      *zap.Logger
}

// Setup mounts the API under prefix.
func Setup(r *gin.Engine, prefix string, h Handlers, deps Dependencies) {
	api := r.Group(prefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
	}

	api.GET("/colleges", h.Colleges.List)
	api.GET("/colleges/:id", h.Colleges.Get)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.Tokens))

	secured.GET("/me", h.Users.Me)
	secured.GET("/me/accesses", h.AccessHistory.List)
	secured.GET("/me/accesses/export", h.AccessHistory.Export)

	secured.GET("/colleges/:id/resources", h.Resources.Hierarchy)
	secured.POST("/colleges/:id/resources",
		middleware.RequireRoles(deps.Users, models.RoleModerator, models.RoleAdmin),
		h.Resources.Upload)

	resources := secured.Group("/resources")
	{
		resources.GET("/:id", h.Resources.GetFile)
		resources.GET("/:id/access", h.Resources.CanAccess)
		resources.DELETE("/:id",
			middleware.RequireRoles(deps.Users, models.RoleModerator, models.RoleAdmin),
			h.Resources.Delete)
		resources.POST("/:id/payments",
			deps.PaymentRate.Middleware(),
			middleware.Audit(deps.Audit, deps.Logger, models.AuditActionPaymentInitiate, "resource", "id"),
			h.Payments.Initiate)
	}
	secured.GET("/downloads", h.Resources.Download)

	payments := secured.Group("/payments")
	{
		payments.GET("/:sessionId", h.Payments.Get)
		payments.POST("/:sessionId/verify",
			deps.PaymentRate.Middleware(),
			middleware.Audit(deps.Audit, deps.Logger, models.AuditActionPaymentVerify, "payment_session", "sessionId"),
			h.Payments.Verify)
	}

	admin := secured.Group("")
	admin.Use(middleware.RequireRoles(deps.Users, models.RoleAdmin))
	{
		admin.POST("/colleges", h.Colleges.Approve)
		admin.DELETE("/colleges/:id", h.Colleges.Remove)
		admin.PUT("/users/:id/moderator", h.Users.AssignModerator)
		admin.DELETE("/users/:id/moderator", h.Users.RevokeModerator)
	}
}
