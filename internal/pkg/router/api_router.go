package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/itbfess/ITBFess/app/controllers"
	"github.com/itbfess/ITBFess/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())

	// verification
	api.Post("/otp/request", controllers.HandleRequestOTP)
	api.Post("/otp/verify", controllers.HandleVerifyOTP)

	// menfess submission
	api.Post("/menfess", controllers.HandleSubmitMenfess)
	api.Get("/menfess/status", controllers.HandleQuotaStatus)

	// paid posting
	api.Post("/payments", controllers.HandleCreatePaidMenfess)
	api.Post("/payments/callback", controllers.HandlePaymentCallback)
	api.Get("/payments/:merchantRef", controllers.HandlePaymentStatus)

	// community moderation
	api.Post("/votes", controllers.HandleSubmitVote)
	api.Get("/votes/confirm", controllers.HandleConfirmVotes)

	// profiles
	api.Put("/profile/alias", controllers.HandleSetAlias)
	api.Get("/leaderboard", controllers.HandleLeaderboard)

	// admin
	api.Post("/admin/login", controllers.HandleAdminLogin)
	admin := api.Group("/admin", middleware.RequireAdmin)
	admin.Get("/queue", controllers.HandleAdminQueue)
	admin.Put("/queue/:id/status", controllers.HandleSetPostStatus)
	admin.Post("/queue/batch", controllers.HandleBatchStatus)
	admin.Post("/queue/notify", controllers.HandleNotifyBatch)
	admin.Post("/queue/:id/notify", controllers.HandleNotify)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
