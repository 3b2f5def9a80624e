// handlers/account.go
package handlers

import (
	"casino-wager-system/middleware"
	"casino-wager-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAccountRoutes(app *fiber.App, accountService *services.AccountService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/account/balance", accountService.GetBalance)
	secured.Get("/account/transactions", accountService.GetTransactions)
	secured.Post("/account/bonus", accountService.ClaimDailyBonus)
	secured.Post("/account/tip", accountService.Tip)
	secured.Post("/account/referral/claim", accountService.ClaimReferralEarnings)

	// Admin-only ledger snapshot to object storage
	admin := app.Group("/admin", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))
	admin.Post("/backup", accountService.Backup)
}
