// handlers/challenge.go
package handlers

import (
	"casino-wager-system/middleware"
	"casino-wager-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupChallengeRoutes(app *fiber.App, challengeService *services.ChallengeService) {
	// 🔐 Secured routes — require user context (userID, roles), enforced via middleware
	secured := app.Group("/", middleware.UserContextMiddleware())

	// PvP challenge lifecycle
	secured.Post("/challenges", challengeService.CreateChallenge)
	secured.Get("/challenges", challengeService.ListOpenChallenges)
	secured.Get("/challenges/:id", challengeService.GetChallenge)
	secured.Post("/challenges/:id/accept", challengeService.AcceptChallenge)
	secured.Post("/challenges/:id/decline", challengeService.DeclineChallenge)
	secured.Post("/challenges/:id/roll", challengeService.SubmitRoll)

	// Instant games against the house
	secured.Post("/games/dice", challengeService.PlayDice)
	secured.Post("/games/coinflip", challengeService.PlayCoinflip)
}
