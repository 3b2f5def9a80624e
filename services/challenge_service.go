package services

import (
	"errors"
	"log"

	"casino-wager-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// ChallengeService exposes the PvP challenge lifecycle and the vs-house
// games over HTTP. All mutation goes through the registry's single gate.
type ChallengeService struct {
	Registry   *ChallengeRegistry
	HouseGames *HouseGameService
	Outcomes   OutcomeSource
}

func NewChallengeService(registry *ChallengeRegistry, houseGames *HouseGameService, outcomes OutcomeSource) *ChallengeService {
	return &ChallengeService{
		Registry:   registry,
		HouseGames: houseGames,
		Outcomes:   outcomes,
	}
}

type createChallengeRequest struct {
	ContestType string  `json:"contest_type"`
	Wager       float64 `json:"wager"`
	OpponentID  string  `json:"opponent_id,omitempty"`
	ChatContext string  `json:"chat_context,omitempty"`
}

// CreateChallenge opens a new PvP challenge, debiting the challenger's
// stake up front.
func (s *ChallengeService) CreateChallenge(c *fiber.Ctx) error {
	var req createChallengeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	userID := c.Locals("user_id").(string)

	ch, err := s.Registry.Create(CreateParams{
		ContestType:  models.ContestType(req.ContestType),
		Wager:        decimal.NewFromFloat(req.Wager),
		ChallengerID: userID,
		OpponentID:   req.OpponentID,
		ChatContext:  req.ChatContext,
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return c.Status(400).JSON(fiber.Map{"error": "insufficient balance"})
		}
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(201).JSON(challengeView(ch))
}

// AcceptChallenge joins the caller as opponent; their stake must clear or
// the challenge stays open.
func (s *ChallengeService) AcceptChallenge(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	ch, err := s.Registry.Mutate(c.Params("id"), ChallengeEvent{Kind: EventAccept, ActorID: userID})
	if err != nil {
		return s.challengeError(c, err)
	}
	return c.JSON(challengeView(ch))
}

// DeclineChallenge cancels an unaccepted challenge and refunds the
// challenger's stake.
func (s *ChallengeService) DeclineChallenge(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	ch, err := s.Registry.Mutate(c.Params("id"), ChallengeEvent{Kind: EventDecline, ActorID: userID})
	if err != nil {
		return s.challengeError(c, err)
	}
	return c.JSON(challengeView(ch))
}

// SubmitRoll generates the caller's outcome and feeds it into the
// lifecycle. Whose turn it is falls out of the challenge state; a roll
// from the wrong side is rejected without a state change.
func (s *ChallengeService) SubmitRoll(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	id := c.Params("id")

	current, err := s.Registry.Get(id)
	if err != nil {
		return s.challengeError(c, err)
	}
	outcome, err := s.Outcomes.Next(current.ContestType)
	if err != nil {
		log.Printf("❌ [Challenge] Outcome generation failed for %s: %v", id, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to generate outcome"})
	}

	ch, err := s.Registry.Mutate(id, ChallengeEvent{
		Kind:    EventSubmitOutcome,
		ActorID: userID,
		Outcome: outcome,
	})
	if err != nil {
		return s.challengeError(c, err)
	}
	return c.JSON(fiber.Map{
		"challenge": challengeView(ch),
		"outcome":   outcome,
	})
}

// GetChallenge returns one live challenge.
func (s *ChallengeService) GetChallenge(c *fiber.Ctx) error {
	ch, err := s.Registry.Get(c.Params("id"))
	if err != nil {
		return s.challengeError(c, err)
	}
	return c.JSON(challengeView(ch))
}

// ListOpenChallenges returns challenges still waiting for an opponent.
func (s *ChallengeService) ListOpenChallenges(c *fiber.Ctx) error {
	open := s.Registry.ListOpen()
	views := make([]fiber.Map, 0, len(open))
	for _, ch := range open {
		views = append(views, challengeView(ch))
	}
	return c.JSON(fiber.Map{"challenges": views, "count": len(views)})
}

type houseGameRequest struct {
	Wager       float64 `json:"wager"`
	Choice      string  `json:"choice,omitempty"`
	ChatContext string  `json:"chat_context,omitempty"`
}

// PlayDice resolves an instant dice game against the house.
func (s *ChallengeService) PlayDice(c *fiber.Ctx) error {
	var req houseGameRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	userID := c.Locals("user_id").(string)

	res, err := s.HouseGames.PlayDice(userID, decimal.NewFromFloat(req.Wager), req.ChatContext)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return c.Status(400).JSON(fiber.Map{"error": "insufficient balance"})
		}
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(res)
}

// PlayCoinflip resolves an instant coin flip against the house.
func (s *ChallengeService) PlayCoinflip(c *fiber.Ctx) error {
	var req houseGameRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	userID := c.Locals("user_id").(string)

	res, err := s.HouseGames.PlayCoinflip(userID, decimal.NewFromFloat(req.Wager), req.Choice, req.ChatContext)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return c.Status(400).JSON(fiber.Map{"error": "insufficient balance"})
		}
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(res)
}

// challengeError maps lifecycle errors onto HTTP responses. Not-found on
// a direct user command means the challenge was already settled — the
// user gets told so, unlike the scheduler which drops it.
func (s *ChallengeService) challengeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrChallengeNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "challenge already settled or does not exist"})
	case errors.Is(err, ErrInvalidTransition):
		return c.Status(409).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrInsufficientFunds):
		return c.Status(400).JSON(fiber.Map{"error": "insufficient balance"})
	}
	log.Printf("❌ [Challenge] Unexpected error: %v", err)
	return c.Status(500).JSON(fiber.Map{"error": "internal error"})
}

func challengeView(ch *models.Challenge) fiber.Map {
	view := fiber.Map{
		"id":            ch.ID,
		"contest_type":  ch.ContestType,
		"wager":         ch.Wager,
		"challenger_id": ch.ChallengerID,
		"state":         ch.State,
		"created_at":    ch.CreatedAt,
	}
	if ch.OpponentID != "" {
		view["opponent_id"] = ch.OpponentID
	}
	if ch.ChallengerOutcome != nil {
		view["challenger_outcome"] = *ch.ChallengerOutcome
	}
	if ch.OpponentOutcome != nil {
		view["opponent_outcome"] = *ch.OpponentOutcome
	}
	return view
}
