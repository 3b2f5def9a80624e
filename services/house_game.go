package services

import (
	"fmt"

	"casino-wager-system/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction kinds written by vs-house play.
const (
	TxDiceBot     = "dice_bot"
	TxCoinflipBot = "coinflip_bot"
)

// HouseGameService resolves instant games against the house. No opponent
// matching and no timeout machinery: the stake moves to the house up
// front and the payout (if any) comes straight back out of the house
// account. Both legs are atomic ledger transfers keyed on the game ID, so
// an interrupted game never strands funds between the two accounts and
// conservation holds game by game.
type HouseGameService struct {
	Ledger      Ledger
	Outcomes    OutcomeSource
	Progression *ProgressionService
	Notifier    Notifier
}

func NewHouseGameService(ledger Ledger, outcomes OutcomeSource, progression *ProgressionService, notifier Notifier) *HouseGameService {
	return &HouseGameService{
		Ledger:      ledger,
		Outcomes:    outcomes,
		Progression: progression,
		Notifier:    notifier,
	}
}

// DiceResult is the outcome of one dice game against the house.
type DiceResult struct {
	PlayerRoll int             `json:"player_roll"`
	HouseRoll  int             `json:"house_roll"`
	Result     string          `json:"result"` // win / loss / draw
	Payout     decimal.Decimal `json:"payout"`
}

// PlayDice rolls player and house dice for the wager. Higher roll wins
// 2x; a draw refunds the stake (vs-house dice keeps the friendly tie
// rule — the harsher bot-fallback PvP mode is ContestDiceBot).
func (s *HouseGameService) PlayDice(userID string, wager decimal.Decimal, chatContext string) (*DiceResult, error) {
	if !wager.IsPositive() {
		return nil, fmt.Errorf("wager must be positive, got %s", wager)
	}

	gameID := uuid.NewString()
	if err := s.Ledger.Transfer(userID, HouseAccountID, TxDiceBot, wager,
		gameID+":stake", "Dice vs House stake"); err != nil {
		return nil, err
	}

	playerRoll, err := s.Outcomes.Next(models.ContestDice)
	if err != nil {
		return nil, err
	}
	houseRoll, err := s.Outcomes.Next(models.ContestDice)
	if err != nil {
		return nil, err
	}

	res := &DiceResult{PlayerRoll: playerRoll, HouseRoll: houseRoll, Payout: decimal.Zero}
	var outcome GameResult

	switch {
	case playerRoll > houseRoll:
		outcome = ResultWin
		res.Result = "win"
		res.Payout = wager.Mul(decimal.NewFromInt(2))
		if err := s.Ledger.Transfer(HouseAccountID, userID, TxDiceBot, res.Payout,
			gameID+":payout",
			fmt.Sprintf("Dice vs House - won %s", FormatMoney(wager))); err != nil {
			return nil, fmt.Errorf("house payout for game %s: %w", gameID, err)
		}
	case houseRoll > playerRoll:
		outcome = ResultLoss
		res.Result = "loss"
	default:
		outcome = ResultDraw
		res.Result = "draw"
		res.Payout = wager
		if err := s.Ledger.Transfer(HouseAccountID, userID, TxDiceBot, wager,
			gameID+":payout", "Dice vs House - draw, stake refunded"); err != nil {
			return nil, fmt.Errorf("house refund for game %s: %w", gameID, err)
		}
	}

	if s.Progression != nil {
		s.Progression.RecordWager(userID, wager, outcome)
	}
	if s.Notifier != nil && chatContext != "" {
		s.Notifier.Report(chatContext,
			fmt.Sprintf("🎲 You rolled %d, house rolled %d — %s", playerRoll, houseRoll, res.Result))
	}
	return res, nil
}

// CoinflipResult is the outcome of one coin flip against the house.
type CoinflipResult struct {
	Choice string          `json:"choice"`
	Landed string          `json:"landed"`
	Result string          `json:"result"` // win / loss
	Payout decimal.Decimal `json:"payout"`
}

// PlayCoinflip flips once; a matching call pays 2x, anything else loses
// the stake. No draw exists for a coin.
func (s *HouseGameService) PlayCoinflip(userID string, wager decimal.Decimal, choice, chatContext string) (*CoinflipResult, error) {
	if !wager.IsPositive() {
		return nil, fmt.Errorf("wager must be positive, got %s", wager)
	}
	if choice != "heads" && choice != "tails" {
		return nil, fmt.Errorf("choice must be heads or tails, got %q", choice)
	}

	gameID := uuid.NewString()
	if err := s.Ledger.Transfer(userID, HouseAccountID, TxCoinflipBot, wager,
		gameID+":stake", "CoinFlip vs House stake"); err != nil {
		return nil, err
	}

	flip, err := s.Outcomes.Next(models.ContestCoinflip)
	if err != nil {
		return nil, err
	}
	landed := "heads"
	if flip == 2 {
		landed = "tails"
	}

	res := &CoinflipResult{Choice: choice, Landed: landed, Payout: decimal.Zero}
	outcome := ResultLoss

	if choice == landed {
		outcome = ResultWin
		res.Result = "win"
		res.Payout = wager.Mul(decimal.NewFromInt(2))
		if err := s.Ledger.Transfer(HouseAccountID, userID, TxCoinflipBot, res.Payout,
			gameID+":payout",
			fmt.Sprintf("CoinFlip vs House - won %s", FormatMoney(wager))); err != nil {
			return nil, fmt.Errorf("house payout for game %s: %w", gameID, err)
		}
	} else {
		res.Result = "loss"
	}

	if s.Progression != nil {
		s.Progression.RecordWager(userID, wager, outcome)
	}
	if s.Notifier != nil && chatContext != "" {
		s.Notifier.Report(chatContext,
			fmt.Sprintf("🪙 You called %s, it landed %s — %s", choice, landed, res.Result))
	}
	return res, nil
}
