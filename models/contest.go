package models

// ContestType is the category of randomized game. It fixes the outcome
// range and the tie policy; settlement math is otherwise identical across
// types (2x payout on a PvP win).
type ContestType string

const (
	ContestDice     ContestType = "dice"
	ContestCoinflip ContestType = "coinflip"
	// ContestDiceBot is the bot-fallback dice mode. It shares the dice
	// outcome range but ties go to the house side instead of refunding,
	// so it is kept as a distinct type rather than folded into dice.
	ContestDiceBot ContestType = "dice_bot"
)

// TiePolicy decides what happens when both outcomes are equal.
type TiePolicy int

const (
	// TieRefundBoth returns both stakes in full. No house take.
	TieRefundBoth TiePolicy = iota
	// TieChallengerLoses treats an equal roll as a loss for the
	// challenging player.
	TieChallengerLoses
)

// ContestRules bounds the random outcome and fixes the tie policy for a
// contest type.
type ContestRules struct {
	OutcomeMin int
	OutcomeMax int
	Tie        TiePolicy
}

var contestRules = map[ContestType]ContestRules{
	ContestDice:     {OutcomeMin: 1, OutcomeMax: 6, Tie: TieRefundBoth},
	ContestCoinflip: {OutcomeMin: 1, OutcomeMax: 2, Tie: TieRefundBoth},
	ContestDiceBot:  {OutcomeMin: 1, OutcomeMax: 6, Tie: TieChallengerLoses},
}

// Rules returns the rule set for a contest type, reporting false for an
// unknown type.
func (ct ContestType) Rules() (ContestRules, bool) {
	r, ok := contestRules[ct]
	return r, ok
}
